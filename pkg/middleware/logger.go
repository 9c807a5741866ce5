package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger はリクエストごとに1行のアクセスログを出すGinミドルウェアを返す。
// クライアントが付与したX-Request-IDがあればログに含める。
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if id := c.GetHeader("X-Request-ID"); id != "" {
			fields["request_id"] = id
		}
		if userID := GetUserID(c); userID != "" {
			fields["user_id"] = userID
		}
		log.WithFields(fields).Info("リクエストを処理しました")
	}
}
