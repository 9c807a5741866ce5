package middleware

import (
	"github.com/gin-gonic/gin"
)

// Envelope はAPIレスポンスの共通形式。
type Envelope struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// Success はdataを成功エンベロープで返す。
func Success(c *gin.Context, httpStatus int, message string, data any) {
	c.JSON(httpStatus, Envelope{
		Status:     "success",
		StatusCode: httpStatus,
		Message:    message,
		Data:       data,
	})
}

// Fail は失敗エンベロープを返し、後続のハンドラーを中断する。
func Fail(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, Envelope{
		Status:     "failed",
		StatusCode: httpStatus,
		Message:    message,
	})
}
