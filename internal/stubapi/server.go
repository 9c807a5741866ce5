package stubapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/nao1215/investapp/pkg/config"
	"github.com/nao1215/investapp/pkg/middleware"
)

// defaultJWTSecret は設定でシークレットが与えられない場合に使う開発用の値。
const defaultJWTSecret = "dev-secret-key"

// Server は開発用バックエンドのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port int
	// db はSQLiteデータベース接続。
	db *sql.DB
	// secret はJWTの署名鍵。
	secret string
	// log はサーバーのロガー。
	log logrus.FieldLogger
	// now はテストで差し替える。
	now func() time.Time
}

// NewServer は新しいサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(ctx context.Context, cfg config.StubConfig, log *logrus.Logger) (*Server, error) {
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn("JWTシークレットが未設定のため開発用の値を使用します")
		secret = defaultJWTSecret
	}

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	if len(cfg.AllowOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowOrigins))
	}

	s := &Server{
		router: router,
		port:   cfg.Port,
		db:     db,
		secret: secret,
		log:    log,
		now:    time.Now,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はルーターをhttp.Handlerとして返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxが終了したらグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	users := s.router.Group("/users")
	{
		// ユーザー登録
		users.POST("/", s.handleRegister())
		// ログイン
		users.POST("/login", s.handleLogin())
	}

	core := s.router.Group("/core")
	{
		// プラン一覧（認証不要）
		core.GET("/subscription", s.handleListPlans())
	}

	auth := s.router.Group("")
	auth.Use(middleware.JWTAuth(s.secret))
	{
		auth.GET("/users/plans", s.handleListUserSubscriptions())
		auth.GET("/users/details", s.handleUserDetails())
		auth.GET("/users/home", s.handleHome())
		auth.POST("/core/subscription-mapping", s.handleSubscribe())
		auth.POST("/core/user-withdrawal", s.handleWithdraw())
	}

	// 相場のチャート（外部の相場APIと同じ形式）
	s.router.GET("/v8/finance/chart/:symbol", s.handleChart())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stubapi"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	// Consent は "true" / "false" の文字列で送られる。
	Consent      string `json:"consent" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// subscribeRequest はプラン契約リクエストのJSON構造。
type subscribeRequest struct {
	SubscriptionPlan int64 `json:"subscription_plan" binding:"required"`
}

// withdrawRequest は出金リクエストのJSON構造。
type withdrawRequest struct {
	UserSubscriberID string `json:"user_subscriber_id" binding:"required"`
}

// planResponse はプランのJSONレスポンス構造。
type planResponse struct {
	PlanID         int64   `json:"plan_id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	DurationMonths int     `json:"duration_months"`
	ExpectedReturn float64 `json:"expected_return"`
}

// subscriptionResponse は契約のJSONレスポンス構造。
type subscriptionResponse struct {
	ID        string  `json:"id"`
	PlanID    int64   `json:"plan_id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
			return
		}
		if !strings.EqualFold(req.Consent, "true") {
			middleware.Fail(c, http.StatusBadRequest, "Please accept the terms and conditions.")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.internalError(c, "パスワードのハッシュ化に失敗", err)
			return
		}

		userID := uuid.New().String()
		_, err = s.db.ExecContext(c.Request.Context(), `
			INSERT INTO users (id, username, email, phone, password_hash, referral_code, referred_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, userID, req.Username, req.Email, req.Phone, string(hash), newReferralCode(), req.ReferralCode, s.timestamp())
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				middleware.Fail(c, http.StatusConflict, "User with this phone or email already exists.")
				return
			}
			s.internalError(c, "ユーザー登録に失敗", err)
			return
		}

		token, err := middleware.GenerateJWT(s.secret, userID, req.Phone)
		if err != nil {
			s.internalError(c, "トークン発行に失敗", err)
			return
		}
		middleware.Success(c, http.StatusCreated, "User registered successfully.", gin.H{"access_token": token})
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 電話番号とパスワードが一致しない場合は "Invalid credentials" を返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
			return
		}

		var userID, hash string
		err := s.db.QueryRowContext(c.Request.Context(),
			"SELECT id, password_hash FROM users WHERE phone = ?", req.Phone,
		).Scan(&userID, &hash)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.Fail(c, http.StatusBadRequest, "Invalid credentials")
			return
		}
		if err != nil {
			s.internalError(c, "ユーザー検索に失敗", err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			middleware.Fail(c, http.StatusBadRequest, "Invalid credentials")
			return
		}

		var active int
		if err := s.db.QueryRowContext(c.Request.Context(),
			"SELECT COUNT(*) FROM user_subscriptions WHERE user_id = ? AND withdrawn = 0", userID,
		).Scan(&active); err != nil {
			s.internalError(c, "契約状況の取得に失敗", err)
			return
		}

		token, err := middleware.GenerateJWT(s.secret, userID, req.Phone)
		if err != nil {
			s.internalError(c, "トークン発行に失敗", err)
			return
		}
		middleware.Success(c, http.StatusOK, "Login successful.", gin.H{
			"access_token":      token,
			"subscription_done": active > 0,
		})
	}
}

// handleListPlans はプラン一覧を返すハンドラを返す。
func (s *Server) handleListPlans() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.db.QueryContext(c.Request.Context(),
			"SELECT plan_id, name, price, duration_months, expected_return FROM subscription_plans ORDER BY plan_id")
		if err != nil {
			s.internalError(c, "プラン一覧の取得に失敗", err)
			return
		}
		defer rows.Close()

		plans := make([]planResponse, 0)
		for rows.Next() {
			var p planResponse
			if err := rows.Scan(&p.PlanID, &p.Name, &p.Price, &p.DurationMonths, &p.ExpectedReturn); err != nil {
				s.internalError(c, "プランの読み取りに失敗", err)
				return
			}
			plans = append(plans, p)
		}
		if err := rows.Err(); err != nil {
			s.internalError(c, "プラン一覧の取得に失敗", err)
			return
		}
		middleware.Success(c, http.StatusOK, "Plans fetched successfully.", plans)
	}
}

// handleListUserSubscriptions は出金前の契約一覧を返すハンドラを返す。
func (s *Server) handleListUserSubscriptions() gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.activeSubscriptions(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			s.internalError(c, "契約一覧の取得に失敗", err)
			return
		}
		middleware.Success(c, http.StatusOK, "Subscriptions fetched successfully.", subs)
	}
}

// handleUserDetails はログイン中のユーザー情報と、出金前の契約があるプランを返すハンドラを返す。
func (s *Server) handleUserDetails() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		var username, email, phone, referral string
		err := s.db.QueryRowContext(ctx,
			"SELECT username, email, phone, referral_code FROM users WHERE id = ?", userID,
		).Scan(&username, &email, &phone, &referral)
		if errors.Is(err, sql.ErrNoRows) {
			// トークンは有効だがユーザーが削除されている
			middleware.Fail(c, http.StatusUnauthorized, "User not found.")
			return
		}
		if err != nil {
			s.internalError(c, "ユーザー情報の取得に失敗", err)
			return
		}

		taken, err := s.subscribedPlans(ctx, userID)
		if err != nil {
			s.internalError(c, "契約プランの取得に失敗", err)
			return
		}
		middleware.Success(c, http.StatusOK, "User details fetched successfully.", gin.H{
			"user": gin.H{
				"username":      username,
				"email":         email,
				"phone":         phone,
				"referral_code": referral,
			},
			"subscriptions_taken": taken,
		})
	}
}

// handleHome はホーム画面の集計値を返すハンドラを返す。
// portfolioは出金前の契約額の合計、trades_performedはこれまでの契約数。
func (s *Server) handleHome() gin.HandlerFunc {
	return func(c *gin.Context) {
		var portfolio float64
		var trades int
		err := s.db.QueryRowContext(c.Request.Context(), `
			SELECT COALESCE(SUM(CASE WHEN withdrawn = 0 THEN amount ELSE 0 END), 0), COUNT(*)
			FROM user_subscriptions WHERE user_id = ?
		`, middleware.GetUserID(c)).Scan(&portfolio, &trades)
		if err != nil {
			s.internalError(c, "集計に失敗", err)
			return
		}
		middleware.Success(c, http.StatusOK, "Home data fetched successfully.", gin.H{
			"portfolio":        portfolio,
			"trades_performed": trades,
		})
	}
}

// handleSubscribe はプラン契約を処理するハンドラを返す。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
			return
		}

		ctx := c.Request.Context()
		var sub subscriptionResponse
		err := s.db.QueryRowContext(ctx,
			"SELECT plan_id, name, price FROM subscription_plans WHERE plan_id = ?", req.SubscriptionPlan,
		).Scan(&sub.PlanID, &sub.Name, &sub.Amount)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.Fail(c, http.StatusNotFound, "Subscription plan not found.")
			return
		}
		if err != nil {
			s.internalError(c, "プランの取得に失敗", err)
			return
		}

		sub.ID = uuid.New().String()
		sub.CreatedAt = s.timestamp()
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO user_subscriptions (id, user_id, plan_id, amount, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, sub.ID, middleware.GetUserID(c), sub.PlanID, sub.Amount, sub.CreatedAt); err != nil {
			s.internalError(c, "契約の登録に失敗", err)
			return
		}
		middleware.Success(c, http.StatusCreated, "Subscription added successfully.", sub)
	}
}

// handleWithdraw は出金を処理するハンドラを返す。
// 存在しない契約や出金済みの契約は404を返す。
func (s *Server) handleWithdraw() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
			return
		}

		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		var amount float64
		err := s.db.QueryRowContext(ctx,
			"SELECT amount FROM user_subscriptions WHERE id = ? AND user_id = ? AND withdrawn = 0",
			req.UserSubscriberID, userID,
		).Scan(&amount)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.Fail(c, http.StatusNotFound, "Subscription not found or already withdrawn.")
			return
		}
		if err != nil {
			s.internalError(c, "契約の取得に失敗", err)
			return
		}

		res, err := s.db.ExecContext(ctx,
			"UPDATE user_subscriptions SET withdrawn = 1 WHERE id = ? AND user_id = ? AND withdrawn = 0",
			req.UserSubscriberID, userID,
		)
		if err != nil {
			s.internalError(c, "出金処理に失敗", err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			middleware.Fail(c, http.StatusNotFound, "Subscription not found or already withdrawn.")
			return
		}
		middleware.Success(c, http.StatusOK, "Withdrawal processed successfully.", gin.H{"amount": amount})
	}
}

// activeSubscriptions は出金前の契約を作成順に返す。
func (s *Server) activeSubscriptions(ctx context.Context, userID string) ([]subscriptionResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT us.id, us.plan_id, p.name, us.amount, us.created_at
		FROM user_subscriptions us
		JOIN subscription_plans p ON p.plan_id = us.plan_id
		WHERE us.user_id = ? AND us.withdrawn = 0
		ORDER BY us.created_at, us.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]subscriptionResponse, 0)
	for rows.Next() {
		var sub subscriptionResponse
		if err := rows.Scan(&sub.ID, &sub.PlanID, &sub.Name, &sub.Amount, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// subscribedPlans は出金前の契約があるプランを重複なくplan_id順に返す。
func (s *Server) subscribedPlans(ctx context.Context, userID string) ([]planResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.plan_id, p.name, p.price, p.duration_months, p.expected_return
		FROM user_subscriptions us
		JOIN subscription_plans p ON p.plan_id = us.plan_id
		WHERE us.user_id = ? AND us.withdrawn = 0
		ORDER BY p.plan_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]planResponse, 0)
	for rows.Next() {
		var p planResponse
		if err := rows.Scan(&p.PlanID, &p.Name, &p.Price, &p.DurationMonths, &p.ExpectedReturn); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// internalError はエラーを記録し、500の失敗エンベロープを返す。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.log.WithError(err).WithField("path", c.Request.URL.Path).Error(msg)
	middleware.Fail(c, http.StatusInternalServerError, "Internal server error.")
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// newReferralCode はユーザーに配布する8文字の紹介コードを生成する。
func newReferralCode() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(id[:8])
}
