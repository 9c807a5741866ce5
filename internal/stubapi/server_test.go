package stubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/nao1215/investapp/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope はテストで読むレスポンスの形式。
type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// setupTestServer はインメモリSQLiteでサーバーを構築する。
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := NewServer(context.Background(), config.StubConfig{
		Port:      8080,
		JWTSecret: "test-secret",
		DBPath:    ":memory:",
	}, log)
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// do はリクエストを送り、ステータスコードとエンベロープを返す。
func do(t *testing.T, s *Server, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("リクエストボディのシリアライズに失敗: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return w.Code, env
}

// decode はエンベロープのdataを取り出す。
func decode[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("dataのパースに失敗: %v (data=%s)", err, env.Data)
	}
	return out
}

// registerUser はユーザーを登録してトークンを返す。
func registerUser(t *testing.T, s *Server, phone string) string {
	t.Helper()

	code, env := do(t, s, http.MethodPost, "/users/", "", map[string]any{
		"username":      "taro",
		"email":         phone + "@example.com",
		"phone":         phone,
		"password":      "secret123",
		"consent":       "true",
		"referral_code": "FRIEND",
	})
	if code != http.StatusCreated || env.Status != "success" {
		t.Fatalf("登録に失敗: %d %+v", code, env)
	}
	return decode[struct {
		AccessToken string `json:"access_token"`
	}](t, env).AccessToken
}

// TestHealth はヘルスチェックを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "stubapi" {
		t.Errorf("body = %v", body)
	}
}

// TestRegisterAndLogin は登録とログインを検証する。
func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	t.Run("登録後に同じ電話番号とパスワードでログインできること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		if token := registerUser(t, s, "9876543210"); token == "" {
			t.Fatal("登録でトークンが返らなかった")
		}

		code, env := do(t, s, http.MethodPost, "/users/login", "", map[string]string{
			"phone": "9876543210", "password": "secret123",
		})
		if code != http.StatusOK || env.Status != "success" {
			t.Fatalf("ログインに失敗: %d %+v", code, env)
		}
		data := decode[struct {
			AccessToken      string `json:"access_token"`
			SubscriptionDone bool   `json:"subscription_done"`
		}](t, env)
		if data.AccessToken == "" {
			t.Error("access_tokenが空")
		}
		if data.SubscriptionDone {
			t.Error("契約がないのにsubscription_doneがtrue")
		}
	})

	t.Run("パスワード違いと未登録はInvalid credentialsになること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		registerUser(t, s, "9876543210")

		for _, body := range []map[string]string{
			{"phone": "9876543210", "password": "wrong-password"},
			{"phone": "0000000000", "password": "secret123"},
		} {
			code, env := do(t, s, http.MethodPost, "/users/login", "", body)
			if code != http.StatusBadRequest || env.Status != "failed" || env.Message != "Invalid credentials" {
				t.Errorf("body=%v: %d %+v", body, code, env)
			}
		}
	})

	t.Run("同じ電話番号での再登録は409になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		registerUser(t, s, "9876543210")

		code, env := do(t, s, http.MethodPost, "/users/", "", map[string]any{
			"username": "jiro", "email": "other@example.com", "phone": "9876543210",
			"password": "secret123", "consent": "true",
		})
		if code != http.StatusConflict || env.StatusCode != http.StatusConflict {
			t.Errorf("%d %+v", code, env)
		}
	})

	t.Run("同意していない登録は400になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		code, env := do(t, s, http.MethodPost, "/users/", "", map[string]any{
			"username": "jiro", "email": "jiro@example.com", "phone": "9876543210",
			"password": "secret123", "consent": "false",
		})
		if code != http.StatusBadRequest || env.Status != "failed" {
			t.Errorf("%d %+v", code, env)
		}
	})
}

// TestAuthenticatedRoutes は認証が必要なルートを検証する。
func TestAuthenticatedRoutes(t *testing.T) {
	t.Parallel()

	t.Run("トークンなしは401エンベロープになること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		for _, path := range []string{"/users/plans", "/users/details", "/users/home"} {
			code, env := do(t, s, http.MethodGet, path, "", nil)
			if code != http.StatusUnauthorized || env.Status != "failed" || env.StatusCode != http.StatusUnauthorized {
				t.Errorf("%s: %d %+v", path, code, env)
			}
		}
	})

	t.Run("契約から出金までの流れが集計に反映されること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		token := registerUser(t, s, "9876543210")

		code, env := do(t, s, http.MethodGet, "/core/subscription", "", nil)
		if code != http.StatusOK {
			t.Fatalf("プラン一覧の取得に失敗: %d %+v", code, env)
		}
		plans := decode[[]planResponse](t, env)
		if len(plans) != 3 || plans[1].Name != "Gold" || plans[1].Price != 10000 || plans[1].ExpectedReturn != 12 {
			t.Fatalf("plans = %+v", plans)
		}

		code, env = do(t, s, http.MethodPost, "/core/subscription-mapping", token, map[string]int64{"subscription_plan": 2})
		if code != http.StatusCreated {
			t.Fatalf("契約に失敗: %d %+v", code, env)
		}
		sub := decode[subscriptionResponse](t, env)

		code, env = do(t, s, http.MethodGet, "/users/plans", token, nil)
		if subs := decode[[]subscriptionResponse](t, env); code != http.StatusOK || len(subs) != 1 || subs[0].ID != sub.ID {
			t.Fatalf("契約一覧 = %d %+v", code, subs)
		}

		code, env = do(t, s, http.MethodGet, "/users/home", token, nil)
		home := decode[struct {
			Portfolio       float64 `json:"portfolio"`
			TradesPerformed int     `json:"trades_performed"`
		}](t, env)
		if code != http.StatusOK || home.Portfolio != 10000 || home.TradesPerformed != 1 {
			t.Errorf("home = %d %+v", code, home)
		}

		code, env = do(t, s, http.MethodPost, "/core/user-withdrawal", token, map[string]string{"user_subscriber_id": sub.ID})
		withdrawal := decode[struct {
			Amount float64 `json:"amount"`
		}](t, env)
		if code != http.StatusOK || withdrawal.Amount != 10000 {
			t.Errorf("出金 = %d %+v", code, env)
		}

		code, env = do(t, s, http.MethodPost, "/core/user-withdrawal", token, map[string]string{"user_subscriber_id": sub.ID})
		if code != http.StatusNotFound || env.Status != "failed" {
			t.Errorf("二重出金 = %d %+v", code, env)
		}

		_, env = do(t, s, http.MethodGet, "/users/home", token, nil)
		home = decode[struct {
			Portfolio       float64 `json:"portfolio"`
			TradesPerformed int     `json:"trades_performed"`
		}](t, env)
		if home.Portfolio != 0 || home.TradesPerformed != 1 {
			t.Errorf("出金後のhome = %+v", home)
		}
	})

	t.Run("契約後のログインはsubscription_doneがtrueになること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		token := registerUser(t, s, "9876543210")
		do(t, s, http.MethodPost, "/core/subscription-mapping", token, map[string]int64{"subscription_plan": 1})

		_, env := do(t, s, http.MethodPost, "/users/login", "", map[string]string{
			"phone": "9876543210", "password": "secret123",
		})
		data := decode[struct {
			SubscriptionDone bool `json:"subscription_done"`
		}](t, env)
		if !data.SubscriptionDone {
			t.Error("subscription_doneがfalse")
		}
	})

	t.Run("ユーザー情報に紹介コードが含まれること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		token := registerUser(t, s, "9876543210")

		code, env := do(t, s, http.MethodGet, "/users/details", token, nil)
		details := decode[struct {
			User struct {
				Username     string `json:"username"`
				Phone        string `json:"phone"`
				ReferralCode string `json:"referral_code"`
			} `json:"user"`
		}](t, env)
		if code != http.StatusOK || details.User.Username != "taro" || details.User.Phone != "9876543210" {
			t.Errorf("details = %d %+v", code, details)
		}
		if len(details.User.ReferralCode) != 8 {
			t.Errorf("referral_code = %q, want 8文字", details.User.ReferralCode)
		}
	})

	t.Run("ユーザー情報に出金前の契約プランが重複なく含まれること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		token := registerUser(t, s, "9876543210")
		for _, plan := range []int64{2, 1, 2} {
			do(t, s, http.MethodPost, "/core/subscription-mapping", token, map[string]int64{"subscription_plan": plan})
		}

		_, env := do(t, s, http.MethodGet, "/users/details", token, nil)
		taken := decode[struct {
			SubscriptionsTaken []planResponse `json:"subscriptions_taken"`
		}](t, env).SubscriptionsTaken
		want := []planResponse{
			{PlanID: 1, Name: "Silver", Price: 5000, DurationMonths: 3, ExpectedReturn: 8},
			{PlanID: 2, Name: "Gold", Price: 10000, DurationMonths: 6, ExpectedReturn: 12},
		}
		if diff := cmp.Diff(want, taken); diff != "" {
			t.Errorf("subscriptions_takenが異なる (-want +got):\n%s", diff)
		}
	})

	t.Run("存在しないプランの契約は404になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		token := registerUser(t, s, "9876543210")

		code, env := do(t, s, http.MethodPost, "/core/subscription-mapping", token, map[string]int64{"subscription_plan": 99})
		if code != http.StatusNotFound || env.StatusCode != http.StatusNotFound {
			t.Errorf("%d %+v", code, env)
		}
	})

	t.Run("他人の契約は出金できないこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		owner := registerUser(t, s, "9876543210")
		other := registerUser(t, s, "9123456780")

		_, env := do(t, s, http.MethodPost, "/core/subscription-mapping", owner, map[string]int64{"subscription_plan": 1})
		sub := decode[subscriptionResponse](t, env)

		code, _ := do(t, s, http.MethodPost, "/core/user-withdrawal", other, map[string]string{"user_subscriber_id": sub.ID})
		if code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", code, http.StatusNotFound)
		}
	})
}

// TestChart は相場のチャートを検証する。
func TestChart(t *testing.T) {
	t.Parallel()

	t.Run("既知の銘柄は取引のない時点を含む終値の系列を返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v8/finance/chart/AAPL?range=1d&interval=1m", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var res chartEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(res.Chart.Result) != 1 || res.Chart.Error != nil {
			t.Fatalf("chart = %+v", res.Chart)
		}
		closes := res.Chart.Result[0].Indicators.Quote[0].Close
		if len(closes) != 4 || closes[1] != nil {
			t.Fatalf("close = %v", closes)
		}
		if *closes[0] != 190 || *closes[3] != 191.9 {
			t.Errorf("始値 = %v, 終値 = %v", *closes[0], *closes[3])
		}
	})

	t.Run("未知の銘柄は404とエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v8/finance/chart/NOPE", nil))

		var res chartEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if w.Code != http.StatusNotFound || res.Chart.Error == nil {
			t.Errorf("%d %+v", w.Code, res.Chart)
		}
	})
}
