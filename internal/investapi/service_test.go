package investapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/nao1215/investapp/internal/console"
	"github.com/nao1215/investapp/internal/stubapi"
	"github.com/nao1215/investapp/pkg/config"
	"github.com/nao1215/investapp/pkg/event"
	"github.com/nao1215/investapp/pkg/httpclient"
	"github.com/nao1215/investapp/pkg/session"
	"github.com/nao1215/investapp/pkg/telemetry"
	"github.com/nao1215/investapp/pkg/tokenstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// harness は開発用バックエンドに接続したServiceと、その協調オブジェクト。
type harness struct {
	baseURL    string
	svc        *Service
	store      *tokenstore.Memory
	session    *session.Manager
	navigator  *console.Navigator
	alerts     *bytes.Buffer
	dispatches *atomic.Int32
}

// setup は開発用バックエンドをhttptestで起動し、Serviceを構築する。
func setup(t *testing.T) *harness {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	stub, err := stubapi.NewServer(context.Background(), config.StubConfig{
		Port:      8080,
		JWTSecret: "test-secret",
		DBPath:    ":memory:",
	}, log)
	if err != nil {
		t.Fatalf("stubapi.NewServer()でエラーが発生: %v", err)
	}
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(func() {
		ts.Close()
		stub.Close()
	})

	h := &harness{
		baseURL:    ts.URL,
		store:      tokenstore.NewMemory(),
		navigator:  console.NewNavigator(nil, nil),
		alerts:     &bytes.Buffer{},
		dispatches: &atomic.Int32{},
	}
	tel := telemetry.NewLogrus(log)
	h.session = session.NewManager(h.store, tel)

	client := httpclient.New(ts.URL, h.store,
		httpclient.WithAlertSurface(console.NewAlerts(h.alerts, nil)),
		httpclient.WithNavigator(h.navigator),
		httpclient.WithTelemetry(tel),
		httpclient.WithSessionExpiredHandler(h.session.Expire),
		httpclient.WithPreRequestHook(func(context.Context, *httpclient.Exchange) error {
			h.dispatches.Add(1)
			return nil
		}),
	)
	h.svc = NewService(client, h.session)
	return h
}

func validRegisterForm() RegisterForm {
	return RegisterForm{
		Username:        "taro",
		Email:           "taro@example.com",
		Phone:           "9876543210",
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Consent:         true,
		ReferralCode:    "FRIEND",
	}
}

// TestRegisterAndLogin は登録とログインを検証する。
func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	t.Run("登録後はログイン画面、未契約のログイン後は契約画面に遷移すること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()

		route, err := h.svc.Register(ctx, validRegisterForm())
		if err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}
		if route != RouteLogin {
			t.Errorf("登録後の遷移先 = %q, want %q", route, RouteLogin)
		}
		if tok, _ := h.store.Token(ctx); tok == "" {
			t.Error("登録後にトークンが保存されていない")
		}

		route, err = h.svc.Login(ctx, LoginForm{Phone: "9876543210", Password: "secret123"})
		if err != nil {
			t.Fatalf("Login()でエラーが発生: %v", err)
		}
		if route != RouteSubscription {
			t.Errorf("ログイン後の遷移先 = %q, want %q", route, RouteSubscription)
		}

		events := h.session.Events()
		if len(events) != 2 {
			t.Fatalf("イベント数 = %d, want 2", len(events))
		}
		data, err := event.DecodeData[event.SessionAuthenticatedData](&events[1])
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if data.Source != "login" || data.NextRoute != RouteSubscription {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("誤ったパスワードはErrInvalidCredentialsになりアラートが表示されること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()
		if _, err := h.svc.Register(ctx, validRegisterForm()); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}
		_ = h.svc.Logout(ctx)

		_, err := h.svc.Login(ctx, LoginForm{Phone: "9876543210", Password: "wrong-password"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("err = %v, want ErrInvalidCredentials", err)
		}
		var herr *httpclient.HTTPError
		if !errors.As(err, &herr) || herr.StatusCode != 400 {
			t.Errorf("HTTPErrorが取り出せない: %v", err)
		}
		if !strings.Contains(h.alerts.String(), "Invalid credentials") {
			t.Errorf("アラート = %q", h.alerts.String())
		}
		if tok, _ := h.store.Token(ctx); tok != "" {
			t.Errorf("失敗したログインでトークンが保存された: %q", tok)
		}
	})
}

// TestFormValidation は入力検証を検証する。
func TestFormValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*RegisterForm)
		want   []string
	}{
		{"未入力", func(f *RegisterForm) { f.Username = "" }, []string{"All fields are required!"}},
		{"パスワード不一致", func(f *RegisterForm) { f.ConfirmPassword = "other123" }, []string{"Passwords do not match!"}},
		{"短いパスワード", func(f *RegisterForm) { f.Password, f.ConfirmPassword = "abc", "abc" }, []string{"Password must be at least 6 characters long."}},
		{"電話番号の桁数", func(f *RegisterForm) { f.Phone = "12345" }, []string{"Please enter a valid phone number with 10 digits."}},
		{"同意なし", func(f *RegisterForm) { f.Consent = false }, []string{"Please accept the terms and conditions."}},
		{"メール形式", func(f *RegisterForm) { f.Email = "not-an-email" }, []string{"Please enter a valid email address."}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name+"は送信せずにFormErrorになること", func(t *testing.T) {
			t.Parallel()

			h := setup(t)
			form := validRegisterForm()
			tt.modify(&form)

			_, err := h.svc.Register(context.Background(), form)
			var fe *FormError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FormError", err)
			}
			if diff := cmp.Diff(tt.want, fe.Messages); diff != "" {
				t.Errorf("メッセージが異なる (-want +got):\n%s", diff)
			}
			if n := h.dispatches.Load(); n != 0 {
				t.Errorf("送信回数 = %d, want 0", n)
			}
		})
	}

	t.Run("国番号付きの電話番号を受け付けること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		form := validRegisterForm()
		form.Phone = "+919876543210"
		if _, err := h.svc.Register(context.Background(), form); err != nil {
			t.Errorf("Register()でエラーが発生: %v", err)
		}
	})

	t.Run("ログインは電話番号とパスワードが必須であること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		_, err := h.svc.Login(context.Background(), LoginForm{Phone: "9876543210"})
		var fe *FormError
		if !errors.As(err, &fe) {
			t.Fatalf("err = %v, want *FormError", err)
		}
		if n := h.dispatches.Load(); n != 0 {
			t.Errorf("送信回数 = %d, want 0", n)
		}
	})
}

// TestAuthenticatedOperations は認証が必要な操作を検証する。
func TestAuthenticatedOperations(t *testing.T) {
	t.Parallel()

	t.Run("トークンがなければ送信せずにErrNotAuthenticatedになること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()

		calls := map[string]func() error{
			"SubscriptionPlan": func() error { _, err := h.svc.SubscriptionPlan(ctx); return err },
			"SubscribedPlans":  func() error { _, err := h.svc.SubscribedPlans(ctx); return err },
			"UserDetails":      func() error { _, err := h.svc.UserDetails(ctx); return err },
			"Home":             func() error { _, err := h.svc.Home(ctx); return err },
			"AddSubscription":  func() error { _, err := h.svc.AddSubscription(ctx, 1); return err },
			"Withdraw":         func() error { _, err := h.svc.Withdraw(ctx, "sub-1"); return err },
		}
		for name, call := range calls {
			if err := call(); !errors.Is(err, ErrNotAuthenticated) {
				t.Errorf("%s: err = %v, want ErrNotAuthenticated", name, err)
			}
		}
		if n := h.dispatches.Load(); n != 0 {
			t.Errorf("送信回数 = %d, want 0", n)
		}
	})

	t.Run("契約から出金、ログアウトまでの流れ", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()
		if _, err := h.svc.Register(ctx, validRegisterForm()); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}

		plans, err := h.svc.Plans(ctx)
		if err != nil {
			t.Fatalf("Plans()でエラーが発生: %v", err)
		}
		if len(plans) == 0 {
			t.Fatal("プランが空")
		}
		gold := plans[1]

		env, err := h.svc.AddSubscription(ctx, gold.PlanID)
		if err != nil {
			t.Fatalf("AddSubscription()でエラーが発生: %v", err)
		}
		if !env.Succeeded() || env.Message == "" {
			t.Errorf("env = %+v", env)
		}

		subs, err := h.svc.SubscribedPlans(ctx)
		if err != nil {
			t.Fatalf("SubscribedPlans()でエラーが発生: %v", err)
		}
		if len(subs) != 1 || subs[0].PlanID != gold.PlanID || subs[0].Amount != gold.Price {
			t.Fatalf("subs = %+v", subs)
		}
		current, err := h.svc.SubscriptionPlan(ctx)
		if err != nil || len(current) != 1 {
			t.Errorf("SubscriptionPlan() = %+v, %v", current, err)
		}

		home, err := h.svc.Home(ctx)
		if err != nil {
			t.Fatalf("Home()でエラーが発生: %v", err)
		}
		if diff := cmp.Diff(&HomeSummary{Portfolio: gold.Price, TradesPerformed: 1}, home); diff != "" {
			t.Errorf("集計が異なる (-want +got):\n%s", diff)
		}

		profile, err := h.svc.UserDetails(ctx)
		if err != nil {
			t.Fatalf("UserDetails()でエラーが発生: %v", err)
		}
		if profile.Username != "taro" || profile.Email != "taro@example.com" || profile.ReferralCode == "" {
			t.Errorf("profile = %+v", profile)
		}

		w, err := h.svc.Withdraw(ctx, subs[0].ID)
		if err != nil {
			t.Fatalf("Withdraw()でエラーが発生: %v", err)
		}
		if w.Amount != gold.Price {
			t.Errorf("出金額 = %v, want %v", w.Amount, gold.Price)
		}

		// 出金済みの契約は失敗しアラートが出る
		if _, err := h.svc.Withdraw(ctx, subs[0].ID); err == nil {
			t.Error("二重出金がエラーにならなかった")
		}
		if !strings.Contains(h.alerts.String(), "Unable to Process") {
			t.Errorf("アラート = %q", h.alerts.String())
		}

		if err := h.svc.Logout(ctx); err != nil {
			t.Fatalf("Logout()でエラーが発生: %v", err)
		}
		if _, err := h.svc.Home(ctx); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("ログアウト後のHome() err = %v", err)
		}
	})

	t.Run("無効なトークンはセッション切れとして処理されること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()
		if err := h.store.SetToken(ctx, "forged-token"); err != nil {
			t.Fatalf("SetToken()でエラーが発生: %v", err)
		}

		_, err := h.svc.Home(ctx)
		if !httpclient.IsAuthExpired(err) {
			t.Fatalf("err = %v, want ErrAuthExpired", err)
		}
		if tok, _ := h.store.Token(ctx); tok != "" {
			t.Errorf("トークンが削除されていない: %q", tok)
		}
		if diff := cmp.Diff([]string{RouteLogin}, h.navigator.History()); diff != "" {
			t.Errorf("遷移が異なる (-want +got):\n%s", diff)
		}
		if !strings.Contains(h.alerts.String(), "Session Expired") {
			t.Errorf("アラート = %q", h.alerts.String())
		}

		events := h.session.Events()
		if len(events) != 1 || events[0].Type != event.TypeSessionExpired {
			t.Errorf("events = %+v", events)
		}
	})
}

// TestCalculateReturns は見込み額の計算を検証する。
func TestCalculateReturns(t *testing.T) {
	t.Parallel()

	gold := Plan{PlanID: 2, Name: "Gold", Price: 10000, ExpectedReturn: 12}
	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"最低金額ちょうど", 10000, 11200},
		{"端数は小数点以下2桁に丸める", 12345.67, 13827.15},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CalculateReturns(gold, tt.amount)
			if err != nil {
				t.Fatalf("CalculateReturns()でエラーが発生: %v", err)
			}
			if got != tt.want {
				t.Errorf("見込み額 = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("最低金額未満はMinimumAmountErrorになること", func(t *testing.T) {
		t.Parallel()

		_, err := CalculateReturns(gold, 9999.99)
		var me *MinimumAmountError
		if !errors.As(err, &me) {
			t.Fatalf("err = %v, want *MinimumAmountError", err)
		}
		if me.Minimum != 10000 || err.Error() != "Minimum amount should be ₹10000" {
			t.Errorf("err = %+v (%s)", me, err)
		}
	})
}

// TestEstimateReturns は契約中のプランでの見込み額を検証する。
func TestEstimateReturns(t *testing.T) {
	t.Parallel()

	t.Run("契約中のプランで計算し、未指定なら最初のプランを使うこと", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()
		if _, err := h.svc.Register(ctx, validRegisterForm()); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}
		for _, plan := range []int64{2, 1} {
			if _, err := h.svc.AddSubscription(ctx, plan); err != nil {
				t.Fatalf("AddSubscription(%d)でエラーが発生: %v", plan, err)
			}
		}

		profile, err := h.svc.UserDetails(ctx)
		if err != nil {
			t.Fatalf("UserDetails()でエラーが発生: %v", err)
		}
		if len(profile.SubscriptionsTaken) != 2 || profile.SubscriptionsTaken[0].Name != "Silver" {
			t.Fatalf("SubscriptionsTaken = %+v", profile.SubscriptionsTaken)
		}

		est, err := h.svc.EstimateReturns(ctx, 0, 5000)
		if err != nil {
			t.Fatalf("EstimateReturns()でエラーが発生: %v", err)
		}
		if est.Plan.Name != "Silver" || est.Returns != 5400 {
			t.Errorf("est = %+v", est)
		}

		est, err = h.svc.EstimateReturns(ctx, 2, 20000)
		if err != nil {
			t.Fatalf("EstimateReturns()でエラーが発生: %v", err)
		}
		if est.Plan.Name != "Gold" || est.Returns != 22400 {
			t.Errorf("est = %+v", est)
		}

		var me *MinimumAmountError
		if _, err := h.svc.EstimateReturns(ctx, 2, 5000); !errors.As(err, &me) || me.Minimum != 10000 {
			t.Errorf("最低金額未満のerr = %v", err)
		}
		if _, err := h.svc.EstimateReturns(ctx, 3, 50000); !errors.Is(err, ErrPlanNotSubscribed) {
			t.Errorf("未契約プランのerr = %v", err)
		}
	})

	t.Run("契約がなければErrNoSubscriptionsになること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		ctx := context.Background()
		if _, err := h.svc.Register(ctx, validRegisterForm()); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}
		if _, err := h.svc.EstimateReturns(ctx, 0, 5000); !errors.Is(err, ErrNoSubscriptions) {
			t.Errorf("err = %v, want ErrNoSubscriptions", err)
		}
	})

	t.Run("トークンがなければ送信せずにErrNotAuthenticatedになること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		if _, err := h.svc.EstimateReturns(context.Background(), 0, 5000); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("err = %v, want ErrNotAuthenticated", err)
		}
		if n := h.dispatches.Load(); n != 0 {
			t.Errorf("送信回数 = %d, want 0", n)
		}
	})
}

// TestQuotes は相場の取得を検証する。
func TestQuotes(t *testing.T) {
	t.Parallel()

	t.Run("銘柄ごとに直近の終値と変化率を指定順に返すこと", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		q := NewQuoteService(httpclient.New(h.baseURL, nil))

		quotes, err := q.Quotes(context.Background())
		if err != nil {
			t.Fatalf("Quotes()でエラーが発生: %v", err)
		}
		want := []Quote{
			{Symbol: "AAPL", Price: 191.9, ChangePercent: 1},
			{Symbol: "BTC", Price: 65650, ChangePercent: 1},
			{Symbol: "ETH", Price: 3232, ChangePercent: 1},
		}
		approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-6 })
		if diff := cmp.Diff(want, quotes, approx); diff != "" {
			t.Errorf("相場が異なる (-want +got):\n%s", diff)
		}
	})

	t.Run("未知の銘柄はHTTPErrorになること", func(t *testing.T) {
		t.Parallel()

		h := setup(t)
		q := NewQuoteService(httpclient.New(h.baseURL, nil))

		_, err := q.Quotes(context.Background(), "AAPL", "NOPE")
		var herr *httpclient.HTTPError
		if !errors.As(err, &herr) || herr.StatusCode != 404 {
			t.Errorf("err = %v, want 404 HTTPError", err)
		}
	})
}
