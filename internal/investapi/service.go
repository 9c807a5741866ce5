package investapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/nao1215/investapp/pkg/event"
	"github.com/nao1215/investapp/pkg/httpclient"
	"github.com/nao1215/investapp/pkg/session"
)

var (
	// ErrNotAuthenticated はトークンが保存されていない状態で認証が必要な操作を呼んだときに返される。
	ErrNotAuthenticated = errors.New("アクセストークンがありません")
	// ErrInvalidCredentials は電話番号またはパスワードが一致しなかったときに返される。
	ErrInvalidCredentials = errors.New("電話番号またはパスワードが正しくありません")
)

// invalidCredentialsMessage はログイン失敗時にサーバーが返すmessage。
const invalidCredentialsMessage = "Invalid credentials"

// Service はバックエンドの操作をまとめたもの。
type Service struct {
	client   *httpclient.Client
	session  *session.Manager
	validate *validator.Validate
}

// NewService はclientで送信し、sessionで認証状態を管理するServiceを生成する。
// sessionはclientと同じトークンストアを使っていなければならない。
func NewService(client *httpclient.Client, sess *session.Manager) *Service {
	return &Service{
		client:   client,
		session:  sess,
		validate: newValidator(),
	}
}

// Login はログインしてトークンを保存し、次に表示する画面を返す。
// 契約済みならRouteUserHome、未契約ならRouteSubscription。
func (s *Service) Login(ctx context.Context, form LoginForm) (string, error) {
	if err := validateForm(s.validate, form); err != nil {
		return "", err
	}

	var res loginResult
	if err := s.client.PostJSON(ctx, "/users/login", form, &res); err != nil {
		var herr *httpclient.HTTPError
		if errors.As(err, &herr) && herr.Message == invalidCredentialsMessage {
			return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return "", err
	}

	route := RouteSubscription
	if res.SubscriptionDone {
		route = RouteUserHome
	}
	if err := s.session.Authenticate(ctx, res.AccessToken, event.SessionAuthenticatedData{
		Source:    "login",
		NextRoute: route,
	}); err != nil {
		return "", fmt.Errorf("ログイン結果の保存に失敗: %w", err)
	}
	return route, nil
}

// Register はユーザーを登録してトークンを保存し、次に表示する画面（ログイン画面）を返す。
func (s *Service) Register(ctx context.Context, form RegisterForm) (string, error) {
	if err := validateForm(s.validate, form); err != nil {
		return "", err
	}

	var res registerResult
	if err := s.client.PostJSON(ctx, "/users/", registerRequest{
		Username:     form.Username,
		Email:        form.Email,
		Phone:        form.Phone,
		Password:     form.Password,
		Consent:      "true",
		ReferralCode: form.ReferralCode,
	}, &res); err != nil {
		return "", err
	}

	if err := s.session.Authenticate(ctx, res.AccessToken, event.SessionAuthenticatedData{
		Source:    "register",
		NextRoute: RouteLogin,
	}); err != nil {
		return "", fmt.Errorf("登録結果の保存に失敗: %w", err)
	}
	return RouteLogin, nil
}

// Plans は契約できるプランの一覧を返す。認証は不要。
func (s *Service) Plans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if err := s.client.GetJSON(ctx, "/core/subscription", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// SubscriptionPlan はログイン中のユーザーが契約しているプランを返す。
func (s *Service) SubscriptionPlan(ctx context.Context) ([]UserSubscription, error) {
	return s.userPlans(ctx)
}

// SubscribedPlans はログイン中のユーザーの契約一覧を返す。
// 出金画面で契約IDを選ぶために使う。
func (s *Service) SubscribedPlans(ctx context.Context) ([]UserSubscription, error) {
	return s.userPlans(ctx)
}

// UserDetails はログイン中のユーザーの登録情報を返す。
func (s *Service) UserDetails(ctx context.Context) (*Profile, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	var res userDetailsResult
	if err := s.client.GetJSON(ctx, "/users/details", &res); err != nil {
		return nil, err
	}
	res.User.SubscriptionsTaken = res.SubscriptionsTaken
	return &res.User, nil
}

// Home はホーム画面の集計値を返す。
func (s *Service) Home(ctx context.Context) (*HomeSummary, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	var res HomeSummary
	if err := s.client.GetJSON(ctx, "/users/home", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AddSubscription はプランを契約し、サーバーが返したエンベロープをそのまま返す。
func (s *Service) AddSubscription(ctx context.Context, planID int64) (*httpclient.Envelope, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, "/core/subscription-mapping", subscribeRequest{SubscriptionPlan: planID})
	if err != nil {
		return nil, err
	}
	if resp.Envelope == nil {
		return nil, errors.New("契約APIの応答がエンベロープ形式ではありません")
	}
	return resp.Envelope, nil
}

// Withdraw は契約を解約して出金し、出金額を返す。
func (s *Service) Withdraw(ctx context.Context, userSubscriberID string) (*Withdrawal, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	var res Withdrawal
	if err := s.client.PostJSON(ctx, "/core/user-withdrawal", withdrawRequest{UserSubscriberID: userSubscriberID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout はトークンを削除する。サーバーには通知しない。
func (s *Service) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}

func (s *Service) userPlans(ctx context.Context) ([]UserSubscription, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	var subs []UserSubscription
	if err := s.client.GetJSON(ctx, "/users/plans", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// requireAuth はトークンが保存されていなければErrNotAuthenticatedを返す。
func (s *Service) requireAuth(ctx context.Context) error {
	state, err := s.session.State(ctx)
	if err != nil {
		return err
	}
	if state != session.Authenticated {
		return ErrNotAuthenticated
	}
	return nil
}
