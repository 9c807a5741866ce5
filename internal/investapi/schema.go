package investapi

// 画面遷移先の名前。
const (
	RouteLogin        = "LOGIN"
	RouteUserHome     = "USERHOME"
	RouteSubscription = "SUBSCRIPTION"
)

// LoginForm はログインの入力。
type LoginForm struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterForm はユーザー登録の入力。
type RegisterForm struct {
	Username        string `validate:"required"`
	Email           string `validate:"required,email"`
	Phone           string `validate:"required,phone10"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	Consent         bool   `validate:"eq=true"`
	ReferralCode    string
}

// registerRequest は登録APIに送るボディ。同意は文字列で送る。
type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Consent      string `json:"consent"`
	ReferralCode string `json:"referral_code"`
}

// loginResult はログインAPIのdata。
type loginResult struct {
	AccessToken      string `json:"access_token"`
	SubscriptionDone bool   `json:"subscription_done"`
}

// registerResult は登録APIのdata。
type registerResult struct {
	AccessToken string `json:"access_token"`
}

// Plan は契約できる投資プラン。
type Plan struct {
	PlanID int64  `json:"plan_id"`
	Name   string `json:"name"`
	// Price は契約に必要な最低金額。
	Price          float64 `json:"price"`
	DurationMonths int     `json:"duration_months"`
	// ExpectedReturn は期間中の期待利回り（%）。
	ExpectedReturn float64 `json:"expected_return"`
}

// UserSubscription はユーザーが契約中のプラン。
type UserSubscription struct {
	// ID は出金時に指定する契約ID。
	ID        string  `json:"id"`
	PlanID    int64   `json:"plan_id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

// Profile はユーザーの登録情報。
type Profile struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
	// SubscriptionsTaken は出金前の契約があるプラン。
	SubscriptionsTaken []Plan `json:"subscriptions_taken"`
}

// userDetailsResult はユーザー情報APIのdata。契約プランはuserと並んで返る。
type userDetailsResult struct {
	User               Profile `json:"user"`
	SubscriptionsTaken []Plan  `json:"subscriptions_taken"`
}

// HomeSummary はホーム画面の集計値。
type HomeSummary struct {
	// Portfolio は出金前の契約額の合計。
	Portfolio float64 `json:"portfolio"`
	// TradesPerformed はこれまでの契約数。
	TradesPerformed int `json:"trades_performed"`
}

// Withdrawal は出金結果。
type Withdrawal struct {
	Amount float64 `json:"amount"`
}

// subscribeRequest はプラン契約APIに送るボディ。
type subscribeRequest struct {
	SubscriptionPlan int64 `json:"subscription_plan"`
}

// withdrawRequest は出金APIに送るボディ。
type withdrawRequest struct {
	UserSubscriberID string `json:"user_subscriber_id"`
}
