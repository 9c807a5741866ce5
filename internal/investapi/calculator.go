package investapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrNoSubscriptions は契約中のプランがないため見込み額を計算できないときに返される。
	ErrNoSubscriptions = errors.New("契約中のプランがありません")
	// ErrPlanNotSubscribed は指定したプランを契約していないときに返される。
	ErrPlanNotSubscribed = errors.New("指定したプランは契約していません")
)

// MinimumAmountError は投資額がプランの最低金額に満たないときに返される。
type MinimumAmountError struct {
	// Plan はプラン名。
	Plan string
	// Minimum はプランの最低金額。
	Minimum float64
	// Amount は入力された投資額。
	Amount float64
}

func (e *MinimumAmountError) Error() string {
	return "Minimum amount should be ₹" + strconv.FormatFloat(e.Minimum, 'f', -1, 64)
}

// Estimate は投資額に対する満期時の見込み額。
type Estimate struct {
	Plan   Plan
	Amount float64
	// Returns は元本を含む見込み額。小数点以下2桁に丸める。
	Returns float64
}

// CalculateReturns は投資額amountをplanで運用したときの元本込みの見込み額を返す。
// amountがプランの最低金額に満たない場合は*MinimumAmountErrorを返す。
func CalculateReturns(plan Plan, amount float64) (float64, error) {
	if math.IsNaN(amount) || amount < plan.Price {
		return 0, &MinimumAmountError{Plan: plan.Name, Minimum: plan.Price, Amount: amount}
	}
	returns := amount*(plan.ExpectedReturn/100) + amount
	return math.Round(returns*100) / 100, nil
}

// EstimateReturns は契約中のプランで投資額amountを運用したときの見込み額を返す。
// planIDが0の場合は契約中のプランのうち最初のものを使う。
func (s *Service) EstimateReturns(ctx context.Context, planID int64, amount float64) (*Estimate, error) {
	profile, err := s.UserDetails(ctx)
	if err != nil {
		return nil, err
	}
	if len(profile.SubscriptionsTaken) == 0 {
		return nil, ErrNoSubscriptions
	}

	plan, ok := profile.SubscriptionsTaken[0], planID == 0
	for _, p := range profile.SubscriptionsTaken {
		if !ok && p.PlanID == planID {
			plan, ok = p, true
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: plan_id=%d", ErrPlanNotSubscribed, planID)
	}

	returns, err := CalculateReturns(plan, amount)
	if err != nil {
		return nil, err
	}
	return &Estimate{Plan: plan, Amount: amount, Returns: returns}, nil
}
