// internal/service/fraud.go
// Fraud checks
package service

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/config"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

type Recommendation string

const (
	RecommendationApprove Recommendation = "approve"
	RecommendationReview  Recommendation = "review"
	RecommendationBlock   Recommendation = "block"
)

// phonePattern is the national mobile format: +226 followed by 8 digits.
var phonePattern = regexp.MustCompile(`^\+226\d{8}$`)

// ValidPhone reports whether a phone number matches the national format.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

type ScreenRequest struct {
	Amount        float64
	CustomerPhone string
	Method        models.PaymentMethod
}

type Screening struct {
	Score          int
	Flags          []string
	Recommendation Recommendation
	Rules          []RuleResult
}

type RuleResult struct {
	RuleName    string
	Triggered   bool
	Score       int
	Description string
}

// FraudScorer runs the rule pipeline over a payment's attributes and turns
// the accumulated score into a recommendation. Pure with respect to the
// request; historical-context rules plug in as additional pipeline entries.
type FraudScorer struct {
	cfg    config.FraudConfig
	logger *zap.Logger
}

func NewFraudScorer(cfg config.FraudConfig, logger *zap.Logger) *FraudScorer {
	return &FraudScorer{cfg: cfg, logger: logger}
}

func (s *FraudScorer) Screen(req ScreenRequest) *Screening {
	screening := &Screening{
		Flags: []string{},
		Rules: []RuleResult{},
	}

	rules := []func(ScreenRequest, *Screening){
		s.checkAmountThreshold,
		s.checkPhoneFormat,
	}
	for _, rule := range rules {
		rule(req, screening)
	}

	if screening.Score > 100 {
		screening.Score = 100
	}
	if screening.Score < 0 {
		screening.Score = 0
	}
	screening.Recommendation = s.recommend(screening.Score)

	if screening.Recommendation != RecommendationApprove {
		s.logger.Warn("fraud screening raised risk",
			zap.Int("score", screening.Score),
			zap.Strings("flags", screening.Flags),
			zap.String("recommendation", string(screening.Recommendation)))
	}

	return screening
}

// checkAmountThreshold scores unusually large amounts. Amounts at double
// the high-amount threshold carry a heavier weight under the same flag.
func (s *FraudScorer) checkAmountThreshold(req ScreenRequest, resp *Screening) {
	result := RuleResult{
		RuleName:    "amount_threshold",
		Description: fmt.Sprintf("amount %.2f against threshold %.2f", req.Amount, s.cfg.HighAmountThreshold),
	}

	switch {
	case req.Amount >= 2*s.cfg.HighAmountThreshold:
		result.Triggered = true
		result.Score = s.cfg.ExtremeAmountScore
	case req.Amount > s.cfg.HighAmountThreshold:
		result.Triggered = true
		result.Score = s.cfg.HighAmountScore
	}

	if result.Triggered {
		resp.Flags = append(resp.Flags, "high_amount")
		resp.Score += result.Score
	}
	resp.Rules = append(resp.Rules, result)
}

// checkPhoneFormat scores a present phone that does not match the
// national format. Absent phones are validated upstream per method.
func (s *FraudScorer) checkPhoneFormat(req ScreenRequest, resp *Screening) {
	result := RuleResult{
		RuleName:    "phone_format",
		Description: "customer phone against national format",
	}

	if req.CustomerPhone != "" && !ValidPhone(req.CustomerPhone) {
		result.Triggered = true
		result.Score = s.cfg.InvalidPhoneScore
		resp.Flags = append(resp.Flags, "invalid_phone_format")
		resp.Score += result.Score
	}

	resp.Rules = append(resp.Rules, result)
}

func (s *FraudScorer) recommend(score int) Recommendation {
	switch {
	case score > s.cfg.BlockScore:
		return RecommendationBlock
	case score > s.cfg.ReviewScore:
		return RecommendationReview
	default:
		return RecommendationApprove
	}
}
