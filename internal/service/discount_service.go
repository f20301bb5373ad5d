package service

import (
	"context"
	"fmt"

	"logipay/internal/model"
	"logipay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountService evaluates franchise-configured discount rules against a
// pricing context. Evaluation is pure: no persistence side effects.
type DiscountService struct {
	db       *gorm.DB
	ruleRepo *repository.RuleRepository
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{
		db:       db,
		ruleRepo: repository.NewRuleRepository(db),
	}
}

// RuleContext carries everything a rule condition may test.
type RuleContext struct {
	Amount        decimal.Decimal
	CustomerID    *int64
	CustomerTier  string
	ServiceType   string
	FromPincode   string
	ToPincode     string
	SLADelayHours *int
	ShipmentCount *int
	AppliesTo     string
}

// RuleMatch is the winning rule together with its computed discount.
type RuleMatch struct {
	Rule     *model.DiscountRule
	Discount decimal.Decimal
}

// Evaluate loads the franchise's ACTIVE rules in priority order and returns
// the single rule yielding the largest discount, or nil when no rule yields
// a positive one. Priority only fixes evaluation order so ties break
// deterministically; the selection criterion is maximum discount.
func (s *DiscountService) Evaluate(ctx context.Context, tx *gorm.DB, franchiseID int64, rc RuleContext) (*RuleMatch, error) {
	rules, err := s.ruleRepo.ListActiveByFranchise(ctx, tx, franchiseID)
	if err != nil {
		return nil, err
	}

	var best *RuleMatch
	for _, rule := range rules {
		if rule.AppliesTo != rc.AppliesTo {
			continue
		}
		if !matchesCondition(&rule.Condition, rc) {
			continue
		}

		discount := computeDiscount(rule.DiscountType, rule.Value, rule.MaxDiscount, rc.Amount)
		if discount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if best == nil || discount.GreaterThan(best.Discount) {
			best = &RuleMatch{Rule: rule, Discount: discount}
		}
	}
	return best, nil
}

// matchesCondition checks every configured sub-condition; absent
// sub-conditions are wildcards.
func matchesCondition(c *model.RuleCondition, rc RuleContext) bool {
	if len(c.CustomerIDs) > 0 {
		if rc.CustomerID == nil || !containsInt64(c.CustomerIDs, *rc.CustomerID) {
			return false
		}
	}
	if len(c.CustomerTiers) > 0 && !containsString(c.CustomerTiers, rc.CustomerTier) {
		return false
	}
	if len(c.ServiceTypes) > 0 && !containsString(c.ServiceTypes, rc.ServiceType) {
		return false
	}
	if len(c.Pincodes) > 0 &&
		!containsString(c.Pincodes, rc.FromPincode) &&
		!containsString(c.Pincodes, rc.ToPincode) {
		return false
	}
	if len(c.Routes) > 0 {
		route := fmt.Sprintf("%s-%s", rc.FromPincode, rc.ToPincode)
		if !containsString(c.Routes, route) {
			return false
		}
	}
	if c.MinAmount.Valid && rc.Amount.LessThan(c.MinAmount.Decimal) {
		return false
	}
	if c.MaxAmount.Valid && rc.Amount.GreaterThan(c.MaxAmount.Decimal) {
		return false
	}
	if c.SLADelayHours != nil {
		if rc.SLADelayHours == nil || *rc.SLADelayHours < *c.SLADelayHours {
			return false
		}
	}
	if c.MinShipmentCount != nil {
		if rc.ShipmentCount == nil || *rc.ShipmentCount < *c.MinShipmentCount {
			return false
		}
	}
	return true
}

// computeDiscount applies FLAT/PERCENT math with the optional cap. Shared by
// the rule and coupon engines so both price the same way.
func computeDiscount(discountType string, value decimal.Decimal, maxDiscount decimal.NullDecimal, amount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch discountType {
	case model.DiscountTypeFlat:
		discount = decimal.Min(value, amount)
	case model.DiscountTypePercent:
		discount = amount.Mul(value).Div(decimal.NewFromInt(100))
		if maxDiscount.Valid && discount.GreaterThan(maxDiscount.Decimal) {
			discount = maxDiscount.Decimal
		}
	default:
		return decimal.Zero
	}
	return discount.Round(2)
}

func containsInt64(values []int64, target int64) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func (s *DiscountService) CreateRule(ctx context.Context, rule *model.DiscountRule) error {
	if rule.AppliesTo == "" {
		rule.AppliesTo = model.ApplyShipment
	}
	if rule.Status == "" {
		rule.Status = model.RuleStatusActive
	}
	return s.ruleRepo.Create(ctx, rule)
}

func (s *DiscountService) GetRule(ctx context.Context, id int64) (*model.DiscountRule, error) {
	return s.ruleRepo.GetByID(ctx, id)
}

func (s *DiscountService) ListRules(ctx context.Context, franchiseID int64) ([]*model.DiscountRule, error) {
	return s.ruleRepo.ListByFranchise(ctx, franchiseID)
}
