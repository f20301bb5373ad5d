package service

import (
	"context"
	"strings"
	"time"

	"logipay/internal/model"
	"logipay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CouponService validates customer-presented codes, enforces usage caps and
// computes the discount or bonus. Usage recording is a separate explicit
// step so the caller can defer it until its own writes are in place, inside
// the same transaction.
type CouponService struct {
	db         *gorm.DB
	couponRepo *repository.CouponRepository
	usageRepo  *repository.UsageRepository
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{
		db:         db,
		couponRepo: repository.NewCouponRepository(db),
		usageRepo:  repository.NewUsageRepository(db),
	}
}

// CouponResult is a validated coupon with its computed price effect.
// Discount reduces the payable amount; Bonus is an extra wallet credit and
// is only produced for RECHARGE contexts.
type CouponResult struct {
	Coupon   *model.Coupon
	Discount decimal.Decimal
	Bonus    decimal.Decimal
}

// NormalizeCode makes coupon lookup case and whitespace insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate validates the code for (franchise, customer, amount, context).
//
// When tx is non-nil the coupon row is re-read under an exclusive lock
// before the usage caps are counted, so two concurrent redemptions of a
// near-exhausted coupon serialize and the cap cannot be overshot. Callers
// doing a pure preview pass nil and get the unlocked read.
func (s *CouponService) Evaluate(ctx context.Context, tx *gorm.DB, franchiseID, customerID int64, code string, amount decimal.Decimal, scope string) (*CouponResult, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, tx, franchiseID, NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	if tx != nil {
		coupon, err = s.couponRepo.GetByIDForUpdate(ctx, tx, coupon.ID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if coupon.Status != model.CouponStatusActive || now.Before(coupon.ValidFrom) || now.After(coupon.ValidTo) {
		return nil, ErrCouponInactiveOrExpired
	}
	if !coupon.AppliesToContext(scope) {
		return nil, ErrCouponScopeMismatch
	}

	if coupon.UsageLimit != nil {
		used, err := s.usageRepo.CountByCoupon(ctx, tx, coupon.ID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.UsageLimit) {
			return nil, ErrCouponLimitReached
		}
	}
	if coupon.PerUserLimit != nil {
		used, err := s.usageRepo.CountByCouponAndCustomer(ctx, tx, coupon.ID, customerID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.PerUserLimit) {
			return nil, ErrCouponLimitReached
		}
	}

	if amount.LessThan(coupon.MinOrderValue) {
		return nil, ErrMinOrderNotMet
	}

	result := &CouponResult{Coupon: coupon}
	switch coupon.DiscountType {
	case model.DiscountTypeFlat, model.DiscountTypePercent:
		result.Discount = computeDiscount(coupon.DiscountType, coupon.Value, coupon.MaxDiscount, amount)
	case model.DiscountTypeBonus:
		if scope != model.ApplyRecharge {
			return nil, ErrUnsupportedForContext
		}
		bonus := coupon.Value
		if coupon.MaxDiscount.Valid && bonus.GreaterThan(coupon.MaxDiscount.Decimal) {
			bonus = coupon.MaxDiscount.Decimal
		}
		result.Bonus = bonus.Round(2)
	default:
		return nil, ErrUnsupportedForContext
	}

	return result, nil
}

type UsageRecord struct {
	CouponID       int64
	CustomerID     int64
	Context        string
	DiscountAmount decimal.Decimal
	ShipmentID     *int64
	RechargeID     *int64
}

// RecordUsage appends one usage fact. Invoked by the owning pipeline only
// after the coupon-discounted operation itself succeeded, still inside the
// same transaction.
func (s *CouponService) RecordUsage(ctx context.Context, tx *gorm.DB, rec UsageRecord) error {
	return s.usageRepo.Create(ctx, tx, &model.CouponUsage{
		CouponID:       rec.CouponID,
		CustomerID:     rec.CustomerID,
		Context:        rec.Context,
		DiscountAmount: rec.DiscountAmount,
		ShipmentID:     rec.ShipmentID,
		RechargeID:     rec.RechargeID,
	})
}

func (s *CouponService) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = NormalizeCode(coupon.Code)
	if coupon.ApplicableOn == "" {
		coupon.ApplicableOn = model.ApplyBoth
	}
	if coupon.Status == "" {
		coupon.Status = model.CouponStatusActive
	}
	return s.couponRepo.Create(ctx, coupon)
}

func (s *CouponService) ListCoupons(ctx context.Context, franchiseID int64) ([]*model.Coupon, error) {
	return s.couponRepo.ListByFranchise(ctx, franchiseID)
}
