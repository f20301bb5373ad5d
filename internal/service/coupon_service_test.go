package service

import (
	"context"
	"testing"
	"time"

	"logipay/internal/model"
	"logipay/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedCoupon(t *testing.T, svc *CouponService, coupon *model.Coupon) *model.Coupon {
	t.Helper()
	coupon.FranchiseID = 1
	if coupon.ValidFrom.IsZero() {
		coupon.ValidFrom = time.Now().Add(-time.Hour)
	}
	if coupon.ValidTo.IsZero() {
		coupon.ValidTo = time.Now().Add(time.Hour)
	}
	require.NoError(t, svc.CreateCoupon(context.Background(), coupon))
	return coupon
}

func TestCouponCodeNormalization(t *testing.T) {
	svc := NewCouponService(newTestDB(t))
	ctx := context.Background()

	coupon := seedCoupon(t, svc, &model.Coupon{
		Code:         "  save10 ",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
	})
	require.Equal(t, "SAVE10", coupon.Code)

	result, err := svc.Evaluate(ctx, nil, 1, 10, " Save10  ", decimal.NewFromInt(100), model.ApplyShipment)
	require.NoError(t, err)
	require.Equal(t, "10.00", result.Discount.StringFixed(2))
}

func TestCouponUnknownCode(t *testing.T) {
	svc := NewCouponService(newTestDB(t))

	_, err := svc.Evaluate(context.Background(), nil, 1, 10, "NOPE", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, repository.ErrCouponNotFound)
}

func TestCouponInactiveOrOutsideWindow(t *testing.T) {
	svc := NewCouponService(newTestDB(t))
	ctx := context.Background()

	seedCoupon(t, svc, &model.Coupon{
		Code:         "PAUSED",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
		Status:       model.CouponStatusInactive,
	})
	_, err := svc.Evaluate(ctx, nil, 1, 10, "PAUSED", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrCouponInactiveOrExpired)

	seedCoupon(t, svc, &model.Coupon{
		Code:         "BYGONE",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
		ValidFrom:    time.Now().Add(-48 * time.Hour),
		ValidTo:      time.Now().Add(-24 * time.Hour),
	})
	_, err = svc.Evaluate(ctx, nil, 1, 10, "BYGONE", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrCouponInactiveOrExpired)

	seedCoupon(t, svc, &model.Coupon{
		Code:         "SOON",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
		ValidFrom:    time.Now().Add(24 * time.Hour),
		ValidTo:      time.Now().Add(48 * time.Hour),
	})
	_, err = svc.Evaluate(ctx, nil, 1, 10, "SOON", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrCouponInactiveOrExpired)
}

func TestCouponScopeMismatch(t *testing.T) {
	svc := NewCouponService(newTestDB(t))

	seedCoupon(t, svc, &model.Coupon{
		Code:         "TOPUPONLY",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
		ApplicableOn: model.ApplyRecharge,
	})

	_, err := svc.Evaluate(context.Background(), nil, 1, 10, "TOPUPONLY", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrCouponScopeMismatch)
}

func TestCouponPerUserLimit(t *testing.T) {
	svc := NewCouponService(newTestDB(t))
	ctx := context.Background()

	limit := 1
	coupon := seedCoupon(t, svc, &model.Coupon{
		Code:         "ONCE",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
		PerUserLimit: &limit,
	})

	result, err := svc.Evaluate(ctx, nil, 1, 10, "ONCE", decimal.NewFromInt(100), model.ApplyShipment)
	require.NoError(t, err)
	require.NoError(t, svc.RecordUsage(ctx, nil, UsageRecord{
		CouponID:       coupon.ID,
		CustomerID:     10,
		Context:        model.ApplyShipment,
		DiscountAmount: result.Discount,
	}))

	_, err = svc.Evaluate(ctx, nil, 1, 10, "ONCE", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrCouponLimitReached)

	// A different customer is still within their own cap.
	_, err = svc.Evaluate(ctx, nil, 1, 11, "ONCE", decimal.NewFromInt(100), model.ApplyShipment)
	require.NoError(t, err)
}

func TestCouponGlobalUsageLimit(t *testing.T) {
	svc := NewCouponService(newTestDB(t))
	ctx := context.Background()

	limit := 2
	coupon := seedCoupon(t, svc, &model.Coupon{
		Code:         "SCARCE",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(10),
		UsageLimit:   &limit,
	})

	for customerID := int64(10); customerID < 12; customerID++ {
		require.NoError(t, svc.RecordUsage(ctx, nil, UsageRecord{
			CouponID:       coupon.ID,
			CustomerID:     customerID,
			Context:        model.ApplyShipment,
			DiscountAmount: decimal.NewFromInt(10),
		}))
	}

	_, err := svc.Evaluate(ctx, nil, 1, 12, "SCARCE", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrCouponLimitReached)
}

func TestCouponMinOrderValue(t *testing.T) {
	svc := NewCouponService(newTestDB(t))

	seedCoupon(t, svc, &model.Coupon{
		Code:          "BIGONLY",
		DiscountType:  model.DiscountTypeFlat,
		Value:         decimal.NewFromInt(50),
		MinOrderValue: decimal.NewFromInt(500),
	})

	_, err := svc.Evaluate(context.Background(), nil, 1, 10, "BIGONLY", decimal.NewFromInt(499), model.ApplyShipment)
	require.ErrorIs(t, err, ErrMinOrderNotMet)
}

func TestCouponDiscountMath(t *testing.T) {
	svc := NewCouponService(newTestDB(t))
	ctx := context.Background()

	seedCoupon(t, svc, &model.Coupon{
		Code:         "FLAT200",
		DiscountType: model.DiscountTypeFlat,
		Value:        decimal.NewFromInt(200),
	})
	result, err := svc.Evaluate(ctx, nil, 1, 10, "FLAT200", decimal.NewFromInt(150), model.ApplyShipment)
	require.NoError(t, err)
	require.Equal(t, "150.00", result.Discount.StringFixed(2))

	seedCoupon(t, svc, &model.Coupon{
		Code:         "PCT10",
		DiscountType: model.DiscountTypePercent,
		Value:        decimal.NewFromInt(10),
		MaxDiscount:  decimal.NewNullDecimal(decimal.NewFromInt(50)),
	})
	result, err = svc.Evaluate(ctx, nil, 1, 10, "PCT10", decimal.NewFromInt(1000), model.ApplyShipment)
	require.NoError(t, err)
	require.Equal(t, "50.00", result.Discount.StringFixed(2))
}

func TestCouponBonusOnlyForRecharge(t *testing.T) {
	svc := NewCouponService(newTestDB(t))
	ctx := context.Background()

	seedCoupon(t, svc, &model.Coupon{
		Code:         "BONUS25",
		DiscountType: model.DiscountTypeBonus,
		Value:        decimal.NewFromInt(25),
	})

	_, err := svc.Evaluate(ctx, nil, 1, 10, "BONUS25", decimal.NewFromInt(100), model.ApplyShipment)
	require.ErrorIs(t, err, ErrUnsupportedForContext)

	result, err := svc.Evaluate(ctx, nil, 1, 10, "BONUS25", decimal.NewFromInt(100), model.ApplyRecharge)
	require.NoError(t, err)
	require.Equal(t, "25.00", result.Bonus.StringFixed(2))
	require.True(t, result.Discount.IsZero())
}
