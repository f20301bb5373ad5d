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

func newRechargeService(t *testing.T) *RechargeService {
	t.Helper()
	return NewRechargeService(newTestDB(t), nil, newTestConfig(), newTestLogger())
}

func TestCreateIntentComputesGST(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(1000),
		GSTPercent:  decimal.NewFromInt(18),
		Gateway:     "razorpay",
	})
	require.NoError(t, err)
	require.Equal(t, model.RechargeStatusPending, recharge.Status)
	require.NotEmpty(t, recharge.OrderReference)
	require.Equal(t, "1000.00", recharge.Amount.StringFixed(2))
	require.Equal(t, "180.00", recharge.GSTAmount.StringFixed(2))
	require.Equal(t, "1180.00", recharge.NetAmount.StringFixed(2))
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	svc := newRechargeService(t)

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.Zero,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWebhookSuccessCreditsBaseAmount(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(1000),
		GSTPercent:  decimal.NewFromInt(18),
	})
	require.NoError(t, err)

	result, err := svc.ReconcileWebhook(ctx, WebhookRequest{
		OrderReference: recharge.OrderReference,
		PaymentID:      "pay_123",
		Status:         model.RechargeStatusSuccess,
		Amount:         decimal.NewNullDecimal(decimal.NewFromInt(1180)),
	})
	require.NoError(t, err)
	require.False(t, result.AlreadyProcessed)
	require.Equal(t, model.RechargeStatusSuccess, result.Status)
	require.NotNil(t, result.WalletTransactionID)

	// GST is part of what was paid, not of the balance.
	summary, err := svc.walletSvc.GetSummary(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, "1000.00", summary.Balance.StringFixed(2))
	require.NotNil(t, summary.LastRechargedAt)

	stored, err := svc.GetByOrderReference(ctx, recharge.OrderReference)
	require.NoError(t, err)
	require.Equal(t, model.RechargeStatusSuccess, stored.Status)
	require.Equal(t, "pay_123", stored.PaymentID)
	require.NotNil(t, stored.WalletTransactionID)

	var outboxCount int64
	require.NoError(t, svc.db.Model(&model.OutboxMessage{}).
		Where("topic = ?", "recharge_result").Count(&outboxCount).Error)
	require.Equal(t, int64(1), outboxCount)
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	req := WebhookRequest{
		OrderReference: recharge.OrderReference,
		PaymentID:      "pay_dup",
		Status:         model.RechargeStatusSuccess,
		Amount:         decimal.NewNullDecimal(decimal.NewFromInt(500)),
	}
	first, err := svc.ReconcileWebhook(ctx, req)
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	second, err := svc.ReconcileWebhook(ctx, req)
	require.NoError(t, err)
	require.True(t, second.AlreadyProcessed)
	require.Equal(t, model.RechargeStatusSuccess, second.Status)
	require.Equal(t, first.WalletTransactionID, second.WalletTransactionID)

	summary, err := svc.walletSvc.GetSummary(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, "500.00", summary.Balance.StringFixed(2))
	require.Equal(t, int64(1), summary.TransactionCount)
}

func TestWebhookAmountMismatch(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(1000),
		GSTPercent:  decimal.NewFromInt(18),
	})
	require.NoError(t, err)

	_, err = svc.ReconcileWebhook(ctx, WebhookRequest{
		OrderReference: recharge.OrderReference,
		Status:         model.RechargeStatusSuccess,
		Amount:         decimal.NewNullDecimal(decimal.NewFromInt(900)),
	})
	require.ErrorIs(t, err, ErrAmountMismatch)

	// The mismatch must roll everything back so a corrected retry can land.
	stored, err := svc.GetByOrderReference(ctx, recharge.OrderReference)
	require.NoError(t, err)
	require.Equal(t, model.RechargeStatusPending, stored.Status)

	var transactionCount int64
	require.NoError(t, svc.db.Model(&model.WalletTransaction{}).Count(&transactionCount).Error)
	require.Zero(t, transactionCount)
}

func TestWebhookWithinTolerance(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(1000),
		GSTPercent:  decimal.NewFromInt(18),
	})
	require.NoError(t, err)

	result, err := svc.ReconcileWebhook(ctx, WebhookRequest{
		OrderReference: recharge.OrderReference,
		Status:         model.RechargeStatusSuccess,
		Amount:         decimal.NewNullDecimal(decimal.NewFromFloat(1180.01)),
	})
	require.NoError(t, err)
	require.Equal(t, model.RechargeStatusSuccess, result.Status)
}

func TestWebhookFailedRecordsWithoutCredit(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(300),
	})
	require.NoError(t, err)

	result, err := svc.ReconcileWebhook(ctx, WebhookRequest{
		OrderReference: recharge.OrderReference,
		PaymentID:      "pay_fail",
		Status:         model.RechargeStatusFailed,
	})
	require.NoError(t, err)
	require.Equal(t, model.RechargeStatusFailed, result.Status)
	require.Nil(t, result.WalletTransactionID)

	var transactionCount int64
	require.NoError(t, svc.db.Model(&model.WalletTransaction{}).Count(&transactionCount).Error)
	require.Zero(t, transactionCount)
}

func TestWebhookUnknownOrderReference(t *testing.T) {
	svc := newRechargeService(t)

	_, err := svc.ReconcileWebhook(context.Background(), WebhookRequest{
		OrderReference: "RCH-DOES-NOT-EXIST",
		Status:         model.RechargeStatusSuccess,
	})
	require.ErrorIs(t, err, repository.ErrRechargeNotFound)
}

func TestWebhookRejectsUnknownStatus(t *testing.T) {
	svc := newRechargeService(t)

	_, err := svc.ReconcileWebhook(context.Background(), WebhookRequest{
		OrderReference: "RCH-ANY",
		Status:         "SETTLED",
	})
	_, ok := AsValidationError(err)
	require.True(t, ok)
}

func TestRechargeWithBonusCoupon(t *testing.T) {
	svc := newRechargeService(t)
	ctx := context.Background()

	coupon := &model.Coupon{
		FranchiseID:  1,
		Code:         "TOPUP50",
		DiscountType: model.DiscountTypeBonus,
		Value:        decimal.NewFromInt(50),
		ApplicableOn: model.ApplyRecharge,
		Status:       model.CouponStatusActive,
		ValidFrom:    time.Now().Add(-time.Hour),
		ValidTo:      time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.db.Create(coupon).Error)

	recharge, err := svc.CreateIntent(ctx, CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(1000),
		CouponCode:  "topup50",
	})
	require.NoError(t, err)
	require.NotNil(t, recharge.CouponID)
	require.True(t, recharge.BonusAmount.Valid)
	require.Equal(t, "50.00", recharge.BonusAmount.Decimal.StringFixed(2))

	_, err = svc.ReconcileWebhook(ctx, WebhookRequest{
		OrderReference: recharge.OrderReference,
		Status:         model.RechargeStatusSuccess,
		Amount:         decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	})
	require.NoError(t, err)

	// Base amount plus the bonus, as two separate ledger entries.
	summary, err := svc.walletSvc.GetSummary(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, "1050.00", summary.Balance.StringFixed(2))
	require.Equal(t, int64(2), summary.TransactionCount)

	var usageCount int64
	require.NoError(t, svc.db.Model(&model.CouponUsage{}).
		Where("coupon_id = ?", coupon.ID).Count(&usageCount).Error)
	require.Equal(t, int64(1), usageCount)
}
