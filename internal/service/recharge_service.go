package service

import (
	"context"
	"encoding/json"
	"time"

	"logipay/internal/config"
	"logipay/internal/infrastructure/lock"
	"logipay/internal/model"
	"logipay/internal/repository"
	"logipay/pkg/idgen"
	"logipay/pkg/logging"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// amountTolerance is how far the provider-reported amount may drift from the
// recorded net amount before reconciliation refuses it.
var amountTolerance = decimal.NewFromFloat(0.01)

// RechargeService creates top-up intents and reconciles them against
// asynchronous payment-provider confirmations. Webhooks may be retried or
// duplicated by the sender, so reconciliation is idempotent; no retries are
// attempted here, the provider owns retry/backoff.
type RechargeService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	walletSvc    *WalletService
	couponSvc    *CouponService
	walletRepo   *repository.WalletRepository
	rechargeRepo *repository.RechargeRepository
	outboxRepo   *repository.OutboxRepository
	logger       *logging.Logger
}

func NewRechargeService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logging.Logger) *RechargeService {
	return &RechargeService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		walletSvc:    NewWalletService(db, logger),
		couponSvc:    NewCouponService(db),
		walletRepo:   repository.NewWalletRepository(db),
		rechargeRepo: repository.NewRechargeRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		logger:       logger,
	}
}

type CreateIntentRequest struct {
	FranchiseID   int64           `json:"franchise_id" binding:"required"`
	CustomerID    int64           `json:"customer_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	GSTPercent    decimal.Decimal `json:"gst_percent"`
	PaymentMethod string          `json:"payment_method"`
	Gateway       string          `json:"gateway"`
	CouponCode    string          `json:"coupon_code"`
}

// CreateIntent persists a PENDING recharge and returns it, including the
// order reference and net amount the caller forwards to the external payment
// collector. Nothing is credited yet.
func (s *RechargeService) CreateIntent(ctx context.Context, req CreateIntentRequest) (*model.WalletRecharge, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	var recharge *model.WalletRecharge
	err := s.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletRepo.GetOrCreate(ctx, tx, req.FranchiseID, req.CustomerID)
		if err != nil {
			return err
		}

		amount := req.Amount.Round(2)
		gstAmount := amount.Mul(req.GSTPercent).Div(decimal.NewFromInt(100)).Round(2)
		netAmount := amount.Add(gstAmount)

		recharge = &model.WalletRecharge{
			OrderReference: idgen.GenerateOrderReference(),
			WalletID:       wallet.ID,
			Amount:         amount,
			GSTPercent:     req.GSTPercent,
			GSTAmount:      gstAmount,
			NetAmount:      netAmount,
			Status:         model.RechargeStatusPending,
			PaymentMethod:  req.PaymentMethod,
			Gateway:        req.Gateway,
		}

		if req.CouponCode != "" {
			result, err := s.couponSvc.Evaluate(ctx, tx, req.FranchiseID, req.CustomerID, req.CouponCode, amount, model.ApplyRecharge)
			if err != nil {
				return err
			}
			recharge.CouponID = &result.Coupon.ID
			if result.Discount.IsPositive() {
				recharge.DiscountAmount = decimal.NewNullDecimal(result.Discount)
				recharge.NetAmount = decimal.Max(netAmount.Sub(result.Discount), decimal.Zero)
			}
			if result.Bonus.IsPositive() {
				recharge.BonusAmount = decimal.NewNullDecimal(result.Bonus)
			}
		}

		return s.rechargeRepo.Create(ctx, tx, recharge)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_reference": recharge.OrderReference,
		"wallet_id":       recharge.WalletID,
		"amount":          recharge.Amount,
		"net_amount":      recharge.NetAmount,
	}).Info("recharge intent created")

	return recharge, nil
}

type WebhookRequest struct {
	OrderReference string
	PaymentID      string
	Status         string
	Amount         decimal.NullDecimal
	Payload        model.JSONMap
}

type WebhookResult struct {
	AlreadyProcessed    bool   `json:"already_processed,omitempty"`
	OrderReference      string `json:"order_reference"`
	Status              string `json:"status"`
	WalletTransactionID *int64 `json:"wallet_transaction_id,omitempty"`
}

// ReconcileWebhook settles one intent exactly once.
//
// The redis lock is advisory (it short-circuits duplicate deliveries before
// they hit the database); the row lock on the recharge row inside the
// transaction is what guarantees exactly-once settlement.
func (s *RechargeService) ReconcileWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	if req.Status != model.RechargeStatusSuccess && req.Status != model.RechargeStatusFailed {
		return nil, &ValidationError{Violations: []string{"status must be SUCCESS or FAILED"}}
	}

	if s.redisClient != nil {
		webhookLock := lock.NewRechargeLock(s.redisClient, req.OrderReference)
		if err := webhookLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, err
		}
		defer webhookLock.Unlock(ctx)
	}

	var result *WebhookResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		recharge, err := s.rechargeRepo.GetByOrderReferenceForUpdate(ctx, tx, req.OrderReference)
		if err != nil {
			return err
		}

		// PENDING transitions exactly once; any terminal state means this
		// delivery is a duplicate.
		if recharge.Status != model.RechargeStatusPending {
			result = &WebhookResult{
				AlreadyProcessed:    true,
				OrderReference:      recharge.OrderReference,
				Status:              recharge.Status,
				WalletTransactionID: recharge.WalletTransactionID,
			}
			return nil
		}

		if req.Status == model.RechargeStatusFailed {
			err := s.rechargeRepo.Update(ctx, tx, recharge.ID, map[string]interface{}{
				"status":     model.RechargeStatusFailed,
				"payment_id": req.PaymentID,
				"payload":    req.Payload,
			})
			if err != nil {
				return err
			}
			result = &WebhookResult{OrderReference: recharge.OrderReference, Status: model.RechargeStatusFailed}
			return s.writeSettlementEvent(ctx, tx, recharge, model.RechargeStatusFailed, nil)
		}

		if req.Amount.Valid {
			diff := req.Amount.Decimal.Sub(recharge.NetAmount).Abs()
			if diff.GreaterThan(amountTolerance) {
				return ErrAmountMismatch
			}
		}

		wallet, err := s.walletRepo.GetByID(ctx, tx, recharge.WalletID)
		if err != nil {
			return err
		}

		// Only the base amount reaches the ledger; GST is part of what the
		// customer paid, not of the balance.
		creditResult, err := s.walletSvc.CreditTx(ctx, tx, CreditRequest{
			FranchiseID: wallet.FranchiseID,
			CustomerID:  wallet.CustomerID,
			Amount:      recharge.Amount,
			Source:      model.TransactionSourceRecharge,
			ReferenceID: recharge.OrderReference,
			Metadata: model.JSONMap{
				"gateway":    recharge.Gateway,
				"payment_id": req.PaymentID,
			},
		})
		if err != nil {
			return err
		}

		if recharge.CouponID != nil {
			if recharge.BonusAmount.Valid && recharge.BonusAmount.Decimal.IsPositive() {
				_, err = s.walletSvc.CreditTx(ctx, tx, CreditRequest{
					FranchiseID: wallet.FranchiseID,
					CustomerID:  wallet.CustomerID,
					Amount:      recharge.BonusAmount.Decimal,
					Source:      model.TransactionSourceBonus,
					ReferenceID: recharge.OrderReference,
				})
				if err != nil {
					return err
				}
			}

			usageAmount := decimal.Zero
			if recharge.DiscountAmount.Valid {
				usageAmount = recharge.DiscountAmount.Decimal
			} else if recharge.BonusAmount.Valid {
				usageAmount = recharge.BonusAmount.Decimal
			}
			err = s.couponSvc.RecordUsage(ctx, tx, UsageRecord{
				CouponID:       *recharge.CouponID,
				CustomerID:     wallet.CustomerID,
				Context:        model.ApplyRecharge,
				DiscountAmount: usageAmount,
				RechargeID:     &recharge.ID,
			})
			if err != nil {
				return err
			}
		}

		err = s.rechargeRepo.Update(ctx, tx, recharge.ID, map[string]interface{}{
			"status":                model.RechargeStatusSuccess,
			"payment_id":            req.PaymentID,
			"payload":               req.Payload,
			"wallet_transaction_id": creditResult.TransactionID,
		})
		if err != nil {
			return err
		}

		result = &WebhookResult{
			OrderReference:      recharge.OrderReference,
			Status:              model.RechargeStatusSuccess,
			WalletTransactionID: &creditResult.TransactionID,
		}
		return s.writeSettlementEvent(ctx, tx, recharge, model.RechargeStatusSuccess, &creditResult.TransactionID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_reference":   result.OrderReference,
		"status":            result.Status,
		"already_processed": result.AlreadyProcessed,
	}).Info("webhook reconciled")

	return result, nil
}

func (s *RechargeService) writeSettlementEvent(ctx context.Context, tx *gorm.DB, recharge *model.WalletRecharge, status string, transactionID *int64) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"order_reference":       recharge.OrderReference,
		"wallet_id":             recharge.WalletID,
		"amount":                recharge.Amount,
		"net_amount":            recharge.NetAmount,
		"status":                status,
		"wallet_transaction_id": transactionID,
		"settled_at":            time.Now().Format(time.RFC3339),
	})

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: recharge.OrderReference,
		Topic:      s.cfg.Kafka.Topic.RechargeResult,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func (s *RechargeService) GetByOrderReference(ctx context.Context, orderReference string) (*model.WalletRecharge, error) {
	return s.rechargeRepo.GetByOrderReference(ctx, orderReference)
}

// ListRecharges pages the customer's recharge history, newest first.
func (s *RechargeService) ListRecharges(ctx context.Context, franchiseID, customerID int64, page, pageSize int) ([]*model.WalletRecharge, int64, error) {
	wallet, err := s.walletRepo.GetByFranchiseCustomer(ctx, nil, franchiseID, customerID)
	if err != nil {
		return nil, 0, err
	}
	return s.rechargeRepo.ListByWalletID(ctx, wallet.ID, page, pageSize)
}
