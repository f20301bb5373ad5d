package service

import (
	"context"
	"encoding/json"
	"time"

	"logipay/internal/config"
	"logipay/internal/model"
	"logipay/internal/rates"
	"logipay/internal/repository"
	"logipay/pkg/idgen"
	"logipay/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var maxWeightKg = decimal.NewFromInt(30)

// ShipmentService runs the pricing pipeline for one shipment-creation
// request: rate lookup, rule discount, coupon discount, wallet debit and
// persistence, all inside a single transaction. Any failure after the rate
// lookup rolls every write back; no partial pricing or partial debit is
// observable.
type ShipmentService struct {
	db           *gorm.DB
	cfg          *config.Config
	rateCalc     rates.Calculator
	walletSvc    *WalletService
	discountSvc  *DiscountService
	couponSvc    *CouponService
	shipmentRepo *repository.ShipmentRepository
	outboxRepo   *repository.OutboxRepository
	logger       *logging.Logger
}

func NewShipmentService(db *gorm.DB, cfg *config.Config, rateCalc rates.Calculator, logger *logging.Logger) *ShipmentService {
	return &ShipmentService{
		db:           db,
		cfg:          cfg,
		rateCalc:     rateCalc,
		walletSvc:    NewWalletService(db, logger),
		discountSvc:  NewDiscountService(db),
		couponSvc:    NewCouponService(db),
		shipmentRepo: repository.NewShipmentRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		logger:       logger,
	}
}

type CreateShipmentRequest struct {
	FranchiseID     int64           `json:"franchise_id" binding:"required"`
	CustomerID      *int64          `json:"customer_id"`
	CustomerTier    string          `json:"customer_tier"`
	SenderName      string          `json:"sender_name"`
	SenderPhone     string          `json:"sender_phone"`
	SenderAddress   string          `json:"sender_address"`
	SenderPincode   string          `json:"sender_pincode"`
	ReceiverName    string          `json:"receiver_name"`
	ReceiverPhone   string          `json:"receiver_phone"`
	ReceiverAddress string          `json:"receiver_address"`
	ReceiverPincode string          `json:"receiver_pincode"`
	ServiceType     string          `json:"service_type"`
	Weight          decimal.Decimal `json:"weight"`
	Pieces          int             `json:"pieces"`
	OtherCharges    decimal.Decimal `json:"other_charges"`
	PaymentMode     string          `json:"payment_mode"`
	CouponCode      string          `json:"coupon_code"`
}

// validate collects every violation before anything is written.
func (s *ShipmentService) validate(req *CreateShipmentRequest) *ValidationError {
	var violations []string

	if req.SenderName == "" {
		violations = append(violations, "sender_name is required")
	}
	if req.SenderPhone == "" {
		violations = append(violations, "sender_phone is required")
	}
	if req.SenderPincode == "" {
		violations = append(violations, "sender_pincode is required")
	}
	if req.ReceiverName == "" {
		violations = append(violations, "receiver_name is required")
	}
	if req.ReceiverPhone == "" {
		violations = append(violations, "receiver_phone is required")
	}
	if req.ReceiverPincode == "" {
		violations = append(violations, "receiver_pincode is required")
	}
	if req.ServiceType == "" {
		violations = append(violations, "service_type is required")
	}
	if req.Weight.LessThanOrEqual(decimal.Zero) {
		violations = append(violations, "weight must be greater than zero")
	} else if req.Weight.GreaterThan(maxWeightKg) {
		violations = append(violations, "weight must not exceed 30 kg")
	}

	switch req.PaymentMode {
	case model.PaymentModeWallet, model.PaymentModeCOD, model.PaymentModePrepaid:
	default:
		violations = append(violations, "payment_mode must be WALLET, COD or PREPAID")
	}

	if req.CustomerID == nil {
		if req.PaymentMode == model.PaymentModeWallet {
			violations = append(violations, "customer_id is required for wallet-funded shipments")
		}
		if req.CouponCode != "" {
			violations = append(violations, "customer_id is required when a coupon code is supplied")
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// CreateShipment prices and books one shipment.
func (s *ShipmentService) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*model.Shipment, error) {
	if req.Pieces <= 0 {
		req.Pieces = 1
	}
	if verr := s.validate(&req); verr != nil {
		return nil, verr
	}

	// External collaborator; no writes have happened yet, so a miss aborts
	// cleanly without touching the database.
	quote, err := s.rateCalc.CalculateRate(ctx, rates.Request{
		FranchiseID:  req.FranchiseID,
		FromPincode:  req.SenderPincode,
		ToPincode:    req.ReceiverPincode,
		ServiceType:  req.ServiceType,
		Weight:       req.Weight,
		Pieces:       req.Pieces,
		OtherCharges: req.OtherCharges,
	})
	if err != nil {
		return nil, err
	}

	baseAmount := quote.NetAmount.Round(2)
	trackingCode := idgen.GenerateTrackingCode()

	var shipment *model.Shipment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		payable := baseAmount
		ruleDiscount := decimal.Zero
		ruleName := ""

		if req.CustomerID != nil {
			match, err := s.discountSvc.Evaluate(ctx, tx, req.FranchiseID, RuleContext{
				Amount:       baseAmount,
				CustomerID:   req.CustomerID,
				CustomerTier: req.CustomerTier,
				ServiceType:  req.ServiceType,
				FromPincode:  req.SenderPincode,
				ToPincode:    req.ReceiverPincode,
				AppliesTo:    model.ApplyShipment,
			})
			if err != nil {
				return err
			}
			if match != nil {
				ruleDiscount = match.Discount
				ruleName = match.Rule.RuleName
				payable = payable.Sub(ruleDiscount)
			}
		}

		couponDiscount := decimal.Zero
		var couponResult *CouponResult
		if req.CouponCode != "" {
			couponResult, err = s.couponSvc.Evaluate(ctx, tx, req.FranchiseID, *req.CustomerID, req.CouponCode, payable, model.ApplyShipment)
			if err != nil {
				return err
			}
			couponDiscount = couponResult.Discount
			payable = payable.Sub(couponDiscount)
		}
		payable = decimal.Max(payable, decimal.Zero).Round(2)

		shipment = &model.Shipment{
			TrackingCode:    trackingCode,
			FranchiseID:     req.FranchiseID,
			CustomerID:      req.CustomerID,
			SenderName:      req.SenderName,
			SenderPhone:     req.SenderPhone,
			SenderAddress:   req.SenderAddress,
			SenderPincode:   req.SenderPincode,
			ReceiverName:    req.ReceiverName,
			ReceiverPhone:   req.ReceiverPhone,
			ReceiverAddress: req.ReceiverAddress,
			ReceiverPincode: req.ReceiverPincode,
			ServiceType:     req.ServiceType,
			Weight:          req.Weight,
			Pieces:          req.Pieces,
			PaymentMode:     req.PaymentMode,
			BaseAmount:      baseAmount,
			RuleDiscount:    ruleDiscount,
			CouponDiscount:  couponDiscount,
			PayableAmount:   payable,
			Status:          model.ShipmentStatusBooked,
			Breakdown: model.PricingBreakdown{
				FreightAmount:  quote.LineAmount,
				FuelAmount:     quote.FuelAmount,
				TaxAmount:      quote.TaxAmount,
				BaseAmount:     baseAmount,
				RuleName:       ruleName,
				RuleDiscount:   ruleDiscount,
				CouponDiscount: couponDiscount,
				PayableAmount:  payable,
			},
		}
		if couponResult != nil {
			shipment.CouponCode = couponResult.Coupon.Code
			shipment.Breakdown.CouponCode = couponResult.Coupon.Code
		}

		if err := s.shipmentRepo.Create(ctx, tx, shipment); err != nil {
			return err
		}

		// Discounts can floor the payable at zero; a zero debit is a no-op.
		if req.PaymentMode == model.PaymentModeWallet && payable.IsPositive() {
			_, err := s.walletSvc.DebitTx(ctx, tx, DebitRequest{
				FranchiseID: req.FranchiseID,
				CustomerID:  *req.CustomerID,
				Amount:      payable,
				Source:      model.TransactionSourceShipment,
				ReferenceID: trackingCode,
				Metadata: model.JSONMap{
					"service_type": req.ServiceType,
					"weight":       req.Weight.String(),
				},
			})
			if err != nil {
				return err
			}
		}

		if couponResult != nil {
			err := s.couponSvc.RecordUsage(ctx, tx, UsageRecord{
				CouponID:       couponResult.Coupon.ID,
				CustomerID:     *req.CustomerID,
				Context:        model.ApplyShipment,
				DiscountAmount: couponDiscount,
				ShipmentID:     &shipment.ID,
			})
			if err != nil {
				return err
			}
		}

		return s.writeBookedEvent(ctx, tx, shipment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tracking_code": shipment.TrackingCode,
		"franchise_id":  shipment.FranchiseID,
		"payable":       shipment.PayableAmount,
		"payment_mode":  shipment.PaymentMode,
	}).Info("shipment booked")

	return shipment, nil
}

func (s *ShipmentService) writeBookedEvent(ctx context.Context, tx *gorm.DB, shipment *model.Shipment) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"tracking_code": shipment.TrackingCode,
		"franchise_id":  shipment.FranchiseID,
		"service_type":  shipment.ServiceType,
		"payable":       shipment.PayableAmount,
		"payment_mode":  shipment.PaymentMode,
		"booked_at":     time.Now().Format(time.RFC3339),
	})

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: shipment.TrackingCode,
		Topic:      s.cfg.Kafka.Topic.ShipmentBooked,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func (s *ShipmentService) GetByTrackingCode(ctx context.Context, trackingCode string) (*model.Shipment, error) {
	return s.shipmentRepo.GetByTrackingCode(ctx, trackingCode)
}

func (s *ShipmentService) ListShipments(ctx context.Context, franchiseID int64, page, pageSize int) ([]*model.Shipment, int64, error) {
	return s.shipmentRepo.ListByFranchise(ctx, franchiseID, page, pageSize)
}
