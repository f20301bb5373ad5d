package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentModeWallet  = "WALLET"
	PaymentModeCOD     = "COD"
	PaymentModePrepaid = "PREPAID"
)

const (
	ShipmentStatusBooked = "BOOKED"
)

// PricingBreakdown is the itemized snapshot of how a shipment's payable
// amount was computed, frozen at booking time. Serialized as JSON at the
// storage boundary.
type PricingBreakdown struct {
	FreightAmount  decimal.Decimal `json:"freight_amount"`
	FuelAmount     decimal.Decimal `json:"fuel_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	RuleName       string          `json:"rule_name,omitempty"`
	RuleDiscount   decimal.Decimal `json:"rule_discount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	PayableAmount  decimal.Decimal `json:"payable_amount"`
}

func (p PricingBreakdown) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	return string(b), err
}

func (p *PricingBreakdown) Scan(value interface{}) error {
	if value == nil {
		*p = PricingBreakdown{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported type for PricingBreakdown")
	}
	if len(b) == 0 {
		*p = PricingBreakdown{}
		return nil
	}
	return json.Unmarshal(b, p)
}

// Shipment is one booked consignment with its full pricing decomposition.
type Shipment struct {
	ID              int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TrackingCode    string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"tracking_code"`
	FranchiseID     int64            `gorm:"index;not null" json:"franchise_id"`
	CustomerID      *int64           `gorm:"index" json:"customer_id"`
	SenderName      string           `gorm:"type:varchar(128);not null" json:"sender_name"`
	SenderPhone     string           `gorm:"type:varchar(20);not null" json:"sender_phone"`
	SenderAddress   string           `gorm:"type:varchar(256)" json:"sender_address"`
	SenderPincode   string           `gorm:"type:varchar(10);not null" json:"sender_pincode"`
	ReceiverName    string           `gorm:"type:varchar(128);not null" json:"receiver_name"`
	ReceiverPhone   string           `gorm:"type:varchar(20);not null" json:"receiver_phone"`
	ReceiverAddress string           `gorm:"type:varchar(256)" json:"receiver_address"`
	ReceiverPincode string           `gorm:"type:varchar(10);not null" json:"receiver_pincode"`
	ServiceType     string           `gorm:"type:varchar(32);not null" json:"service_type"`
	Weight          decimal.Decimal  `gorm:"type:decimal(6,2);not null" json:"weight"`
	Pieces          int              `gorm:"not null;default:1" json:"pieces"`
	PaymentMode     string           `gorm:"type:varchar(20);not null" json:"payment_mode"`
	BaseAmount      decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"base_amount"`
	RuleDiscount    decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"rule_discount"`
	CouponCode      string           `gorm:"type:varchar(32)" json:"coupon_code"`
	CouponDiscount  decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"coupon_discount"`
	PayableAmount   decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"payable_amount"`
	Status          string           `gorm:"type:varchar(20);index;not null;default:BOOKED" json:"status"`
	Breakdown       PricingBreakdown `gorm:"type:text" json:"breakdown"`
	CreatedAt       time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Shipment) TableName() string {
	return "shipment"
}
