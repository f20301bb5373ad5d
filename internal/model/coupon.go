package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CouponStatusActive    = "ACTIVE"
	CouponStatusInactive  = "INACTIVE"
	CouponStatusExpired   = "EXPIRED"
	CouponStatusScheduled = "SCHEDULED"
)

// Coupon is a customer-presented code granting a bounded discount or, for
// recharges, a bonus credit. Codes are stored upper-case and unique per
// franchise. Nil usage limits mean unlimited.
type Coupon struct {
	ID            int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	FranchiseID   int64               `gorm:"not null;uniqueIndex:idx_coupon_franchise_code" json:"franchise_id"`
	Code          string              `gorm:"type:varchar(32);not null;uniqueIndex:idx_coupon_franchise_code" json:"code"`
	Title         string              `gorm:"type:varchar(128)" json:"title"`
	DiscountType  string              `gorm:"type:varchar(10);not null" json:"discount_type"`
	Value         decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"value"`
	MaxDiscount   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount"`
	MinOrderValue decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"min_order_value"`
	UsageLimit    *int                `json:"usage_limit"`
	PerUserLimit  *int                `json:"per_user_limit"`
	ApplicableOn  string              `gorm:"type:varchar(20);not null;default:BOTH" json:"applicable_on"`
	Status        string              `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	ValidFrom     time.Time           `gorm:"not null" json:"valid_from"`
	ValidTo       time.Time           `gorm:"not null" json:"valid_to"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupon"
}

// AppliesToContext reports whether the coupon may be redeemed in the given
// pricing context (SHIPMENT or RECHARGE).
func (c *Coupon) AppliesToContext(context string) bool {
	return c.ApplicableOn == ApplyBoth || c.ApplicableOn == context
}

// CouponUsage is the append-only fact of one successful coupon application.
// Rows exist only to enforce usage caps and for audit; they are never
// mutated.
type CouponUsage struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID       int64           `gorm:"index;not null" json:"coupon_id"`
	CustomerID     int64           `gorm:"index;not null" json:"customer_id"`
	Context        string          `gorm:"type:varchar(20);not null" json:"context"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	ShipmentID     *int64          `gorm:"index" json:"shipment_id"`
	RechargeID     *int64          `gorm:"index" json:"recharge_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"used_at"`
}

func (CouponUsage) TableName() string {
	return "coupon_usage"
}
