package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RuleStatusActive   = "ACTIVE"
	RuleStatusInactive = "INACTIVE"
)

const (
	DiscountTypeFlat    = "FLAT"
	DiscountTypePercent = "PERCENT"
	DiscountTypeBonus   = "BONUS"
)

// Pricing scopes shared by rules, coupons and their evaluation contexts.
const (
	ApplyShipment = "SHIPMENT"
	ApplyRecharge = "RECHARGE"
	ApplyBoth     = "BOTH"
)

// RuleCondition is the structured predicate attached to a discount rule.
// Absent sub-conditions are wildcards: a zero-value condition matches every
// context. Serialized as JSON only at the storage boundary.
type RuleCondition struct {
	CustomerIDs      []int64             `json:"customer_ids,omitempty"`
	CustomerTiers    []string            `json:"customer_tiers,omitempty"`
	ServiceTypes     []string            `json:"service_types,omitempty"`
	Pincodes         []string            `json:"pincodes,omitempty"`
	Routes           []string            `json:"routes,omitempty"` // "from-to" pincode pairs
	MinAmount        decimal.NullDecimal `json:"min_amount,omitempty"`
	MaxAmount        decimal.NullDecimal `json:"max_amount,omitempty"`
	SLADelayHours    *int                `json:"sla_delay_hours,omitempty"`
	MinShipmentCount *int                `json:"min_shipment_count,omitempty"`
}

func (c RuleCondition) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

func (c *RuleCondition) Scan(value interface{}) error {
	if value == nil {
		*c = RuleCondition{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported type for RuleCondition")
	}
	if len(b) == 0 {
		*c = RuleCondition{}
		return nil
	}
	return json.Unmarshal(b, c)
}

// DiscountRule is a franchise-configured automatic price adjustment.
// Priority only orders evaluation; selection among matching rules is by
// largest computed discount.
type DiscountRule struct {
	ID           int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	FranchiseID  int64               `gorm:"index;not null" json:"franchise_id"`
	RuleName     string              `gorm:"type:varchar(64);not null" json:"rule_name"`
	RuleType     string              `gorm:"type:varchar(32)" json:"rule_type"`
	AppliesTo    string              `gorm:"type:varchar(20);not null;default:SHIPMENT" json:"applies_to"`
	DiscountType string              `gorm:"type:varchar(10);not null" json:"discount_type"`
	Value        decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"value"`
	MaxDiscount  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount"`
	Priority     int                 `gorm:"not null;default:100" json:"priority"`
	Status       string              `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	Condition    RuleCondition       `gorm:"type:text" json:"condition"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DiscountRule) TableName() string {
	return "discount_rule"
}
