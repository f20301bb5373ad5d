package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RechargeStatusPending = "PENDING"
	RechargeStatusSuccess = "SUCCESS"
	RechargeStatusFailed  = "FAILED"
)

// WalletRecharge is a top-up intent awaiting an asynchronous payment
// confirmation. It transitions PENDING -> SUCCESS or PENDING -> FAILED
// exactly once, driven by the provider webhook; SUCCESS links exactly one
// ledger transaction.
//
// NetAmount is what the customer actually pays (amount + GST); only the base
// amount is credited to the wallet.
type WalletRecharge struct {
	ID                  int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderReference      string              `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_reference"`
	WalletID            int64               `gorm:"index;not null" json:"wallet_id"`
	Amount              decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"amount"`
	GSTPercent          decimal.Decimal     `gorm:"type:decimal(5,2);not null" json:"gst_percent"`
	GSTAmount           decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"gst_amount"`
	NetAmount           decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"net_amount"`
	Status              string              `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	PaymentMethod       string              `gorm:"type:varchar(32)" json:"payment_method"`
	Gateway             string              `gorm:"type:varchar(32)" json:"gateway"`
	CouponID            *int64              `gorm:"index" json:"coupon_id"`
	DiscountAmount      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	BonusAmount         decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"bonus_amount"`
	WalletTransactionID *int64              `json:"wallet_transaction_id"`
	PaymentID           string              `gorm:"type:varchar(64)" json:"payment_id"`
	Payload             JSONMap             `gorm:"type:text" json:"payload"`
	CreatedAt           time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletRecharge) TableName() string {
	return "wallet_recharge"
}
