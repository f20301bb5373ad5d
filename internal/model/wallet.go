package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletStatusActive  = "active"
	WalletStatusBlocked = "blocked"
)

// Wallet is the prepaid balance account for one (franchise, customer) pair.
//
// Balance is authoritative only together with the ledger: it must always
// equal the closing balance of the newest wallet transaction. Wallets are
// created lazily on the first credit/debit attempt and are never deleted,
// only blocked.
type Wallet struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	FranchiseID     int64           `gorm:"not null;uniqueIndex:idx_wallet_franchise_customer" json:"franchise_id"`
	CustomerID      int64           `gorm:"not null;uniqueIndex:idx_wallet_franchise_customer" json:"customer_id"`
	Balance         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	CreditLimit     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"credit_limit"`
	AllowNegative   bool            `gorm:"not null;default:false" json:"allow_negative"`
	Status          string          `gorm:"type:varchar(20);not null;default:active" json:"status"`
	LastRechargedAt *time.Time      `json:"last_recharged_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

func (w *Wallet) IsBlocked() bool {
	return w.Status == WalletStatusBlocked
}
