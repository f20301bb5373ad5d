package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeCredit = "CREDIT"
	TransactionTypeDebit  = "DEBIT"
)

// Transaction sources. Free-form tags, these are the ones the platform emits.
const (
	TransactionSourceShipment   = "SHIPMENT"
	TransactionSourceRecharge   = "RECHARGE"
	TransactionSourceBonus      = "BONUS"
	TransactionSourceAdjustment = "ADJUSTMENT"
)

// JSONMap is an opaque structured payload stored as JSON text.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, m)
}

// WalletTransaction is one immutable ledger entry.
//
// The ledger is append-only: rows are never updated or deleted, and every
// successful balance mutation writes exactly one. Opening and closing
// balances are recorded so the ledger can be reconciled against the wallet
// without trusting the cached balance.
type WalletTransaction struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	WalletID       int64           `gorm:"index;not null" json:"wallet_id"`
	Type           string          `gorm:"type:varchar(10);not null" json:"type"`
	Source         string          `gorm:"type:varchar(32);not null" json:"source"`
	ReferenceID    string          `gorm:"type:varchar(64);index;not null" json:"reference_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"opening_balance"`
	ClosingBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"closing_balance"`
	Metadata       JSONMap         `gorm:"type:text" json:"metadata"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}
