package repository

import (
	"context"
	"errors"

	"logipay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByFranchiseCustomer(ctx context.Context, tx *gorm.DB, franchiseID, customerID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).
		Where("franchise_id = ? AND customer_id = ?", franchiseID, customerID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetByID(ctx context.Context, tx *gorm.DB, walletID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate lazily provisions the wallet for a (franchise, customer) pair.
// The insert is conflict-tolerant so two concurrent first-time operations
// cannot create duplicates.
func (r *WalletRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, franchiseID, customerID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	wallet, err := r.GetByFranchiseCustomer(ctx, tx, franchiseID, customerID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.Wallet{
		FranchiseID: franchiseID,
		CustomerID:  customerID,
		Balance:     decimal.Zero,
		CreditLimit: decimal.Zero,
		Status:      model.WalletStatusActive,
	}

	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "franchise_id"}, {Name: "customer_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}

	return r.GetByFranchiseCustomer(ctx, tx, franchiseID, customerID)
}

// GetForUpdate loads the wallet row under an exclusive lock. The lock is held
// until the surrounding transaction commits or rolls back, which is what
// serializes concurrent mutations of the same wallet.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, walletID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := forUpdate(tx.WithContext(ctx)).
		Where("id = ?", walletID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// UpdateBalance persists the new balance computed under the row lock.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, walletID int64, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}
