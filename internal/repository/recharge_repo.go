package repository

import (
	"context"
	"errors"

	"logipay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRechargeNotFound = errors.New("recharge not found")
)

type RechargeRepository struct {
	db *gorm.DB
}

func NewRechargeRepository(db *gorm.DB) *RechargeRepository {
	return &RechargeRepository{db: db}
}

func (r *RechargeRepository) Create(ctx context.Context, tx *gorm.DB, recharge *model.WalletRecharge) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(recharge).Error
}

func (r *RechargeRepository) GetByOrderReference(ctx context.Context, orderReference string) (*model.WalletRecharge, error) {
	var recharge model.WalletRecharge
	err := r.db.WithContext(ctx).Where("order_reference = ?", orderReference).First(&recharge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRechargeNotFound
		}
		return nil, err
	}
	return &recharge, nil
}

// GetByOrderReferenceForUpdate locks the intent row so duplicate webhook
// deliveries for the same order reference serialize.
func (r *RechargeRepository) GetByOrderReferenceForUpdate(ctx context.Context, tx *gorm.DB, orderReference string) (*model.WalletRecharge, error) {
	var recharge model.WalletRecharge
	err := forUpdate(tx.WithContext(ctx)).
		Where("order_reference = ?", orderReference).
		First(&recharge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRechargeNotFound
		}
		return nil, err
	}
	return &recharge, nil
}

func (r *RechargeRepository) Update(ctx context.Context, tx *gorm.DB, rechargeID int64, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.WalletRecharge{}).
		Where("id = ?", rechargeID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRechargeNotFound
	}
	return nil
}

func (r *RechargeRepository) ListByWalletID(ctx context.Context, walletID int64, page, pageSize int) ([]*model.WalletRecharge, int64, error) {
	var recharges []*model.WalletRecharge
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletRecharge{}).Where("wallet_id = ?", walletID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&recharges).Error

	return recharges, total, err
}
