package repository

import (
	"context"

	"logipay/internal/model"

	"gorm.io/gorm"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(ctx context.Context, tx *gorm.DB, usage *model.CouponUsage) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(usage).Error
}

func (r *UsageRepository) CountByCoupon(ctx context.Context, tx *gorm.DB, couponID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.CouponUsage{}).
		Where("coupon_id = ?", couponID).
		Count(&count).Error
	return count, err
}

func (r *UsageRepository) CountByCouponAndCustomer(ctx context.Context, tx *gorm.DB, couponID, customerID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.CouponUsage{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&count).Error
	return count, err
}
