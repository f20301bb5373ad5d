package repository

import (
	"context"
	"errors"

	"logipay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

// GetByCode looks up a franchise coupon by its normalized (upper-case) code.
func (r *CouponRepository) GetByCode(ctx context.Context, tx *gorm.DB, franchiseID int64, code string) (*model.Coupon, error) {
	if tx == nil {
		tx = r.db
	}
	var coupon model.Coupon
	err := tx.WithContext(ctx).
		Where("franchise_id = ? AND code = ?", franchiseID, code).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

// GetByIDForUpdate re-reads the coupon row under an exclusive lock so a
// usage-cap check and the following usage insert run as one serialized
// check-and-increment.
func (r *CouponRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Coupon, error) {
	var coupon model.Coupon
	err := forUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *CouponRepository) ListByFranchise(ctx context.Context, franchiseID int64) ([]*model.Coupon, error) {
	var coupons []*model.Coupon
	err := r.db.WithContext(ctx).
		Where("franchise_id = ?", franchiseID).
		Order("id DESC").
		Find(&coupons).Error
	return coupons, err
}
