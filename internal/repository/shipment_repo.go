package repository

import (
	"context"
	"errors"

	"logipay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrShipmentNotFound = errors.New("shipment not found")
)

type ShipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) Create(ctx context.Context, tx *gorm.DB, shipment *model.Shipment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(shipment).Error
}

func (r *ShipmentRepository) GetByTrackingCode(ctx context.Context, trackingCode string) (*model.Shipment, error) {
	var shipment model.Shipment
	err := r.db.WithContext(ctx).Where("tracking_code = ?", trackingCode).First(&shipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, err
	}
	return &shipment, nil
}

func (r *ShipmentRepository) ListByFranchise(ctx context.Context, franchiseID int64, page, pageSize int) ([]*model.Shipment, int64, error) {
	var shipments []*model.Shipment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Shipment{}).Where("franchise_id = ?", franchiseID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&shipments).Error

	return shipments, total, err
}
