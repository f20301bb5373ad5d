package repository

import (
	"context"
	"errors"

	"logipay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRuleNotFound = errors.New("discount rule not found")
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Create(ctx context.Context, rule *model.DiscountRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*model.DiscountRule, error) {
	var rule model.DiscountRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListActiveByFranchise returns ACTIVE rules in ascending priority order.
// Evaluation order matters only as a deterministic tie-break; the engine
// still selects by largest discount.
func (r *RuleRepository) ListActiveByFranchise(ctx context.Context, tx *gorm.DB, franchiseID int64) ([]*model.DiscountRule, error) {
	if tx == nil {
		tx = r.db
	}
	var rules []*model.DiscountRule
	err := tx.WithContext(ctx).
		Where("franchise_id = ? AND status = ?", franchiseID, model.RuleStatusActive).
		Order("priority ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

func (r *RuleRepository) ListByFranchise(ctx context.Context, franchiseID int64) ([]*model.DiscountRule, error) {
	var rules []*model.DiscountRule
	err := r.db.WithContext(ctx).
		Where("franchise_id = ?", franchiseID).
		Order("priority ASC, id ASC").
		Find(&rules).Error
	return rules, err
}
