package repository

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// BracketRepository tracks outstanding bracket (two-leg OCO) orders. A row
// exists only while its position is open.
type BracketRepository struct {
	db *gorm.DB
}

func NewBracketRepository() *BracketRepository {
	return &BracketRepository{
		db: database.MainDB,
	}
}

func (r *BracketRepository) WithDB(db *gorm.DB) *BracketRepository {
	return &BracketRepository{db: db}
}

func (r *BracketRepository) Create(
	ctx context.Context,
	bracket *model.BracketOrder,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "BracketRepository",
		"op":          "Create",
		"position_id": bracket.PositionID,
		"user":        bracket.UserID,
		"trigger_id":  bracket.TriggerID,
	}).Info("Recording bracket order")

	return r.db.WithContext(ctx).Create(bracket).Error
}

// FindAll returns every outstanding bracket order.
func (r *BracketRepository) FindAll(
	ctx context.Context,
) ([]model.BracketOrder, error) {

	var brackets []model.BracketOrder
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&brackets).Error
	return brackets, err
}

// FindByPosition returns the outstanding brackets protecting one position.
func (r *BracketRepository) FindByPosition(
	ctx context.Context,
	positionID uint,
) ([]model.BracketOrder, error) {

	var brackets []model.BracketOrder
	err := r.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("id ASC").
		Find(&brackets).Error
	return brackets, err
}

// CountByPosition reports how many brackets remain outstanding for a
// position; zero means the position can be closed out.
func (r *BracketRepository) CountByPosition(
	ctx context.Context,
	positionID uint,
) (int64, error) {

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BracketOrder{}).
		Where("position_id = ?", positionID).
		Count(&count).Error
	return count, err
}

// ReplaceTrigger swaps in the fresh broker trigger id and levels after a
// successful modify.
func (r *BracketRepository) ReplaceTrigger(
	ctx context.Context,
	bracketID uint,
	newTriggerID string,
	stop, target decimal.Decimal,
) error {

	return r.db.WithContext(ctx).
		Model(&model.BracketOrder{}).
		Where("id = ?", bracketID).
		Updates(map[string]interface{}{
			"trigger_id":   newTriggerID,
			"stop_price":   stop,
			"target_price": target,
		}).Error
}

// Delete removes a bracket once its sell order is observed filled.
func (r *BracketRepository) Delete(
	ctx context.Context,
	bracketID uint,
) error {

	return r.db.WithContext(ctx).
		Delete(&model.BracketOrder{}, bracketID).Error
}
