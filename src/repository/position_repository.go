package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// PositionRepository owns the durable form of open and closed positions.
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository() *PositionRepository {
	return &PositionRepository{
		db: database.MainDB,
	}
}

func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new open position with its pre-assigned id.
func (r *PositionRepository) Create(
	ctx context.Context,
	position *model.Position,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Create",
		"position_id": position.ID,
		"symbol":      position.Symbol,
		"leg":         position.Leg,
	}).Info("Opening position")

	return r.db.WithContext(ctx).Create(position).Error
}

// FindByID fetches one position by id, open or closed. Returns (nil, nil)
// when the id is unknown.
func (r *PositionRepository) FindByID(
	ctx context.Context,
	positionID uint,
) (*model.Position, error) {

	var position model.Position
	err := r.db.WithContext(ctx).
		First(&position, positionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// FindOpen returns every open position, oldest first.
func (r *PositionRepository) FindOpen(
	ctx context.Context,
) ([]model.Position, error) {

	var positions []model.Position
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PositionStatusOpen).
		Order("id ASC").
		Find(&positions).Error
	return positions, err
}

// OpenForLeg returns the open position for (instrument, leg), or (nil, nil).
// There is never more than one.
func (r *PositionRepository) OpenForLeg(
	ctx context.Context,
	instrument string,
	leg model.OptionLeg,
) (*model.Position, error) {

	var position model.Position
	err := r.db.WithContext(ctx).
		Where("instrument = ? AND leg = ? AND status = ?",
			instrument, leg, model.PositionStatusOpen).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// HasOpenForInstrument reports whether any leg of the instrument is open.
func (r *PositionRepository) HasOpenForInstrument(
	ctx context.Context,
	instrument string,
) (bool, error) {

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("instrument = ? AND status = ?", instrument, model.PositionStatusOpen).
		Count(&count).Error
	return count > 0, err
}

// UpdateLTP overwrites the position's cached last traded price.
func (r *PositionRepository) UpdateLTP(
	ctx context.Context,
	positionID uint,
	ltp decimal.Decimal,
) error {

	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", positionID).
		Update("ltp", ltp).Error
}

// UpdateTrailingStop overwrites the position's trailing-stop price.
func (r *PositionRepository) UpdateTrailingStop(
	ctx context.Context,
	positionID uint,
	stop decimal.Decimal,
) error {

	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", positionID).
		Update("trailing_stop", stop).Error
}

// Close marks the position closed once no bracket order remains outstanding.
func (r *PositionRepository) Close(
	ctx context.Context,
	positionID uint,
	closedAt time.Time,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Close",
		"position_id": positionID,
	}).Info("Closing position")

	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", positionID).
		Updates(map[string]interface{}{
			"status":    model.PositionStatusClosed,
			"closed_at": closedAt,
		}).Error
}
