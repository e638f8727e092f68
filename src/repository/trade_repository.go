package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// TradeRepository appends terminal trade rows. Trades are immutable facts;
// there is no update path.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{
		db: database.MainDB,
	}
}

func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(
	ctx context.Context,
	trade *model.TradeRecord,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "Create",
		"position_id": trade.PositionID,
		"user":        trade.UserID,
		"symbol":      trade.Symbol,
		"exit_type":   trade.ExitType,
	}).Info("Recording completed trade")

	return r.db.WithContext(ctx).Create(trade).Error
}

// FindByPosition returns the trades produced by one position.
func (r *TradeRepository) FindByPosition(
	ctx context.Context,
	positionID uint,
) ([]model.TradeRecord, error) {

	var trades []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("id ASC").
		Find(&trades).Error
	return trades, err
}
