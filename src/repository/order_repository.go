package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// OrderRepository persists per-account order rows, successful and failed
// alike; the failed rows double as the failed-order history.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		db: database.MainDB,
	}
}

func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts one account-order row.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.AccountOrder,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "Create",
		"position_id": order.PositionID,
		"user":        order.UserID,
		"role":        order.Role,
		"status":      order.Status,
	}).Debug("Recording account order")

	return r.db.WithContext(ctx).Create(order).Error
}

// EntryForPosition returns the successful entry row for (position, account),
// or (nil, nil) when that account never filled.
func (r *OrderRepository) EntryForPosition(
	ctx context.Context,
	positionID uint,
	userID string,
) (*model.AccountOrder, error) {

	var order model.AccountOrder
	err := r.db.WithContext(ctx).
		Where("position_id = ? AND user_id = ? AND role = ? AND status = ?",
			positionID, userID, model.OrderRoleEntry, model.OrderStatusComplete).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindFailed returns the failed-order history, newest first.
func (r *OrderRepository) FindFailed(
	ctx context.Context,
	limit int,
) ([]model.AccountOrder, error) {

	if limit <= 0 {
		limit = 50
	}

	var rows []model.AccountOrder
	err := r.db.WithContext(ctx).
		Where("status <> ?", model.OrderStatusComplete).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
