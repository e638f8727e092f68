package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// ExceptionRepository persists the append-only runtime-error history.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create appends a new exception row.
func (r *ExceptionRepository) Create(
	ctx context.Context,
	exc *model.Exception,
) error {

	logger.WithFields(map[string]interface{}{
		"service": exc.Service,
		"module":  exc.Module,
		"method":  exc.Method,
		"level":   exc.Level,
	}).Error("Persisting runtime exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// FindLatest returns the newest exceptions, most recent first.
func (r *ExceptionRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.Exception, error) {

	if limit <= 0 {
		limit = 50
	}

	var rows []model.Exception
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
