package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// ContractRepository reads and refreshes the broker instrument dump: the
// table the strike resolver and future-proxy lookup run against.
type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository() *ContractRepository {
	return &ContractRepository{
		db: database.MainDB,
	}
}

func (r *ContractRepository) WithDB(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// UpsertAll replaces contract rows in place, keyed by trading symbol.
// Used by the premarket sync job.
func (r *ContractRepository) UpsertAll(
	ctx context.Context,
	contracts []model.Contract,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":  "ContractRepository",
		"op":    "UpsertAll",
		"count": len(contracts),
	}).Info("Refreshing instrument dump")

	const batch = 500
	for start := 0; start < len(contracts); start += batch {
		end := start + batch
		if end > len(contracts) {
			end = len(contracts)
		}

		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"token", "name", "expiry", "strike", "instrument_type", "exchange", "lot_size",
			}),
		}).Create(contracts[start:end]).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// NearestExpiry returns the earliest expiry on file for (name, type).
func (r *ContractRepository) NearestExpiry(
	ctx context.Context,
	name string,
	instrumentType string,
) (time.Time, error) {

	var contract model.Contract
	err := r.db.WithContext(ctx).
		Where("name = ? AND instrument_type = ?", name, instrumentType).
		Order("expiry ASC").
		First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return contract.Expiry, nil
}

// FindOption looks up the tradable contract matching (name, strike, expiry,
// leg). Returns (nil, nil) when no such contract is listed.
func (r *ContractRepository) FindOption(
	ctx context.Context,
	name string,
	strike decimal.Decimal,
	expiry time.Time,
	leg model.OptionLeg,
) (*model.Contract, error) {

	var contract model.Contract
	err := r.db.WithContext(ctx).
		Where("name = ? AND strike = ? AND expiry = ? AND instrument_type = ?",
			name, strike, expiry, string(leg)).
		First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}

// NearestFuture returns the nearest-expiry future for the underlying, used as
// the signal proxy series. Returns (nil, nil) when none is listed.
func (r *ContractRepository) NearestFuture(
	ctx context.Context,
	name string,
) (*model.Contract, error) {

	var contract model.Contract
	err := r.db.WithContext(ctx).
		Where("name = ? AND instrument_type = ?", name, "FUT").
		Order("expiry ASC").
		First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}
