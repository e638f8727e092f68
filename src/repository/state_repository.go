package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"optionsrunner/src/database"
	"optionsrunner/src/model"
)

// StateRepository owns the small named records that make the loop crash-safe:
// per-leg trailing state, the hourly evaluation gates and the position-id
// counter. Every record is overwritten wholesale after each transition.
type StateRepository struct {
	db *gorm.DB
}

func NewStateRepository() *StateRepository {
	return &StateRepository{
		db: database.MainDB,
	}
}

func (r *StateRepository) WithDB(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// ---------------------------------------------------
// Leg trailing state
// ---------------------------------------------------

// LegState loads the trailing record for (instrument, leg), returning a fresh
// zeroed record when none was persisted yet.
func (r *StateRepository) LegState(
	ctx context.Context,
	instrument string,
	leg model.OptionLeg,
) (*model.LegState, error) {

	var state model.LegState
	err := r.db.WithContext(ctx).
		Where("instrument = ? AND leg = ?", instrument, leg).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.LegState{Instrument: instrument, Leg: leg}, nil
		}
		return nil, err
	}
	return &state, nil
}

// SaveLegState upserts the trailing record keyed by (instrument, leg).
func (r *StateRepository) SaveLegState(
	ctx context.Context,
	state *model.LegState,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":       "StateRepository",
		"op":         "SaveLegState",
		"instrument": state.Instrument,
		"leg":        state.Leg,
		"stop":       state.TrailingStop,
		"cycles":     state.CompletedCycles,
	}).Debug("Checkpointing leg state")

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instrument"}, {Name: "leg"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trailing_stop", "prev_high", "increment", "target", "completed_cycles",
		}),
	}).Create(state).Error
}

// ---------------------------------------------------
// Hourly evaluation gate
// ---------------------------------------------------

// TrySetHourGate marks (instrument, day, hour) as evaluated. Returns true the
// first time the gate is taken; false when it was already set, including by a
// previous process incarnation.
func (r *StateRepository) TrySetHourGate(
	ctx context.Context,
	instrument string,
	day string,
	hour int,
) (bool, error) {

	gate := model.HourGate{Instrument: instrument, Day: day, Hour: hour}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument"}, {Name: "day"}, {Name: "hour"}},
		DoNothing: true,
	}).Create(&gate)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ---------------------------------------------------
// Position-id counter
// ---------------------------------------------------

// NextPositionID reserves the next position id. The increment is persisted
// before any order is placed so ids are never reused, even when the attempt
// later aborts and hands the id back.
func (r *StateRepository) NextPositionID(
	ctx context.Context,
) (uint, error) {

	counter, err := r.counter(ctx)
	if err != nil {
		return 0, err
	}

	counter.Value++
	if err := r.db.WithContext(ctx).Save(counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// ReleasePositionID rolls the counter back after an entry where zero accounts
// filled. Only the most recently reserved id can be released.
func (r *StateRepository) ReleasePositionID(
	ctx context.Context,
	id uint,
) error {

	counter, err := r.counter(ctx)
	if err != nil {
		return err
	}
	if counter.Value != id {
		logger.WithFields(map[string]interface{}{
			"repo":     "StateRepository",
			"op":       "ReleasePositionID",
			"id":       id,
			"reserved": counter.Value,
		}).Warn("Stale position id release, keeping counter")
		return nil
	}

	counter.Value--
	return r.db.WithContext(ctx).Save(counter).Error
}

func (r *StateRepository) counter(ctx context.Context) (*model.Counter, error) {
	var counter model.Counter
	err := r.db.WithContext(ctx).
		Where("name = ?", model.CounterPositionID).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.Counter{Name: model.CounterPositionID}, nil
		}
		return nil, err
	}
	return &counter, nil
}
