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

// CredentialRepository stores broker API keys and encrypted session tokens.
type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		db: database.MainDB,
	}
}

func (r *CredentialRepository) WithDB(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save upserts one user's credential row, keyed by user id.
func (r *CredentialRepository) Save(
	ctx context.Context,
	cred *model.AccountCredential,
) error {

	logger.WithFields(map[string]interface{}{
		"repo": "CredentialRepository",
		"op":   "Save",
		"user": cred.UserID,
	}).Info("Storing session credential")

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"api_key", "access_token_encrypted", "historical",
		}),
	}).Create(cred).Error
}

// All returns every stored account credential.
func (r *CredentialRepository) All(
	ctx context.Context,
) ([]model.AccountCredential, error) {

	var creds []model.AccountCredential
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&creds).Error
	return creds, err
}

// FindByUser returns one user's credential, or (nil, nil) when absent.
func (r *CredentialRepository) FindByUser(
	ctx context.Context,
	userID string,
) (*model.AccountCredential, error) {

	var cred model.AccountCredential
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}
