package model

import "time"

// AccountCredential holds one user's broker API key and the session token
// produced by the daily login exchange. The access token is encrypted at rest;
// the runner decrypts it when building the account pool.
type AccountCredential struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               string    `gorm:"size:60;uniqueIndex" json:"user_id"`
	APIKey               string    `gorm:"size:120" json:"api_key"`
	AccessTokenEncrypted string    `gorm:"size:255" json:"-"`
	Historical           bool      `json:"historical"` // account with historical-data subscription
	UpdatedAt            time.Time `json:"updated_at"`
}

func (AccountCredential) TableName() string {
	return "account_credentials"
}
