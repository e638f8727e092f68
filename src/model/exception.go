package model

import "time"

// Exception is an append-only record of a non-fatal runtime failure, kept so
// broker or persistence hiccups can be diagnosed without halting the strategy.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "options_runner"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "controller"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "PlaceBracket"

	// Error information
	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// Severity level
	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
