package models

import "time"

// VerificationCode is a one-time code emailed to confirm an address.
// Rows are deleted once consumed or found expired, and swept periodically.
type VerificationCode struct {
	BaseModel
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Code      string    `gorm:"size:6" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	Attempts  int       `json:"attempts"`
}
