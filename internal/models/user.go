package models

import "time"

// User is an account holder. UID is the public identifier: it is the
// value stored as userId on step documents and carried in session tokens.
type User struct {
	ID                 uint      `gorm:"primaryKey"`
	UID                string    `gorm:"column:uid;uniqueIndex;not null"`
	Email              string    `gorm:"uniqueIndex;not null"`
	PasswordHash       string    `gorm:"not null"`
	MustChangePassword bool      `gorm:"not null;default:false"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time
}
