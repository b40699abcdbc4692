package models

import "gorm.io/gorm"

// User is an account holder that can log into the console session.
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}
