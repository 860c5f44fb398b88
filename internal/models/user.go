// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a registered account in the Snipted application.
// Reputation is adjusted by like/unlike events on the user's snippets and
// never drops below zero.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	Reputation   int       `gorm:"not null;default:0" json:"reputation"`
	CreatedAt    time.Time `json:"created_at"`

	Snippets []Snippet `gorm:"foreignKey:UserID" json:"snippets,omitempty"`
}
