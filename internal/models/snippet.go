package models

import (
	"time"
)

// Snippet represents a shared piece of code. The owning user is fixed at
// creation time and never changes.
type Snippet struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null;index" json:"title"`
	CodeContent string `gorm:"type:text;not null" json:"code_content"`
	Language    string `gorm:"not null;default:text" json:"language"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	User        *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tags        []Tag  `gorm:"many2many:snippet_tags;" json:"tags"`
	// LikeCount is not persisted; computed at query time from the likes table
	LikeCount int `gorm:"->" json:"like_count"`
	// Liked indicates whether the current requesting user liked this snippet (computed)
	Liked     bool      `gorm:"->" json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
