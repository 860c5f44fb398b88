package models

import (
	"time"
)

// Like records a user liking a snippet.
// The combination of UserID and SnippetID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_snippet" json:"user_id"`
	SnippetID uint      `gorm:"not null;uniqueIndex:idx_user_snippet" json:"snippet_id"`
	CreatedAt time.Time `json:"created_at"`
}
