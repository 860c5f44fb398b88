package models

// Tag is a normalized label attached to snippets. Names are stored trimmed
// and lower-cased; the unique index is what makes concurrent find-or-create
// safe. Tags are never deleted, orphans persist.
type Tag struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Name     string    `gorm:"uniqueIndex;not null;size:30" json:"name"`
	Snippets []Snippet `gorm:"many2many:snippet_tags;" json:"-"`
}
