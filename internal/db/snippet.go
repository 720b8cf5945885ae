package db

import "time"

// CallToAction is a reusable snippet referenced by call_to_action blocks.
type CallToAction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	Text      string    `gorm:"size:255;not null" json:"text" validate:"required,max=255"`
	URL       string    `gorm:"size:500" json:"url" validate:"omitempty,uri"`
	LinkText  string    `gorm:"size:255" json:"link_text" validate:"max=255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 保持表名为复数形式。
func (CallToAction) TableName() string {
	return "call_to_actions"
}

// SnippetReference records one block pointing at a snippet. Rows for a page
// are rebuilt whenever its content is saved.
type SnippetReference struct {
	ID        uint   `gorm:"primarykey"`
	SnippetID uint   `gorm:"index;not null"`
	PageID    uint   `gorm:"index;not null"`
	Field     string `gorm:"size:100;not null"`
	BlockID   string `gorm:"size:64;not null"`
}
