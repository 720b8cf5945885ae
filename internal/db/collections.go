package db

import (
	"strings"

	"github.com/sitepages/internal/stream"
	"github.com/sitepages/internal/util"
)

// LinkTargets resolves referenced pages and documents to URLs. The boolean
// is false when the target no longer exists.
type LinkTargets interface {
	PageURL(id uint) (string, bool)
	DocumentURL(id uint) (string, bool)
}

// LinkFields 三选一链接：站内页面、文档或外部地址。
type LinkFields struct {
	LinkExternal   string `gorm:"size:500" json:"link_external" validate:"omitempty,url"`
	LinkPageID     *uint  `gorm:"index" json:"link_page_id"`
	LinkDocumentID *uint  `gorm:"index" json:"link_document_id"`
}

// Resolve returns the URL the link points at. A page reference wins over a
// document reference, which wins over the external URL. Dangling references
// are skipped.
func (l LinkFields) Resolve(targets LinkTargets) string {
	if targets != nil {
		if l.LinkPageID != nil {
			if url, ok := targets.PageURL(*l.LinkPageID); ok {
				return url
			}
		}
		if l.LinkDocumentID != nil {
			if url, ok := targets.DocumentURL(*l.LinkDocumentID); ok {
				return url
			}
		}
	}
	return strings.TrimSpace(l.LinkExternal)
}

// CarouselItem is an ordered slide attached to a page.
type CarouselItem struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	PageID    uint   `gorm:"index;not null" json:"page_id"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`
	ImageID   *uint  `gorm:"index" json:"image_id"`
	EmbedURL  string `gorm:"size:500" json:"embed_url" validate:"omitempty,url"`
	Caption   string `gorm:"size:255" json:"caption" validate:"max=255"`
	LinkFields
}

// RelatedLink is an ordered, titled link attached to a page.
type RelatedLink struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	PageID    uint   `gorm:"index;not null" json:"page_id"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`
	Title     string `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	LinkFields
}

// Section groups body blocks under an optional heading. Columns is a display
// hint only.
type Section struct {
	ID        uint          `gorm:"primarykey" json:"id"`
	PageID    uint          `gorm:"index;not null" json:"page_id"`
	SortOrder int           `gorm:"not null;default:0" json:"sort_order"`
	Title     string        `gorm:"size:255" json:"title" validate:"max=255"`
	CustomID  string        `gorm:"size:50" json:"custom_id" validate:"max=50"`
	Columns   int           `gorm:"not null;default:1" json:"columns" validate:"min=1"`
	Blocks    stream.Stream `json:"blocks"`
}

// AnchorID returns the custom id, or a slug of the title.
func (s Section) AnchorID() string {
	if id := strings.TrimSpace(s.CustomID); id != "" {
		return id
	}
	return util.Slugify(s.Title)
}
