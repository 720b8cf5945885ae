package db

import (
	"fmt"
	"time"

	"github.com/sitepages/internal/stream"
)

// Content is the kind specific part of a page.
type Content interface {
	PageKind() PageKind
	OwnerID() uint
}

// SitePage is the general purpose page with a hero area and sections.
type SitePage struct {
	PageID    uint          `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Hero      stream.Stream `json:"hero"`
	Intro     string        `gorm:"type:text" json:"intro"`
	Body      stream.Stream `json:"body"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StandardPage is a rich text page with a feed image.
type StandardPage struct {
	PageID      uint      `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Intro       string    `gorm:"type:text" json:"intro"`
	Body        string    `gorm:"type:text" json:"body"`
	FeedImageID *uint     `gorm:"index" json:"feed_image_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StandardIndexPage lists StandardPage descendants.
type StandardIndexPage struct {
	PageID      uint      `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Intro       string    `gorm:"type:text" json:"intro"`
	FeedImageID *uint     `gorm:"index" json:"feed_image_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TextIndexPage lists TextPage descendants.
type TextIndexPage struct {
	PageID    uint      `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Intro     string    `gorm:"type:text" json:"intro"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TextPage is a dated, content heavy page with one body stream.
type TextPage struct {
	PageID      uint          `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Body        stream.Stream `json:"body"`
	Date        time.Time     `gorm:"index;not null" json:"date"`
	FeedImageID *uint         `gorm:"index" json:"feed_image_id"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (SitePage) PageKind() PageKind          { return KindSitePage }
func (StandardPage) PageKind() PageKind      { return KindStandardPage }
func (StandardIndexPage) PageKind() PageKind { return KindStandardIndexPage }
func (TextIndexPage) PageKind() PageKind     { return KindTextIndexPage }
func (TextPage) PageKind() PageKind          { return KindTextPage }

func (c SitePage) OwnerID() uint          { return c.PageID }
func (c StandardPage) OwnerID() uint      { return c.PageID }
func (c StandardIndexPage) OwnerID() uint { return c.PageID }
func (c TextIndexPage) OwnerID() uint     { return c.PageID }
func (c TextPage) OwnerID() uint          { return c.PageID }

// NewContent returns an empty content row of the given kind, ready to be
// created or loaded into.
func NewContent(kind PageKind, pageID uint) (Content, error) {
	switch kind {
	case KindSitePage:
		return &SitePage{PageID: pageID}, nil
	case KindStandardPage:
		return &StandardPage{PageID: pageID}, nil
	case KindStandardIndexPage:
		return &StandardIndexPage{PageID: pageID}, nil
	case KindTextIndexPage:
		return &TextIndexPage{PageID: pageID}, nil
	case KindTextPage:
		return &TextPage{PageID: pageID}, nil
	default:
		return nil, fmt.Errorf("unknown page kind %q", kind)
	}
}

// ContentModels returns a zero value of every content table, used for
// migrations and bulk deletes.
func ContentModels() []any {
	return []any{
		&SitePage{},
		&StandardPage{},
		&StandardIndexPage{},
		&TextIndexPage{},
		&TextPage{},
	}
}
