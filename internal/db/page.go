package db

import (
	"time"

	"gorm.io/gorm"
)

// PageKind 标识页面类型，对应一张内容表。
type PageKind string

const (
	KindSitePage          PageKind = "site_page"
	KindStandardPage      PageKind = "standard_page"
	KindStandardIndexPage PageKind = "standard_index_page"
	KindTextPage          PageKind = "text_page"
	KindTextIndexPage     PageKind = "text_index_page"
)

// PageKinds lists every kind in a stable order.
var PageKinds = []PageKind{
	KindSitePage,
	KindStandardPage,
	KindStandardIndexPage,
	KindTextPage,
	KindTextIndexPage,
}

// Valid reports whether k is a known page kind.
func (k PageKind) Valid() bool {
	for _, known := range PageKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Label returns the admin facing name of the kind.
func (k PageKind) Label() string {
	switch k {
	case KindSitePage:
		return "Page"
	case KindStandardPage:
		return "Standard page"
	case KindStandardIndexPage:
		return "Standard index page"
	case KindTextPage:
		return "Text page"
	case KindTextIndexPage:
		return "Text index page"
	default:
		return string(k)
	}
}

// HasSections 仅站点页拥有分区。
func (k PageKind) HasSections() bool {
	return k == KindSitePage
}

// HasCarousel reports whether pages of this kind own carousel items.
func (k PageKind) HasCarousel() bool {
	return k == KindSitePage || k == KindStandardPage || k == KindTextPage
}

// ListedKind returns the kind an index page enumerates.
func (k PageKind) ListedKind() (PageKind, bool) {
	switch k {
	case KindTextIndexPage:
		return KindTextPage, true
	case KindStandardIndexPage:
		return KindStandardPage, true
	default:
		return "", false
	}
}

// PageStatus 页面发布状态。
type PageStatus string

const (
	StatusDraft PageStatus = "draft"
	StatusLive  PageStatus = "live"
)

// PathStepLength is the width of one materialized path segment.
const PathStepLength = 4

// Page is a node of the page tree. Kind specific fields live in the matching
// content table keyed by the page id.
type Page struct {
	gorm.Model
	ParentID         *uint      `gorm:"index"`
	Path             string     `gorm:"size:255;uniqueIndex;not null"`
	Depth            int        `gorm:"not null"`
	Title            string     `gorm:"size:255;not null"`
	Slug             string     `gorm:"size:255;index;not null"`
	URLPath          string     `gorm:"column:url_path;type:text;not null"`
	Kind             PageKind   `gorm:"size:32;index;not null"`
	Status           PageStatus `gorm:"size:16;index;not null;default:draft"`
	FirstPublishedAt *time.Time
	LastPublishedAt  *time.Time
}

// IsLive reports whether the page is published.
func (p Page) IsLive() bool {
	return p.Status == StatusLive
}

// IsRoot reports whether the page sits at the top of the tree.
func (p Page) IsRoot() bool {
	return p.ParentID == nil
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Page) IsAncestorOf(other Page) bool {
	return len(other.Path) > len(p.Path) && other.Path[:len(p.Path)] == p.Path
}

// AncestorPaths returns the paths of every strict ancestor, root first.
func (p Page) AncestorPaths() []string {
	var paths []string
	for end := PathStepLength; end < len(p.Path); end += PathStepLength {
		paths = append(paths, p.Path[:end])
	}
	return paths
}
