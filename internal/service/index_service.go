package service

import (
	"errors"
	"fmt"

	"github.com/sitepages/internal/db"
	"gorm.io/gorm"
)

// ErrNotIndexPage is returned when a listing is requested for a page kind
// that does not list children.
var ErrNotIndexPage = errors.New("page does not list child pages")

// ChildPageWindow is one page of an index listing.
type ChildPageWindow struct {
	Items       []db.Page `json:"items"`
	Number      int       `json:"number"`
	NumPages    int       `json:"num_pages"`
	PerPage     int       `json:"per_page"`
	Total       int64     `json:"total"`
	HasPrevious bool      `json:"has_previous"`
	HasNext     bool      `json:"has_next"`
}

// IndexService lists the live descendants of index pages.
type IndexService struct {
	db *gorm.DB
}

// NewIndexService creates an IndexService.
func NewIndexService(gdb *gorm.DB) *IndexService {
	return &IndexService{db: gdb}
}

// ChildPages returns every live descendant of index of the listed kind, most
// recent first.
func (s *IndexService) ChildPages(index db.Page) ([]db.Page, error) {
	query, err := childPagesQuery(s.db, index)
	if err != nil {
		return nil, err
	}
	var pages []db.Page
	if err := orderChildPages(query, index).Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	return pages, nil
}

// List returns the window of child pages selected by raw, a user supplied
// page number. Invalid numbers never fail, see Paginate.
func (s *IndexService) List(index db.Page, raw string) (*ChildPageWindow, error) {
	return listChildPages(s.db, index, raw)
}

func listChildPages(gdb *gorm.DB, index db.Page, raw string) (*ChildPageWindow, error) {
	countQuery, err := childPagesQuery(gdb, index)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count child pages: %w", err)
	}
	w := Paginate(total, IndexPageSize, raw)

	window := &ChildPageWindow{
		Items:       []db.Page{},
		Number:      w.Number,
		NumPages:    w.NumPages,
		PerPage:     w.PerPage,
		Total:       total,
		HasPrevious: w.HasPrevious(),
		HasNext:     w.HasNext(),
	}
	if total == 0 {
		return window, nil
	}

	query, _ := childPagesQuery(gdb, index)
	if err := orderChildPages(query, index).Limit(w.PerPage).Offset(w.Offset()).Find(&window.Items).Error; err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	return window, nil
}

// childPagesQuery filters the live descendants of the listed kind.
func childPagesQuery(gdb *gorm.DB, index db.Page) (*gorm.DB, error) {
	listed, ok := index.Kind.ListedKind()
	if !ok {
		return nil, ErrNotIndexPage
	}
	return descendantsOf(gdb, index).
		Where("pages.kind = ? AND pages.status = ?", listed, db.StatusLive), nil
}

// orderChildPages 文本页按日期倒序，标准页按首次发布时间倒序。
func orderChildPages(query *gorm.DB, index db.Page) *gorm.DB {
	listed, _ := index.Kind.ListedKind()
	if listed == db.KindTextPage {
		return query.Select("pages.*").
			Joins("JOIN text_pages ON text_pages.page_id = pages.id").
			Order("text_pages.date desc").
			Order("pages.id desc")
	}
	return query.Order("pages.first_published_at desc").Order("pages.id desc")
}
