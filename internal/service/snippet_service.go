package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/stream"
	"gorm.io/gorm"
)

// SnippetDeletePolicy decides what happens to blocks referencing a deleted
// call to action.
type SnippetDeletePolicy string

const (
	// SnippetRestrict refuses to delete referenced snippets.
	SnippetRestrict SnippetDeletePolicy = "restrict"
	// SnippetNullify clears referencing blocks to null before deleting.
	SnippetNullify SnippetDeletePolicy = "nullify"
)

var (
	ErrSnippetNotFound = errors.New("call to action not found")
	ErrSnippetInUse    = errors.New("call to action is referenced by pages")
)

// SnippetInUseError lists the pages blocking a restricted delete. It matches
// ErrSnippetInUse.
type SnippetInUseError struct {
	SnippetID uint
	PageIDs   []uint
}

func (e *SnippetInUseError) Error() string {
	return fmt.Sprintf("call to action %d is referenced by %d page(s)", e.SnippetID, len(e.PageIDs))
}

func (e *SnippetInUseError) Is(target error) bool {
	return target == ErrSnippetInUse
}

// SnippetInput holds the editable fields of a call to action.
type SnippetInput struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	URL      string `json:"url"`
	LinkText string `json:"link_text"`
}

// SnippetFilter narrows the snippet listing.
type SnippetFilter struct {
	Search  string
	Page    int
	PerPage int
}

// SnippetListResult aggregates paginated snippets.
type SnippetListResult struct {
	Items      []db.CallToAction
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// SnippetUsage is one block referencing a snippet.
type SnippetUsage struct {
	PageID    uint   `json:"page_id"`
	PageTitle string `json:"page_title"`
	Field     string `json:"field"`
	BlockID   string `json:"block_id"`
}

// SnippetService 管理可复用的 CallToAction 片段。
type SnippetService struct {
	db     *gorm.DB
	policy SnippetDeletePolicy
	logger logger.Logger
}

// NewSnippetService creates a SnippetService. An unknown policy falls back
// to SnippetRestrict.
func NewSnippetService(gdb *gorm.DB, policy SnippetDeletePolicy, log logger.Logger) *SnippetService {
	if policy != SnippetNullify {
		policy = SnippetRestrict
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SnippetService{db: gdb, policy: policy, logger: log}
}

// Policy returns the active delete policy.
func (s *SnippetService) Policy() SnippetDeletePolicy {
	return s.policy
}

// List returns snippets ordered by title.
func (s *SnippetService) List(filter SnippetFilter) (SnippetListResult, error) {
	result := SnippetListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
	}
	query := s.db.Model(&db.CallToAction{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)
	offset := (result.Page - 1) * result.PerPage
	err := query.Order("title asc").Order("id asc").Limit(result.PerPage).Offset(offset).Find(&result.Items).Error
	return result, err
}

// Get returns a snippet by id.
func (s *SnippetService) Get(id uint) (*db.CallToAction, error) {
	return findSnippet(s.db, id)
}

// Create validates and stores a new snippet.
func (s *SnippetService) Create(input SnippetInput) (*db.CallToAction, error) {
	snippet := snippetFromInput(input)
	if err := validateSnippet(snippet); err != nil {
		return nil, err
	}
	if err := s.db.Create(&snippet).Error; err != nil {
		return nil, fmt.Errorf("create call to action: %w", err)
	}
	return &snippet, nil
}

// Update replaces the fields of a snippet. Referencing blocks pick up the
// change at read time.
func (s *SnippetService) Update(id uint, input SnippetInput) (*db.CallToAction, error) {
	existing, err := findSnippet(s.db, id)
	if err != nil {
		return nil, err
	}
	snippet := snippetFromInput(input)
	if err := validateSnippet(snippet); err != nil {
		return nil, err
	}

	snippet.ID = existing.ID
	snippet.CreatedAt = existing.CreatedAt
	if err := s.db.Save(&snippet).Error; err != nil {
		return nil, fmt.Errorf("update call to action: %w", err)
	}
	return &snippet, nil
}

// Usage lists every block referencing a snippet.
func (s *SnippetService) Usage(id uint) ([]SnippetUsage, error) {
	if _, err := findSnippet(s.db, id); err != nil {
		return nil, err
	}
	var usage []SnippetUsage
	err := s.db.Table("snippet_references").
		Select("snippet_references.page_id, pages.title AS page_title, snippet_references.field, snippet_references.block_id").
		Joins("JOIN pages ON pages.id = snippet_references.page_id AND pages.deleted_at IS NULL").
		Where("snippet_references.snippet_id = ?", id).
		Order("snippet_references.page_id asc").
		Order("snippet_references.id asc").
		Scan(&usage).Error
	if err != nil {
		return nil, fmt.Errorf("load call to action usage: %w", err)
	}
	return usage, nil
}

// Delete removes a snippet according to the configured policy.
func (s *SnippetService) Delete(id uint) error {
	var cleared int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findSnippet(tx, id); err != nil {
			return err
		}

		var pageIDs []uint
		if err := tx.Model(&db.SnippetReference{}).Where("snippet_id = ?", id).
			Distinct().Order("page_id asc").Pluck("page_id", &pageIDs).Error; err != nil {
			return err
		}

		if len(pageIDs) > 0 {
			if s.policy != SnippetNullify {
				return &SnippetInUseError{SnippetID: id, PageIDs: pageIDs}
			}
			n, err := clearStreamRefs(tx, stream.KindCallToAction, pageIDs, func(blocks stream.Stream) (stream.Stream, int) {
				return blocks.ClearSnippet(id)
			})
			if err != nil {
				return err
			}
			cleared = n
			if err := tx.Where("snippet_id = ?", id).Delete(&db.SnippetReference{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&db.CallToAction{}, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrSnippetNotFound) || errors.Is(err, ErrSnippetInUse) {
			return err
		}
		return fmt.Errorf("delete call to action: %w", err)
	}

	s.logger.Info("call to action deleted",
		logger.Uint("snippet_id", id),
		logger.String("policy", string(s.policy)),
		logger.Int("cleared_blocks", cleared),
	)
	return nil
}

func findSnippet(gdb *gorm.DB, id uint) (*db.CallToAction, error) {
	var snippet db.CallToAction
	if err := gdb.First(&snippet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnippetNotFound
		}
		return nil, err
	}
	return &snippet, nil
}

func snippetFromInput(input SnippetInput) db.CallToAction {
	return db.CallToAction{
		Title:    strings.TrimSpace(input.Title),
		Text:     strings.TrimSpace(input.Text),
		URL:      strings.TrimSpace(input.URL),
		LinkText: strings.TrimSpace(input.LinkText),
	}
}

func validateSnippet(snippet db.CallToAction) error {
	p := &problems{}
	p.addStruct("", snippet)
	return p.err()
}
