package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/util"
	"gorm.io/gorm"
)

var (
	ErrPageNotFound   = errors.New("page not found")
	ErrParentNotFound = errors.New("parent page not found")
	ErrRootExists     = errors.New("root page already exists")
	ErrRootPage       = errors.New("root page cannot be moved or deleted")
	ErrTitleMissing   = errors.New("page title is required")
	ErrSlugInvalid    = errors.New("slug may only contain lowercase letters, digits and hyphens")
	ErrSlugInUse      = errors.New("slug already in use by a sibling page")
	ErrInvalidKind    = errors.New("page kind is invalid")
	ErrInvalidMove    = errors.New("page cannot be moved under itself or its descendants")
	ErrTreeFull       = errors.New("parent page has too many children")
)

// maxPathStep is the largest child number a 4 character base-36 step holds.
const maxPathStep = 36*36*36*36 - 1

// PageService 负责页面树：创建、移动、发布、删除以及 URL 计算。
type PageService struct {
	db  *gorm.DB
	now func() time.Time
}

// PageInput describes a page to create.
type PageInput struct {
	Title string
	Slug  string
	Kind  db.PageKind
}

// PageUpdateInput holds the editable tree fields of a page. An empty slug
// keeps the current one.
type PageUpdateInput struct {
	Title string
	Slug  string
}

// PageFilter narrows the admin page listing.
type PageFilter struct {
	Search   string
	Kind     db.PageKind
	Status   db.PageStatus
	ParentID *uint
	Page     int
	PerPage  int
}

// PageListResult aggregates paginated pages.
type PageListResult struct {
	Items      []db.Page
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewPageService creates a PageService instance.
func NewPageService(gdb *gorm.DB) *PageService {
	return &PageService{db: gdb, now: time.Now}
}

// Create adds a draft page under parentID, or the tree root when parentID is
// nil. An empty content row of the page kind is created alongside.
func (s *PageService) Create(parentID *uint, input PageInput) (*db.Page, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleMissing
	}
	if !input.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	slug, err := resolveSlug(input.Slug, title)
	if err != nil {
		return nil, err
	}

	var page db.Page
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var parent *db.Page
		if parentID == nil {
			var count int64
			if err := tx.Model(&db.Page{}).Where("parent_id IS NULL").Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrRootExists
			}
		} else {
			loaded, err := findPage(tx, *parentID)
			if errors.Is(err, ErrPageNotFound) {
				return ErrParentNotFound
			}
			if err != nil {
				return err
			}
			parent = loaded
			if err := ensureSlugAvailable(tx, parent.ID, slug, 0); err != nil {
				return err
			}
		}

		path, err := nextChildPath(tx, parent)
		if err != nil {
			return err
		}

		page = db.Page{
			ParentID: parentID,
			Path:     path,
			Depth:    len(path) / db.PathStepLength,
			Title:    title,
			Slug:     slug,
			URLPath:  childURLPath(parent, slug),
			Kind:     input.Kind,
			Status:   db.StatusDraft,
		}
		if err := tx.Create(&page).Error; err != nil {
			return err
		}

		content, err := db.NewContent(page.Kind, page.ID)
		if err != nil {
			return err
		}
		if text, ok := content.(*db.TextPage); ok {
			text.Date = dateOnly(s.now())
		}
		return tx.Create(content).Error
	})
	if err != nil {
		return nil, wrapPageErr("create page", err)
	}

	return &page, nil
}

// Get returns a page by id.
func (s *PageService) Get(id uint) (*db.Page, error) {
	return findPage(s.db, id)
}

// Root returns the top of the page tree.
func (s *PageService) Root() (*db.Page, error) {
	var root db.Page
	if err := s.db.Where("parent_id IS NULL").Order("path asc").First(&root).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &root, nil
}

// SiteRoot returns the page public URLs are computed from: the configured
// root page when it exists, else the tree root.
func (s *PageService) SiteRoot() (*db.Page, error) {
	return siteRoot(s.db)
}

func siteRoot(gdb *gorm.DB) (*db.Page, error) {
	settings, err := loadSiteSettings(gdb)
	if err != nil {
		return nil, err
	}
	if settings.RootPageID != nil {
		page, err := findPage(gdb, *settings.RootPageID)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, ErrPageNotFound) {
			return nil, err
		}
	}

	var root db.Page
	if err := gdb.Where("parent_id IS NULL").Order("path asc").First(&root).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &root, nil
}

// PageURL returns the public URL of page relative to root. Pages outside the
// site root have no URL.
func PageURL(page db.Page, root *db.Page) (string, bool) {
	if root == nil {
		return "", false
	}
	if page.ID != root.ID && !root.IsAncestorOf(page) {
		return "", false
	}
	return "/" + strings.TrimPrefix(page.URLPath, root.URLPath), true
}

// URL returns the public URL of page, or "" when it is outside the site.
func (s *PageService) URL(page db.Page) (string, error) {
	root, err := s.SiteRoot()
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return "", nil
		}
		return "", err
	}
	url, _ := PageURL(page, root)
	return url, nil
}

// GetByURL resolves a public path such as "/news/first-post/".
func (s *PageService) GetByURL(rawPath string) (*db.Page, error) {
	root, err := s.SiteRoot()
	if err != nil {
		return nil, err
	}

	target := root.URLPath
	if clean := strings.Trim(strings.TrimSpace(rawPath), "/"); clean != "" {
		target += clean + "/"
	}

	var page db.Page
	if err := s.db.Where("url_path = ?", target).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// Update changes the title and slug of a page. A slug change rewrites the
// url_path of the whole subtree.
func (s *PageService) Update(id uint, input PageUpdateInput) (*db.Page, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleMissing
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := findPage(tx, id)
		if err != nil {
			return err
		}

		slug := page.Slug
		if strings.TrimSpace(input.Slug) != "" {
			if slug, err = resolveSlug(input.Slug, title); err != nil {
				return err
			}
		}

		if slug != page.Slug && page.ParentID != nil {
			if err := ensureSlugAvailable(tx, *page.ParentID, slug, page.ID); err != nil {
				return err
			}
			parentURL := strings.TrimSuffix(page.URLPath, page.Slug+"/")
			if err := rewriteURLPaths(tx, page.Path, page.URLPath, parentURL+slug+"/"); err != nil {
				return err
			}
		}

		return tx.Model(&db.Page{}).Where("id = ?", page.ID).Updates(map[string]interface{}{
			"title": title,
			"slug":  slug,
		}).Error
	})
	if err != nil {
		return nil, wrapPageErr("update page", err)
	}

	return s.Get(id)
}

// Publish makes a page live.
func (s *PageService) Publish(id uint) (*db.Page, error) {
	page, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":            db.StatusLive,
		"last_published_at": now,
	}
	if page.FirstPublishedAt == nil {
		updates["first_published_at"] = now
	}
	if err := s.db.Model(&db.Page{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("publish page: %w", err)
	}

	return s.Get(id)
}

// Unpublish returns a page to draft.
func (s *PageService) Unpublish(id uint) (*db.Page, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Page{}).Where("id = ?", id).Update("status", db.StatusDraft).Error; err != nil {
		return nil, fmt.Errorf("unpublish page: %w", err)
	}
	return s.Get(id)
}

// Move re-parents a page as the last child of newParentID, carrying its
// subtree along.
func (s *PageService) Move(id, newParentID uint) (*db.Page, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := findPage(tx, id)
		if err != nil {
			return err
		}
		if page.IsRoot() {
			return ErrRootPage
		}

		parent, err := findPage(tx, newParentID)
		if errors.Is(err, ErrPageNotFound) {
			return ErrParentNotFound
		}
		if err != nil {
			return err
		}
		if parent.ID == page.ID || page.IsAncestorOf(*parent) {
			return ErrInvalidMove
		}
		if err := ensureSlugAvailable(tx, parent.ID, page.Slug, page.ID); err != nil {
			return err
		}

		newPath, err := nextChildPath(tx, parent)
		if err != nil {
			return err
		}
		newURL := childURLPath(parent, page.Slug)
		delta := len(newPath)/db.PathStepLength - page.Depth

		// 软删除的子孙页面也一起迁移，避免旧路径被复用时发生唯一索引冲突。
		if err := tx.Unscoped().Model(&db.Page{}).
			Where("path LIKE ?", page.Path+"%").
			Updates(map[string]interface{}{
				"path":     gorm.Expr("? || substr(path, ?)", newPath, len(page.Path)+1),
				"depth":    gorm.Expr("depth + ?", delta),
				"url_path": gorm.Expr("? || substr(url_path, ?)", newURL, len(page.URLPath)+1),
			}).Error; err != nil {
			return err
		}

		return tx.Model(&db.Page{}).Where("id = ?", page.ID).Update("parent_id", parent.ID).Error
	})
	if err != nil {
		return nil, wrapPageErr("move page", err)
	}

	return s.Get(id)
}

// Delete soft-deletes a page and its descendants and removes their content,
// collections and snippet references.
func (s *PageService) Delete(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := findPage(tx, id)
		if err != nil {
			return err
		}
		if page.IsRoot() {
			return ErrRootPage
		}

		var ids []uint
		if err := tx.Model(&db.Page{}).Where("path LIKE ?", page.Path+"%").Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := purgePageData(tx, ids); err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&db.Page{}).Error
	})
	return wrapPageErr("delete page", err)
}

func purgePageData(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	models := []interface{}{
		&db.Section{},
		&db.CarouselItem{},
		&db.RelatedLink{},
		&db.SnippetReference{},
	}
	models = append(models, db.ContentModels()...)
	for _, model := range models {
		if err := tx.Where("page_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// Children returns the direct children of a page in tree order.
func (s *PageService) Children(id uint) ([]db.Page, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	var pages []db.Page
	if err := s.db.Where("parent_id = ?", id).Order("path asc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// Ancestors returns the strict ancestors of page, root first.
func (s *PageService) Ancestors(page db.Page) ([]db.Page, error) {
	paths := page.AncestorPaths()
	if len(paths) == 0 {
		return nil, nil
	}
	var pages []db.Page
	if err := s.db.Where("path IN ?", paths).Order("depth asc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// NearestAncestorOfKind walks upward from page and returns the closest
// ancestor of the given kind, or nil. Draft ancestors count.
func (s *PageService) NearestAncestorOfKind(page db.Page, kind db.PageKind) (*db.Page, error) {
	return nearestAncestorOfKind(s.db, page, kind)
}

func nearestAncestorOfKind(gdb *gorm.DB, page db.Page, kind db.PageKind) (*db.Page, error) {
	paths := page.AncestorPaths()
	if len(paths) == 0 {
		return nil, nil
	}
	var ancestor db.Page
	err := gdb.Where("path IN ? AND kind = ?", paths, kind).Order("depth desc").First(&ancestor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ancestor, nil
}

// Descendants returns every page below id in tree order.
func (s *PageService) Descendants(id uint) ([]db.Page, error) {
	page, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	var pages []db.Page
	if err := descendantsOf(s.db, *page).Order("pages.path asc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

func descendantsOf(gdb *gorm.DB, page db.Page) *gorm.DB {
	return gdb.Model(&db.Page{}).
		Where("pages.path LIKE ? AND pages.depth > ?", page.Path+"%", page.Depth)
}

// List returns pages matching the filter in tree order.
func (s *PageService) List(filter PageFilter) (PageListResult, error) {
	result := PageListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
	}

	query := s.db.Model(&db.Page{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("path asc").Limit(result.PerPage).Offset(offset).Find(&result.Items).Error; err != nil {
		return result, err
	}

	return result, nil
}

func findPage(gdb *gorm.DB, id uint) (*db.Page, error) {
	var page db.Page
	if err := gdb.First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func resolveSlug(raw, title string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if slug == "" {
		slug = util.Slugify(title)
	}
	if !util.IsValidSlug(slug) {
		return "", ErrSlugInvalid
	}
	return slug, nil
}

func ensureSlugAvailable(tx *gorm.DB, parentID uint, slug string, excludeID uint) error {
	var count int64
	query := tx.Model(&db.Page{}).Where("parent_id = ? AND slug = ?", parentID, slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrSlugInUse
	}
	return nil
}

// nextChildPath allocates the path of a new last child. Soft-deleted children
// keep their paths, so the maximum is taken over every row.
func nextChildPath(tx *gorm.DB, parent *db.Page) (string, error) {
	query := tx.Unscoped().Model(&db.Page{}).Select("COALESCE(MAX(path), '')")
	prefix := ""
	if parent == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", parent.ID)
		prefix = parent.Path
	}

	var last string
	if err := query.Scan(&last).Error; err != nil {
		return "", err
	}

	next := int64(1)
	if last != "" {
		current, err := decodePathStep(last[len(last)-db.PathStepLength:])
		if err != nil {
			return "", fmt.Errorf("corrupt page path %q: %w", last, err)
		}
		next = current + 1
	}
	if next > maxPathStep {
		return "", ErrTreeFull
	}
	return prefix + encodePathStep(next), nil
}

func encodePathStep(n int64) string {
	step := strings.ToUpper(strconv.FormatInt(n, 36))
	return strings.Repeat("0", db.PathStepLength-len(step)) + step
}

func decodePathStep(step string) (int64, error) {
	return strconv.ParseInt(step, 36, 64)
}

func childURLPath(parent *db.Page, slug string) string {
	if parent == nil {
		return "/"
	}
	return parent.URLPath + slug + "/"
}

func rewriteURLPaths(tx *gorm.DB, path, oldURL, newURL string) error {
	return tx.Unscoped().Model(&db.Page{}).
		Where("path LIKE ?", path+"%").
		Update("url_path", gorm.Expr("? || substr(url_path, ?)", newURL, len(oldURL)+1)).Error
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// wrapPageErr keeps sentinel errors intact for callers that match on them.
func wrapPageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrPageNotFound, ErrParentNotFound, ErrRootExists, ErrRootPage, ErrSlugInvalid,
		ErrSlugInUse, ErrInvalidMove, ErrTreeFull,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
