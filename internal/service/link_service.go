package service

import (
	"github.com/sitepages/internal/db"
	"gorm.io/gorm"
)

// LinkResolver looks up link targets for one request. Results are memoised,
// so a resolver must not be shared between goroutines or outlive the request
// it was created for.
type LinkResolver struct {
	db    *gorm.DB
	media *MediaService

	root       *db.Page
	rootLoaded bool
	pages      map[uint]resolvedURL
	documents  map[uint]resolvedURL
}

type resolvedURL struct {
	url string
	ok  bool
}

// NewLinkResolver creates a resolver computing page URLs against the current
// site root.
func NewLinkResolver(gdb *gorm.DB, media *MediaService) *LinkResolver {
	return &LinkResolver{
		db:        gdb,
		media:     media,
		pages:     make(map[uint]resolvedURL),
		documents: make(map[uint]resolvedURL),
	}
}

// PageURL returns the public URL of a page. ok is false when the page no
// longer exists; a page outside the site resolves to "".
func (r *LinkResolver) PageURL(id uint) (string, bool) {
	if cached, hit := r.pages[id]; hit {
		return cached.url, cached.ok
	}

	var result resolvedURL
	page, err := findPage(r.db, id)
	if err == nil {
		url, _ := PageURL(*page, r.siteRoot())
		result = resolvedURL{url: url, ok: true}
	}
	r.pages[id] = result
	return result.url, result.ok
}

// DocumentURL returns the public URL of a document.
func (r *LinkResolver) DocumentURL(id uint) (string, bool) {
	if cached, hit := r.documents[id]; hit {
		return cached.url, cached.ok
	}

	var result resolvedURL
	if r.media != nil {
		if doc, err := r.media.findDocument(r.db, id); err == nil {
			result = resolvedURL{url: r.media.DocumentURL(*doc), ok: true}
		}
	}
	r.documents[id] = result
	return result.url, result.ok
}

// Resolve returns the URL of link.
func (r *LinkResolver) Resolve(link db.LinkFields) string {
	return link.Resolve(r)
}

func (r *LinkResolver) siteRoot() *db.Page {
	if !r.rootLoaded {
		// 站点根不存在时所有页面都没有 URL
		if root, err := siteRoot(r.db); err == nil {
			r.root = root
		}
		r.rootLoaded = true
	}
	return r.root
}
