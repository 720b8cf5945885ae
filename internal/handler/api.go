package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/cache"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/service"
	"gorm.io/gorm"
)

// Options configures the services behind the HTTP handlers.
type Options struct {
	UploadDir     string
	UploadURL     string
	SiteBaseURL   string
	Cache         cache.Cache
	CacheTTL      time.Duration
	SnippetPolicy service.SnippetDeletePolicy
	Logger        logger.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	pages    *service.PageService
	content  *service.ContentService
	index    *service.IndexService
	sites    *service.SiteService
	snippets *service.SnippetService
	media    *service.MediaService
	views    *service.ViewService
	logger   logger.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	media := service.NewMediaService(gdb, opts.UploadDir, opts.UploadURL, log.With(logger.String("component", "media")))
	return &API{
		db:       gdb,
		pages:    service.NewPageService(gdb),
		content:  service.NewContentService(gdb),
		index:    service.NewIndexService(gdb),
		sites:    service.NewSiteService(gdb),
		snippets: service.NewSnippetService(gdb, opts.SnippetPolicy, log.With(logger.String("component", "snippets"))),
		media:    media,
		views: service.NewViewService(gdb, media, service.ViewOptions{
			Cache:       opts.Cache,
			TTL:         opts.CacheTTL,
			SiteBaseURL: opts.SiteBaseURL,
			Logger:      log.With(logger.String("component", "views")),
		}),
		logger: log,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// InvalidateViews 在后台写操作成功后清空页面视图缓存。
func (a *API) InvalidateViews() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		if err := a.views.Invalidate(c.Request.Context()); err != nil {
			a.logger.Warn("page view cache invalidation failed", logger.Error(err))
		}
	}
}
