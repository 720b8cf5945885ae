package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/handler"
	"github.com/sitepages/internal/logger"
)

const sessionName = "sitepages_session"

// Config holds the router level settings.
type Config struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	Logger        logger.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// 上传文件服务
	if uploadURL := normalizeURLPath(cfg.UploadURLPath); uploadURL != "" && cfg.UploadDir != "" {
		r.Static(uploadURL, cfg.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", api.HealthCheck)

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台 API，写操作成功后清空页面视图缓存
		auth := admin.Group("/api")
		auth.Use(handler.AuthRequired(), api.InvalidateViews())
		{
			auth.GET("/me", api.Me)

			auth.GET("/page-kinds", api.GetPageKinds)
			auth.GET("/blocks", api.GetBlockDefinitions)

			auth.GET("/pages", api.GetPages)
			auth.POST("/pages", api.CreatePage)
			auth.GET("/pages/:id", api.GetPage)
			auth.PUT("/pages/:id", api.UpdatePage)
			auth.DELETE("/pages/:id", api.DeletePage)
			auth.POST("/pages/:id/publish", api.PublishPage)
			auth.POST("/pages/:id/unpublish", api.UnpublishPage)
			auth.POST("/pages/:id/move", api.MovePage)
			auth.GET("/pages/:id/children", api.GetPageChildren)
			auth.GET("/pages/:id/descendants", api.GetPageDescendants)
			auth.GET("/pages/:id/preview", api.PreviewPage)
			auth.PUT("/pages/:id/content", api.SavePageContent)

			auth.GET("/pages/:id/sections", api.GetSections)
			auth.POST("/pages/:id/sections", api.CreateSection)
			auth.PUT("/pages/:id/sections/:section_id", api.UpdateSection)
			auth.POST("/pages/:id/sections/:section_id/move", api.MoveSection)
			auth.DELETE("/pages/:id/sections/:section_id", api.DeleteSection)

			auth.GET("/snippets", api.GetSnippets)
			auth.POST("/snippets", api.CreateSnippet)
			auth.GET("/snippets/:id", api.GetSnippet)
			auth.PUT("/snippets/:id", api.UpdateSnippet)
			auth.DELETE("/snippets/:id", api.DeleteSnippet)
			auth.GET("/snippets/:id/usage", api.GetSnippetUsage)

			auth.GET("/images", api.GetImages)
			auth.POST("/images", api.UploadImage)
			auth.GET("/images/:id", api.GetImage)
			auth.DELETE("/images/:id", api.DeleteImage)
			auth.GET("/images/:id/renditions/:filter", api.GetImageRendition)

			auth.GET("/documents", api.GetDocuments)
			auth.POST("/documents", api.UploadDocument)
			auth.GET("/documents/:id", api.GetDocument)
			auth.DELETE("/documents/:id", api.DeleteDocument)

			auth.GET("/site", api.GetSiteSettings)
			auth.PUT("/site", api.UpdateSiteSettings)
		}
	}

	// 公开只读 API，仅返回已发布页面
	public := r.Group("/api")
	{
		public.GET("/pages/*path", api.GetPublicPage)
		public.GET("/page/:id", api.GetPublicPageByID)
	}

	return r
}

func normalizeURLPath(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
