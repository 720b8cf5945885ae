package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/service"
	"github.com/sitepages/internal/stream"
)

// HealthCheck 提供监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

type siteSettingsRequest struct {
	SiteName   string `json:"site_name"`
	RootPageID *uint  `json:"root_page_id"`
}

// GetSiteSettings 返回当前站点设置。
func (a *API) GetSiteSettings(c *gin.Context) {
	settings, err := a.sites.GetSettings()
	if err != nil {
		respondServiceError(c, err, "获取站点设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSiteSettings 保存站点设置。
func (a *API) UpdateSiteSettings(c *gin.Context) {
	var payload siteSettingsRequest
	if !bindJSON(c, &payload, "请填写完整的站点设置") {
		return
	}

	settings, err := a.sites.UpdateSettings(service.SiteSettingsInput{
		SiteName:   payload.SiteName,
		RootPageID: payload.RootPageID,
	})
	if err != nil {
		respondServiceError(c, err, "保存站点设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "站点设置已保存", "settings": settings})
}

// GetBlockDefinitions 列出每个内容流字段可用的区块类型，供编辑器渲染选择器。
func (a *API) GetBlockDefinitions(c *gin.Context) {
	definitions := []stream.Definition{stream.BodyBlocks, stream.HeroBlocks}

	response := make([]gin.H, 0, len(definitions))
	for _, def := range definitions {
		kinds := def.Kinds()
		blocks := make([]gin.H, 0, len(kinds))
		for _, kind := range kinds {
			blocks = append(blocks, gin.H{"type": kind, "label": stream.Label(kind)})
		}
		response = append(response, gin.H{"name": def.Name(), "blocks": blocks})
	}

	c.JSON(http.StatusOK, gin.H{
		"streams": response,
		"alignments": gin.H{
			string(stream.KindAlignedImage): []string{stream.AlignLeft, stream.AlignRight, stream.AlignMid, stream.AlignFull},
			string(stream.KindRawHTML):      []string{stream.HTMLAlignNormal, stream.HTMLAlignFull},
		},
	})
}
