package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/service"
)

type pageCreateRequest struct {
	ParentID *uint       `json:"parent_id"`
	Title    string      `json:"title" binding:"required"`
	Slug     string      `json:"slug"`
	Kind     db.PageKind `json:"kind" binding:"required"`
}

type pageUpdateRequest struct {
	Title string `json:"title" binding:"required"`
	Slug  string `json:"slug"`
}

type pageMoveRequest struct {
	ParentID uint `json:"parent_id" binding:"required"`
}

func pageResponse(page db.Page, url string) gin.H {
	return gin.H{
		"id":                 page.ID,
		"parent_id":          page.ParentID,
		"title":              page.Title,
		"slug":               page.Slug,
		"kind":               page.Kind,
		"kind_label":         page.Kind.Label(),
		"status":             page.Status,
		"depth":              page.Depth,
		"url":                url,
		"first_published_at": page.FirstPublishedAt,
		"last_published_at":  page.LastPublishedAt,
		"created_at":         page.CreatedAt,
		"updated_at":         page.UpdatedAt,
	}
}

func (a *API) pageResponses(pages []db.Page) []gin.H {
	links := service.NewLinkResolver(a.db, a.media)
	response := make([]gin.H, 0, len(pages))
	for _, page := range pages {
		url, _ := links.PageURL(page.ID)
		response = append(response, pageResponse(page, url))
	}
	return response
}

func (a *API) singlePageResponse(page db.Page) gin.H {
	url, _ := service.NewLinkResolver(a.db, a.media).PageURL(page.ID)
	return pageResponse(page, url)
}

// GetPages 获取页面列表
func (a *API) GetPages(c *gin.Context) {
	result, err := a.pages.List(service.PageFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Kind:     db.PageKind(strings.TrimSpace(c.Query("kind"))),
		Status:   db.PageStatus(strings.TrimSpace(c.Query("status"))),
		ParentID: parseUintQuery(c, "parent_id"),
		Page:     parseIntQuery(c, "page"),
		PerPage:  parseIntQuery(c, "per_page"),
	})
	if err != nil {
		respondServiceError(c, err, "获取页面列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pages":      a.pageResponses(result.Items),
		"pagination": listMeta(result.Total, result.TotalPages, result.Page, result.PerPage),
	})
}

// GetPageKinds 返回可创建的页面类型
func (a *API) GetPageKinds(c *gin.Context) {
	kinds := make([]gin.H, 0, len(db.PageKinds))
	for _, kind := range db.PageKinds {
		entry := gin.H{
			"kind":          kind,
			"label":         kind.Label(),
			"has_sections":  kind.HasSections(),
			"has_carousel":  kind.HasCarousel(),
			"lists_kind":    nil,
			"related_links": true,
		}
		if listed, ok := kind.ListedKind(); ok {
			entry["lists_kind"] = listed
		}
		kinds = append(kinds, entry)
	}
	c.JSON(http.StatusOK, gin.H{"kinds": kinds})
}

// CreatePage 创建页面，内容为空的草稿
func (a *API) CreatePage(c *gin.Context) {
	var req pageCreateRequest
	if !bindJSON(c, &req, "页面标题和类型不能为空") {
		return
	}

	page, err := a.pages.Create(req.ParentID, service.PageInput{
		Title: req.Title,
		Slug:  req.Slug,
		Kind:  req.Kind,
	})
	if err != nil {
		respondServiceError(c, err, "创建页面失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "页面创建成功", "page": a.singlePageResponse(*page)})
}

// GetPage 获取页面及其内容
func (a *API) GetPage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	record, err := a.content.Load(id)
	if err != nil {
		respondServiceError(c, err, "获取页面失败")
		return
	}

	c.JSON(http.StatusOK, a.recordResponse(record))
}

// UpdatePage 更新页面标题与 slug
func (a *API) UpdatePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	var req pageUpdateRequest
	if !bindJSON(c, &req, "页面标题不能为空") {
		return
	}

	page, err := a.pages.Update(id, service.PageUpdateInput{Title: req.Title, Slug: req.Slug})
	if err != nil {
		respondServiceError(c, err, "更新页面失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "页面更新成功", "page": a.singlePageResponse(*page)})
}

// DeletePage 删除页面及其全部子页面
func (a *API) DeletePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	if err := a.pages.Delete(id); err != nil {
		respondServiceError(c, err, "删除页面失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "页面删除成功"})
}

// PublishPage 发布页面
func (a *API) PublishPage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	page, err := a.pages.Publish(id)
	if err != nil {
		respondServiceError(c, err, "发布页面失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "页面已发布", "page": a.singlePageResponse(*page)})
}

// UnpublishPage 撤回页面为草稿
func (a *API) UnpublishPage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	page, err := a.pages.Unpublish(id)
	if err != nil {
		respondServiceError(c, err, "撤回页面失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "页面已撤回", "page": a.singlePageResponse(*page)})
}

// MovePage 将页面连同子树移动到新的父页面下
func (a *API) MovePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	var req pageMoveRequest
	if !bindJSON(c, &req, "目标父页面不能为空") {
		return
	}

	page, err := a.pages.Move(id, req.ParentID)
	if err != nil {
		respondServiceError(c, err, "移动页面失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "页面移动成功", "page": a.singlePageResponse(*page)})
}

// GetPageChildren 获取直接子页面
func (a *API) GetPageChildren(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	children, err := a.pages.Children(id)
	if err != nil {
		respondServiceError(c, err, "获取子页面失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": a.pageResponses(children)})
}

// GetPageDescendants 按树顺序列出整棵子树
func (a *API) GetPageDescendants(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	descendants, err := a.pages.Descendants(id)
	if err != nil {
		respondServiceError(c, err, "获取子树失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": a.pageResponses(descendants)})
}

// PreviewPage 以公开视图的格式预览页面，草稿同样可预览
func (a *API) PreviewPage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	page, err := a.pages.Get(id)
	if err != nil {
		respondServiceError(c, err, "预览页面失败")
		return
	}

	view, err := a.views.Build(*page, c.Query("page"))
	if err != nil {
		respondServiceError(c, err, "预览页面失败")
		return
	}

	c.JSON(http.StatusOK, view)
}
