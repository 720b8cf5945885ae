package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/service"
)

type sectionMoveRequest struct {
	Position *int `json:"position" binding:"required"`
}

func (a *API) recordResponse(record *service.PageRecord) gin.H {
	response := gin.H{
		"page":          a.singlePageResponse(record.Page),
		"content":       record.Content,
		"related_links": record.RelatedLinks,
	}
	if record.Page.Kind.HasSections() {
		response["sections"] = record.Sections
	}
	if record.Page.Kind.HasCarousel() {
		response["carousel_items"] = record.CarouselItems
	}
	return response
}

// bindContentInput 按页面类型解析请求体中的内容。
func bindContentInput(c *gin.Context, kind db.PageKind) (service.ContentInput, error) {
	switch kind {
	case db.KindSitePage:
		var input service.SitePageInput
		err := c.ShouldBindJSON(&input)
		return input, err
	case db.KindStandardPage:
		var input service.StandardPageInput
		err := c.ShouldBindJSON(&input)
		return input, err
	case db.KindStandardIndexPage:
		var input service.StandardIndexPageInput
		err := c.ShouldBindJSON(&input)
		return input, err
	case db.KindTextIndexPage:
		var input service.TextIndexPageInput
		err := c.ShouldBindJSON(&input)
		return input, err
	case db.KindTextPage:
		var input service.TextPageInput
		err := c.ShouldBindJSON(&input)
		return input, err
	default:
		return nil, service.ErrInvalidKind
	}
}

// SavePageContent 保存页面内容，校验失败时返回全部问题
func (a *API) SavePageContent(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	page, err := a.pages.Get(id)
	if err != nil {
		respondServiceError(c, err, "保存页面内容失败")
		return
	}

	input, err := bindContentInput(c, page.Kind)
	if err != nil {
		respondError(c, http.StatusBadRequest, "页面内容格式错误")
		return
	}

	record, err := a.content.Save(id, input)
	if err != nil {
		respondServiceError(c, err, "保存页面内容失败")
		return
	}

	response := a.recordResponse(record)
	response["message"] = "页面内容保存成功"
	c.JSON(http.StatusOK, response)
}

// GetSections 获取站点页的分区
func (a *API) GetSections(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	sections, err := a.content.Sections(id)
	if err != nil {
		respondServiceError(c, err, "获取分区失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// CreateSection 在末尾追加分区
func (a *API) CreateSection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	var req service.SectionInput
	if !bindJSON(c, &req, "分区格式错误") {
		return
	}

	section, err := a.content.AddSection(id, req)
	if err != nil {
		respondServiceError(c, err, "创建分区失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "分区创建成功", "section": section})
}

// UpdateSection 更新分区
func (a *API) UpdateSection(c *gin.Context) {
	pageID, sectionID, ok := parseSectionParams(c)
	if !ok {
		return
	}

	var req service.SectionInput
	if !bindJSON(c, &req, "分区格式错误") {
		return
	}

	section, err := a.content.UpdateSection(pageID, sectionID, req)
	if err != nil {
		respondServiceError(c, err, "更新分区失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "分区更新成功", "section": section})
}

// MoveSection 调整分区位置，其余分区顺序随之重排
func (a *API) MoveSection(c *gin.Context) {
	pageID, sectionID, ok := parseSectionParams(c)
	if !ok {
		return
	}

	var req sectionMoveRequest
	if !bindJSON(c, &req, "目标位置不能为空") {
		return
	}

	sections, err := a.content.MoveSection(pageID, sectionID, *req.Position)
	if err != nil {
		respondServiceError(c, err, "移动分区失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "分区移动成功", "sections": sections})
}

// DeleteSection 删除分区
func (a *API) DeleteSection(c *gin.Context) {
	pageID, sectionID, ok := parseSectionParams(c)
	if !ok {
		return
	}

	if err := a.content.DeleteSection(pageID, sectionID); err != nil {
		respondServiceError(c, err, "删除分区失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "分区删除成功"})
}

func parseSectionParams(c *gin.Context) (uint, uint, bool) {
	pageID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return 0, 0, false
	}
	sectionID, err := parseUintParam(c, "section_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分区ID")
		return 0, 0, false
	}
	return pageID, sectionID, true
}
