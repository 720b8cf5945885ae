package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/service"
)

const jsonContentType = "application/json; charset=utf-8"

// GetPublicPage 按公开 URL 返回已发布页面的视图，?page=N 选择索引页的分页。
func (a *API) GetPublicPage(c *gin.Context) {
	page, err := a.pages.GetByURL(c.Param("path"))
	if err != nil {
		a.respondPublicError(c, err)
		return
	}
	a.renderPublicPage(c, page)
}

// GetPublicPageByID 按 ID 返回已发布页面的视图。
func (a *API) GetPublicPageByID(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}

	page, err := a.pages.Get(id)
	if err != nil {
		a.respondPublicError(c, err)
		return
	}
	a.renderPublicPage(c, page)
}

func (a *API) renderPublicPage(c *gin.Context, page *db.Page) {
	if !page.IsLive() {
		respondError(c, http.StatusNotFound, "页面不存在")
		return
	}

	data, err := a.views.Render(c.Request.Context(), *page, c.Query("page"))
	if err != nil {
		a.respondPublicError(c, err)
		return
	}

	c.Data(http.StatusOK, jsonContentType, data)
}

func (a *API) respondPublicError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrPageNotFound) {
		respondError(c, http.StatusNotFound, "页面不存在")
		return
	}
	c.Error(err)
	respondError(c, http.StatusInternalServerError, "加载页面失败")
}
