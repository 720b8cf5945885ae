package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/service"
)

type snippetRequest struct {
	Title    string `json:"title" binding:"required"`
	Text     string `json:"text" binding:"required"`
	URL      string `json:"url"`
	LinkText string `json:"link_text"`
}

func (r snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Title:    r.Title,
		Text:     r.Text,
		URL:      r.URL,
		LinkText: r.LinkText,
	}
}

// GetSnippets 获取 CallToAction 片段列表
func (a *API) GetSnippets(c *gin.Context) {
	result, err := a.snippets.List(service.SnippetFilter{
		Search:  strings.TrimSpace(c.Query("search")),
		Page:    parseIntQuery(c, "page"),
		PerPage: parseIntQuery(c, "per_page"),
	})
	if err != nil {
		respondServiceError(c, err, "获取片段列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snippets":      result.Items,
		"pagination":    listMeta(result.Total, result.TotalPages, result.Page, result.PerPage),
		"delete_policy": a.snippets.Policy(),
	})
}

// GetSnippet 获取单个片段
func (a *API) GetSnippet(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的片段ID")
		return
	}

	snippet, err := a.snippets.Get(id)
	if err != nil {
		respondServiceError(c, err, "获取片段失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"snippet": snippet})
}

// CreateSnippet 创建片段
func (a *API) CreateSnippet(c *gin.Context) {
	var req snippetRequest
	if !bindJSON(c, &req, "片段标题和正文不能为空") {
		return
	}

	snippet, err := a.snippets.Create(req.input())
	if err != nil {
		respondServiceError(c, err, "创建片段失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "片段创建成功", "snippet": snippet})
}

// UpdateSnippet 更新片段，引用它的页面在读取时即可看到新内容
func (a *API) UpdateSnippet(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的片段ID")
		return
	}

	var req snippetRequest
	if !bindJSON(c, &req, "片段标题和正文不能为空") {
		return
	}

	snippet, err := a.snippets.Update(id, req.input())
	if err != nil {
		respondServiceError(c, err, "更新片段失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "片段更新成功", "snippet": snippet})
}

// GetSnippetUsage 列出引用片段的页面区块
func (a *API) GetSnippetUsage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的片段ID")
		return
	}

	usage, err := a.snippets.Usage(id)
	if err != nil {
		respondServiceError(c, err, "获取片段引用失败")
		return
	}
	if usage == nil {
		usage = []service.SnippetUsage{}
	}

	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// DeleteSnippet 按配置的策略删除片段
func (a *API) DeleteSnippet(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的片段ID")
		return
	}

	if err := a.snippets.Delete(id); err != nil {
		respondServiceError(c, err, "删除片段失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "片段删除成功"})
}
