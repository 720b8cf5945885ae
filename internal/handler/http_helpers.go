package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseUintQuery returns nil when the query value is missing or malformed.
func parseUintQuery(c *gin.Context, key string) *uint {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	value := uint(id)
	return &value
}

func parseIntQuery(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}

var notFoundErrors = []error{
	service.ErrPageNotFound,
	service.ErrParentNotFound,
	service.ErrSectionNotFound,
	service.ErrSnippetNotFound,
	service.ErrImageNotFound,
	service.ErrDocumentNotFound,
	service.ErrRootPageNotFound,
}

var badRequestErrors = []error{
	service.ErrTitleMissing,
	service.ErrSlugInvalid,
	service.ErrInvalidKind,
	service.ErrInvalidMove,
	service.ErrRootPage,
	service.ErrKindMismatch,
	service.ErrSectionsUnsupported,
	service.ErrPositionOutOfRange,
	service.ErrEmptyUpload,
	service.ErrUnsupportedImage,
	service.ErrInvalidFilter,
	service.ErrNotIndexPage,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondServiceError 将服务层错误映射为 HTTP 状态码，未知错误挂到请求上由日志中间件记录。
func respondServiceError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	var inUse *service.SnippetInUseError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "内容校验失败", "problems": verr.Problems})
	case errors.As(err, &inUse):
		c.JSON(http.StatusConflict, gin.H{"error": "片段正在被页面使用，无法删除", "page_ids": inUse.PageIDs})
	case isAny(err, notFoundErrors):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSlugInUse), errors.Is(err, service.ErrRootExists), errors.Is(err, service.ErrTreeFull):
		respondError(c, http.StatusConflict, err.Error())
	case isAny(err, badRequestErrors):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		c.Error(err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func listMeta(total int64, totalPages, page, perPage int) gin.H {
	return gin.H{
		"total":       total,
		"total_pages": totalPages,
		"page":        page,
		"per_page":    perPage,
	}
}
