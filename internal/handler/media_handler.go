package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/service"
)

// maxUploadSize 限制单个上传文件的大小。
const maxUploadSize = 32 << 20

func (a *API) imageResponse(img db.Image) gin.H {
	return gin.H{
		"id":         img.ID,
		"title":      img.Title,
		"url":        a.media.ImageURL(img),
		"width":      img.Width,
		"height":     img.Height,
		"file_size":  img.FileSize,
		"created_at": img.CreatedAt,
	}
}

func (a *API) documentResponse(doc db.Document) gin.H {
	return gin.H{
		"id":         doc.ID,
		"title":      doc.Title,
		"url":        a.media.DocumentURL(doc),
		"file_size":  doc.FileSize,
		"created_at": doc.CreatedAt,
	}
}

func mediaFilter(c *gin.Context) service.MediaFilter {
	return service.MediaFilter{
		Search:  strings.TrimSpace(c.Query("search")),
		Page:    parseIntQuery(c, "page"),
		PerPage: parseIntQuery(c, "per_page"),
	}
}

// GetImages 获取图片列表
func (a *API) GetImages(c *gin.Context) {
	result, err := a.media.ListImages(mediaFilter(c))
	if err != nil {
		respondServiceError(c, err, "获取图片列表失败")
		return
	}

	images := make([]gin.H, 0, len(result.Items))
	for _, img := range result.Items {
		images = append(images, a.imageResponse(img))
	}
	c.JSON(http.StatusOK, gin.H{
		"images":     images,
		"pagination": listMeta(result.Total, result.TotalPages, result.Page, result.PerPage),
	})
}

// UploadImage 处理图片上传请求
func (a *API) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}
	if file.Size > maxUploadSize {
		respondError(c, http.StatusRequestEntityTooLarge, "图片文件过大")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	defer src.Close()

	img, err := a.media.UploadImage(c.PostForm("title"), file.Filename, src)
	if err != nil {
		respondServiceError(c, err, "保存图片失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "上传成功", "image": a.imageResponse(*img)})
}

// GetImage 获取单张图片
func (a *API) GetImage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的图片ID")
		return
	}

	img, err := a.media.GetImage(id)
	if err != nil {
		respondServiceError(c, err, "获取图片失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": a.imageResponse(*img)})
}

// GetImageRendition 按过滤规则生成或读取图片裁剪版本
func (a *API) GetImageRendition(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的图片ID")
		return
	}

	rendition, err := a.media.Rendition(id, c.Param("filter"))
	if err != nil {
		respondServiceError(c, err, "生成图片版本失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"rendition": gin.H{
		"image_id": rendition.ImageID,
		"filter":   rendition.Filter,
		"url":      a.media.RenditionURL(*rendition),
		"width":    rendition.Width,
		"height":   rendition.Height,
	}})
}

// DeleteImage 删除图片，引用它的页面字段会被清空
func (a *API) DeleteImage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的图片ID")
		return
	}

	if err := a.media.DeleteImage(id); err != nil {
		respondServiceError(c, err, "删除图片失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "图片删除成功"})
}

// GetDocuments 获取文档列表
func (a *API) GetDocuments(c *gin.Context) {
	result, err := a.media.ListDocuments(mediaFilter(c))
	if err != nil {
		respondServiceError(c, err, "获取文档列表失败")
		return
	}

	documents := make([]gin.H, 0, len(result.Items))
	for _, doc := range result.Items {
		documents = append(documents, a.documentResponse(doc))
	}
	c.JSON(http.StatusOK, gin.H{
		"documents":  documents,
		"pagination": listMeta(result.Total, result.TotalPages, result.Page, result.PerPage),
	})
}

// UploadDocument 处理文档上传请求
func (a *API) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的文档")
		return
	}
	if file.Size > maxUploadSize {
		respondError(c, http.StatusRequestEntityTooLarge, "文档文件过大")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	defer src.Close()

	doc, err := a.media.UploadDocument(c.PostForm("title"), file.Filename, src)
	if err != nil {
		respondServiceError(c, err, "保存文档失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "上传成功", "document": a.documentResponse(*doc)})
}

// GetDocument 获取单个文档
func (a *API) GetDocument(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文档ID")
		return
	}

	doc, err := a.media.GetDocument(id)
	if err != nil {
		respondServiceError(c, err, "获取文档失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": a.documentResponse(*doc)})
}

// DeleteDocument 删除文档，链接与文档区块中的引用会被清空
func (a *API) DeleteDocument(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文档ID")
		return
	}

	if err := a.media.DeleteDocument(id); err != nil {
		respondServiceError(c, err, "删除文档失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "文档删除成功"})
}
