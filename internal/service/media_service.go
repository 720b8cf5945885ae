package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/stream"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyUpload      = errors.New("uploaded file is empty")
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrInvalidFilter    = errors.New("invalid rendition filter")
)

const (
	imagesDir     = "images"
	renditionsDir = "renditions"
	documentsDir  = "documents"

	maxRenditionSize = 4000
	// FilterOriginal returns the uploaded file untouched.
	FilterOriginal = "original"
)

var imageExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// MediaFilter narrows image and document listings.
type MediaFilter struct {
	Search  string
	Page    int
	PerPage int
}

// ImageListResult aggregates paginated images.
type ImageListResult struct {
	Items      []db.Image
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// DocumentListResult aggregates paginated documents.
type DocumentListResult struct {
	Items      []db.Document
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// MediaService 管理图片、图片裁剪版本以及文档。文件保存在上传目录下，
// 数据库只记录相对文件名。
type MediaService struct {
	db      *gorm.DB
	dir     string
	urlPath string
	logger  logger.Logger
}

// NewMediaService creates a MediaService storing files below uploadDir and
// serving them under urlPath.
func NewMediaService(gdb *gorm.DB, uploadDir, urlPath string, log logger.Logger) *MediaService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MediaService{
		db:      gdb,
		dir:     uploadDir,
		urlPath: "/" + strings.Trim(urlPath, "/"),
		logger:  log,
	}
}

// UploadImage stores an image and records its dimensions. JPEG, PNG, GIF and
// WebP are accepted.
func (s *MediaService) UploadImage(title, filename string, r io.Reader) (*db.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	ext, ok := imageExtensions[format]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	name := uuid.NewString() + ext
	if err := s.writeFile(filepath.Join(imagesDir, name), data); err != nil {
		return nil, err
	}

	img := db.Image{
		Title:    defaultTitle(title, filename),
		File:     name,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FileSize: int64(len(data)),
	}
	if err := s.db.Create(&img).Error; err != nil {
		s.removeFile(filepath.Join(imagesDir, name))
		return nil, fmt.Errorf("create image: %w", err)
	}
	return &img, nil
}

// GetImage returns an image by id.
func (s *MediaService) GetImage(id uint) (*db.Image, error) {
	return s.findImage(s.db, id)
}

// ListImages returns images newest first.
func (s *MediaService) ListImages(filter MediaFilter) (ImageListResult, error) {
	result := ImageListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 30),
	}
	query := s.db.Model(&db.Image{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)
	offset := (result.Page - 1) * result.PerPage
	err := query.Order("created_at desc").Order("id desc").Limit(result.PerPage).Offset(offset).Find(&result.Items).Error
	return result, err
}

// DeleteImage removes an image, its renditions and every feed image or
// carousel reference to it.
func (s *MediaService) DeleteImage(id uint) error {
	var (
		img        *db.Image
		renditions []db.ImageRendition
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if img, err = s.findImage(tx, id); err != nil {
			return err
		}
		if err := tx.Where("image_id = ?", id).Find(&renditions).Error; err != nil {
			return err
		}

		for _, model := range []any{&db.StandardPage{}, &db.StandardIndexPage{}, &db.TextPage{}} {
			if err := tx.Model(model).Where("feed_image_id = ?", id).Update("feed_image_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&db.CarouselItem{}).Where("image_id = ?", id).Update("image_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("image_id = ?", id).Delete(&db.ImageRendition{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Image{}, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			return err
		}
		return fmt.Errorf("delete image: %w", err)
	}

	s.removeFile(filepath.Join(imagesDir, img.File))
	for _, r := range renditions {
		s.removeFile(filepath.Join(imagesDir, r.File))
	}
	return nil
}

// ImageURL returns the public URL of the original file.
func (s *MediaService) ImageURL(img db.Image) string {
	return path.Join(s.urlPath, imagesDir, img.File)
}

// RenditionURL returns the public URL of a rendition.
func (s *MediaService) RenditionURL(r db.ImageRendition) string {
	return path.Join(s.urlPath, imagesDir, r.File)
}

// Rendition returns the copy of an image produced by filter, generating and
// recording it on first use.
func (s *MediaService) Rendition(id uint, filter string) (*db.ImageRendition, error) {
	spec, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}
	img, err := s.findImage(s.db, id)
	if err != nil {
		return nil, err
	}
	if spec.op == FilterOriginal {
		return &db.ImageRendition{ImageID: img.ID, Filter: spec.String(), File: img.File, Width: img.Width, Height: img.Height}, nil
	}

	var existing db.ImageRendition
	err = s.db.Where("image_id = ? AND filter = ?", img.ID, spec.String()).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	src, err := imaging.Open(filepath.Join(s.dir, imagesDir, img.File))
	if err != nil {
		return nil, fmt.Errorf("open image %d: %w", img.ID, err)
	}
	out := spec.apply(src)

	ext := strings.ToLower(filepath.Ext(img.File))
	if ext == ".webp" {
		ext = ".png"
	}
	name := path.Join(renditionsDir, fmt.Sprintf("%s.%s%s", strings.TrimSuffix(img.File, filepath.Ext(img.File)), spec.fileTag(), ext))
	target := filepath.Join(s.dir, imagesDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create rendition dir: %w", err)
	}
	if err := imaging.Save(out, target); err != nil {
		return nil, fmt.Errorf("save rendition: %w", err)
	}

	bounds := out.Bounds()
	rendition := db.ImageRendition{
		ImageID: img.ID,
		Filter:  spec.String(),
		File:    name,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
	}
	if err := s.db.Create(&rendition).Error; err != nil {
		// 并发生成同一版本时以已存在的记录为准
		if lookup := s.db.Where("image_id = ? AND filter = ?", img.ID, rendition.Filter).First(&existing).Error; lookup == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("create rendition: %w", err)
	}
	return &rendition, nil
}

// renditionFilter is a parsed filter spec such as "fill-300x200".
type renditionFilter struct {
	op     string
	width  int
	height int
}

func parseFilter(raw string) (renditionFilter, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == FilterOriginal {
		return renditionFilter{op: FilterOriginal}, nil
	}

	op, arg, ok := strings.Cut(raw, "-")
	if !ok {
		return renditionFilter{}, ErrInvalidFilter
	}
	switch op {
	case "width", "height":
		n, err := parseDimension(arg)
		if err != nil {
			return renditionFilter{}, err
		}
		if op == "width" {
			return renditionFilter{op: op, width: n}, nil
		}
		return renditionFilter{op: op, height: n}, nil
	case "max", "min", "fill":
		w, h, ok := strings.Cut(arg, "x")
		if !ok {
			return renditionFilter{}, ErrInvalidFilter
		}
		width, err := parseDimension(w)
		if err != nil {
			return renditionFilter{}, err
		}
		height, err := parseDimension(h)
		if err != nil {
			return renditionFilter{}, err
		}
		return renditionFilter{op: op, width: width, height: height}, nil
	default:
		return renditionFilter{}, ErrInvalidFilter
	}
}

func parseDimension(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxRenditionSize {
		return 0, ErrInvalidFilter
	}
	return n, nil
}

func (f renditionFilter) String() string {
	switch f.op {
	case FilterOriginal:
		return FilterOriginal
	case "width":
		return fmt.Sprintf("width-%d", f.width)
	case "height":
		return fmt.Sprintf("height-%d", f.height)
	default:
		return fmt.Sprintf("%s-%dx%d", f.op, f.width, f.height)
	}
}

func (f renditionFilter) fileTag() string {
	return strings.ReplaceAll(f.String(), "-", "_")
}

// apply resizes src. Only fill may enlarge an image.
func (f renditionFilter) apply(src image.Image) image.Image {
	b := src.Bounds()
	switch f.op {
	case "width":
		if f.width >= b.Dx() {
			return imaging.Clone(src)
		}
		return imaging.Resize(src, f.width, 0, imaging.Lanczos)
	case "height":
		if f.height >= b.Dy() {
			return imaging.Clone(src)
		}
		return imaging.Resize(src, 0, f.height, imaging.Lanczos)
	case "max":
		return imaging.Fit(src, f.width, f.height, imaging.Lanczos)
	case "min":
		scale := math.Max(float64(f.width)/float64(b.Dx()), float64(f.height)/float64(b.Dy()))
		if scale >= 1 {
			return imaging.Clone(src)
		}
		w := int(math.Round(float64(b.Dx()) * scale))
		h := int(math.Round(float64(b.Dy()) * scale))
		return imaging.Resize(src, w, h, imaging.Lanczos)
	case "fill":
		return imaging.Fill(src, f.width, f.height, imaging.Center, imaging.Lanczos)
	default:
		return imaging.Clone(src)
	}
}

// UploadDocument stores an arbitrary file.
func (s *MediaService) UploadDocument(title, filename string, r io.Reader) (*db.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	name := uuid.NewString() + sanitizeExt(filename)
	if err := s.writeFile(filepath.Join(documentsDir, name), data); err != nil {
		return nil, err
	}

	doc := db.Document{
		Title:    defaultTitle(title, filename),
		File:     name,
		FileSize: int64(len(data)),
	}
	if err := s.db.Create(&doc).Error; err != nil {
		s.removeFile(filepath.Join(documentsDir, name))
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &doc, nil
}

// GetDocument returns a document by id.
func (s *MediaService) GetDocument(id uint) (*db.Document, error) {
	return s.findDocument(s.db, id)
}

// ListDocuments returns documents newest first.
func (s *MediaService) ListDocuments(filter MediaFilter) (DocumentListResult, error) {
	result := DocumentListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 30),
	}
	query := s.db.Model(&db.Document{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)
	offset := (result.Page - 1) * result.PerPage
	err := query.Order("created_at desc").Order("id desc").Limit(result.PerPage).Offset(offset).Find(&result.Items).Error
	return result, err
}

// DeleteDocument removes a document. Links pointing at it fall back to their
// external URL and document blocks are cleared to null.
func (s *MediaService) DeleteDocument(id uint) error {
	var doc *db.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.findDocument(tx, id); err != nil {
			return err
		}
		for _, model := range []any{&db.CarouselItem{}, &db.RelatedLink{}} {
			if err := tx.Model(model).Where("link_document_id = ?", id).Update("link_document_id", nil).Error; err != nil {
				return err
			}
		}
		cleared, err := clearStreamRefs(tx, stream.KindDocument, nil, func(blocks stream.Stream) (stream.Stream, int) {
			return blocks.ClearDocument(id)
		})
		if err != nil {
			return err
		}
		if cleared > 0 {
			s.logger.Info("document blocks cleared", logger.Uint("document_id", id), logger.Int("blocks", cleared))
		}
		return tx.Delete(&db.Document{}, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return err
		}
		return fmt.Errorf("delete document: %w", err)
	}

	s.removeFile(filepath.Join(documentsDir, doc.File))
	return nil
}

// DocumentURL returns the public URL of a document.
func (s *MediaService) DocumentURL(doc db.Document) string {
	return path.Join(s.urlPath, documentsDir, doc.File)
}

func (s *MediaService) findImage(gdb *gorm.DB, id uint) (*db.Image, error) {
	var img db.Image
	if err := gdb.First(&img, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return &img, nil
}

func (s *MediaService) findDocument(gdb *gorm.DB, id uint) (*db.Document, error) {
	var doc db.Document
	if err := gdb.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *MediaService) writeFile(rel string, data []byte) error {
	target := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

func (s *MediaService) removeFile(rel string) {
	if err := os.Remove(filepath.Join(s.dir, rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove media file failed", logger.String("file", rel), logger.Error(err))
	}
}

func defaultTitle(title, filename string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	base := filepath.Base(filename)
	if base = strings.TrimSuffix(base, filepath.Ext(base)); base != "" && base != "." {
		return base
	}
	return "Untitled"
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
