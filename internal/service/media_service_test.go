package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/stream"
	"github.com/sitepages/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestMediaService(t *testing.T) (*MediaService, string) {
	t.Helper()
	dir := t.TempDir()
	return NewMediaService(testdb.Open(t), dir, "/media/", logger.NewNop()), dir
}

func TestUploadImageRecordsDimensions(t *testing.T) {
	media, dir := newTestMediaService(t)

	img, err := media.UploadImage("", "holiday photo.png", bytes.NewReader(pngBytes(t, 200, 100)))
	require.NoError(t, err)
	assert.Equal(t, "holiday photo", img.Title)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 100, img.Height)
	assert.True(t, strings.HasSuffix(img.File, ".png"))
	assert.FileExists(t, filepath.Join(dir, "images", img.File))
	assert.Equal(t, "/media/images/"+img.File, media.ImageURL(*img))

	_, err = media.UploadImage("x", "notes.txt", strings.NewReader("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = media.UploadImage("x", "empty.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	list, err := media.ListImages(MediaFilter{Search: "holiday"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestImageRenditions(t *testing.T) {
	media, dir := newTestMediaService(t)
	img, err := media.UploadImage("Wide", "wide.png", bytes.NewReader(pngBytes(t, 200, 100)))
	require.NoError(t, err)

	tests := []struct {
		filter string
		width  int
		height int
	}{
		{filter: "width-50", width: 50, height: 25},
		{filter: "width-400", width: 200, height: 100},
		{filter: "height-20", width: 40, height: 20},
		{filter: "max-60x60", width: 60, height: 30},
		{filter: "min-60x60", width: 120, height: 60},
		{filter: "fill-30x30", width: 30, height: 30},
		{filter: "original", width: 200, height: 100},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			r, err := media.Rendition(img.ID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.width, r.Width)
			assert.Equal(t, tt.height, r.Height)
			assert.FileExists(t, filepath.Join(dir, "images", filepath.FromSlash(r.File)))
		})
	}

	first, err := media.Rendition(img.ID, "fill-30x30")
	require.NoError(t, err)
	second, err := media.Rendition(img.ID, "FILL-30x30")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	for _, bad := range []string{"width-0", "width-x", "fill-30", "crop-10x10", "max-10x99999"} {
		_, err := media.Rendition(img.ID, bad)
		assert.ErrorIs(t, err, ErrInvalidFilter, bad)
	}
	_, err = media.Rendition(9999, "width-10")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestDeleteImageClearsReferences(t *testing.T) {
	media, dir := newTestMediaService(t)
	gdb := media.db

	img, err := media.UploadImage("Cover", "cover.png", bytes.NewReader(pngBytes(t, 40, 40)))
	require.NoError(t, err)
	rendition, err := media.Rendition(img.ID, "width-20")
	require.NoError(t, err)

	require.NoError(t, gdb.Create(&db.StandardPage{PageID: 1, FeedImageID: &img.ID}).Error)
	require.NoError(t, gdb.Create(&db.CarouselItem{PageID: 1, ImageID: &img.ID}).Error)

	require.NoError(t, media.DeleteImage(img.ID))

	var standard db.StandardPage
	require.NoError(t, gdb.First(&standard, "page_id = ?", 1).Error)
	assert.Nil(t, standard.FeedImageID)
	var item db.CarouselItem
	require.NoError(t, gdb.First(&item).Error)
	assert.Nil(t, item.ImageID)

	_, err = os.Stat(filepath.Join(dir, "images", img.File))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "images", filepath.FromSlash(rendition.File)))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, media.DeleteImage(img.ID), ErrImageNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	media, dir := newTestMediaService(t)
	gdb := media.db

	doc, err := media.UploadDocument("Annual report", "Report 2024.PDF", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.File, ".pdf"))
	assert.Equal(t, "/media/documents/"+doc.File, media.DocumentURL(*doc))
	assert.FileExists(t, filepath.Join(dir, "documents", doc.File))

	link := db.RelatedLink{PageID: 1, Title: "Report", LinkFields: db.LinkFields{
		LinkDocumentID: &doc.ID,
		LinkExternal:   "https://example.com/report",
	}}
	require.NoError(t, gdb.Create(&link).Error)
	body := stream.Stream{
		stream.MustBlock(stream.Paragraph("See the report")),
		stream.MustBlock(stream.Document(doc.ID)),
	}
	require.NoError(t, gdb.Create(&db.TextPage{PageID: 2, Body: body}).Error)

	require.NoError(t, media.DeleteDocument(doc.ID))

	require.NoError(t, gdb.First(&link, link.ID).Error)
	assert.Nil(t, link.LinkDocumentID)
	assert.Equal(t, "https://example.com/report", link.Resolve(nil))

	var text db.TextPage
	require.NoError(t, gdb.First(&text, "page_id = ?", 2).Error)
	require.Len(t, text.Body, 2)
	assert.JSONEq(t, "null", string(text.Body[1].Value))
	assert.Equal(t, body[0], text.Body[0])

	_, err = media.GetDocument(doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
