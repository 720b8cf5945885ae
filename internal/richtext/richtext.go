// Package richtext turns author supplied Markdown into sanitized HTML.
package richtext

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Render converts Markdown to HTML safe for embedding in a page.
func Render(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// MustRender is Render with conversion failures rendered as escaped text.
func MustRender(source string) string {
	out, err := Render(source)
	if err != nil {
		return stripper.Sanitize(source)
	}
	return out
}

// Excerpt returns up to limit characters of plain text from Markdown.
func Excerpt(source string, limit int) string {
	text := strings.Join(strings.Fields(stripper.Sanitize(MustRender(source))), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
