package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Block kinds.
const (
	KindTitle        Kind = "title"
	KindSubtitle     Kind = "subtitle"
	KindIntro        Kind = "intro"
	KindParagraph    Kind = "paragraph"
	KindAlignedImage Kind = "aligned_image"
	KindImage        Kind = "image"
	KindRawHTML      Kind = "raw_html"
	KindLink         Kind = "link"
	KindCallToAction Kind = "call_to_action"
	KindPullQuote    Kind = "pull_quote"
	KindDocument     Kind = "document"
)

// Image alignments accepted by aligned_image blocks.
const (
	AlignLeft  = "left"
	AlignRight = "right"
	AlignMid   = "mid"
	AlignFull  = "full"
)

// Alignments accepted by raw_html blocks.
const (
	HTMLAlignNormal = "normal"
	HTMLAlignFull   = "full"
)

// Value is the typed payload of a block. Each kind has exactly one Go type.
type Value interface {
	Kind() Kind
}

// Title is a heading line.
type Title string

// Subtitle is a secondary heading line.
type Subtitle string

// Intro is rich text (Markdown) shown as a lead paragraph.
type Intro string

// Paragraph is rich text (Markdown).
type Paragraph string

// Link is an absolute URL.
type Link string

// AlignedImage places an image with a caption and a layout hint.
type AlignedImage struct {
	Image     uint   `json:"image" validate:"required"`
	Caption   string `json:"caption"`
	Alignment string `json:"alignment" validate:"required,oneof=left right mid full"`
}

// Image is the hero image block.
type Image struct {
	Image   uint   `json:"image" validate:"required"`
	Caption string `json:"caption"`
}

// RawHTML is author-supplied markup rendered as is.
type RawHTML struct {
	HTML      string `json:"html" validate:"required"`
	Alignment string `json:"alignment" validate:"required,oneof=normal full"`
}

// PullQuote is a highlighted quotation.
type PullQuote struct {
	Quote       string `json:"quote" validate:"required"`
	Attribution string `json:"attribution" validate:"required,max=255"`
}

// CallToAction references a CallToAction snippet by id. Zero means the
// reference was cleared and is stored as null.
type CallToAction uint

// Document references an uploaded document by id.
type Document uint

func (Title) Kind() Kind        { return KindTitle }
func (Subtitle) Kind() Kind     { return KindSubtitle }
func (Intro) Kind() Kind        { return KindIntro }
func (Paragraph) Kind() Kind    { return KindParagraph }
func (Link) Kind() Kind         { return KindLink }
func (AlignedImage) Kind() Kind { return KindAlignedImage }
func (Image) Kind() Kind        { return KindImage }
func (RawHTML) Kind() Kind      { return KindRawHTML }
func (PullQuote) Kind() Kind    { return KindPullQuote }
func (CallToAction) Kind() Kind { return KindCallToAction }
func (Document) Kind() Kind     { return KindDocument }

// MarshalJSON writes null for a cleared reference.
func (c CallToAction) MarshalJSON() ([]byte, error) {
	if c == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatUint(uint64(c), 10)), nil
}

// UnmarshalJSON accepts a snippet id or null.
func (c *CallToAction) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = 0
		return nil
	}
	var id uint
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*c = CallToAction(id)
	return nil
}
