package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sitepages/internal/validate"
)

var (
	// ErrUnknownKind marks a block whose type is not known, or not accepted by
	// the stream it appears in.
	ErrUnknownKind = errors.New("unknown block type")
	// ErrInvalidValue marks a block whose payload fails its kind's schema.
	ErrInvalidValue = errors.New("invalid block value")
)

type schema struct {
	label  string
	decode func(json.RawMessage) (Value, error)
	check  func(Value) error
}

// schemas is the per-kind table every block is decoded and validated with.
var schemas = map[Kind]schema{
	KindTitle:        textSchema[Title]("Title", "required,max=255"),
	KindSubtitle:     textSchema[Subtitle]("Subtitle", "required,max=255"),
	KindIntro:        textSchema[Intro]("Intro", "required"),
	KindParagraph:    textSchema[Paragraph]("Paragraph", "required"),
	KindLink:         textSchema[Link]("Link", "required,url"),
	KindAlignedImage: structSchema[AlignedImage]("Aligned image"),
	KindImage:        structSchema[Image]("Image"),
	KindRawHTML:      structSchema[RawHTML]("Raw HTML"),
	KindPullQuote:    structSchema[PullQuote]("Pull quote"),
	KindCallToAction: refSchema[CallToAction]("Call to action"),
	KindDocument:     refSchema[Document]("Document"),
}

func decodeAs[T Value](raw json.RawMessage) (Value, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func textSchema[T interface {
	~string
	Value
}](label, rules string) schema {
	return schema{
		label:  label,
		decode: decodeAs[T],
		check: func(v Value) error {
			return validate.Var(strings.TrimSpace(string(v.(T))), rules)
		},
	}
}

func structSchema[T Value](label string) schema {
	return schema{
		label:  label,
		decode: decodeAs[T],
		check: func(v Value) error {
			return validate.Struct(v)
		},
	}
}

func refSchema[T interface {
	~uint
	Value
}](label string) schema {
	return schema{
		label:  label,
		decode: decodeAs[T],
		check: func(v Value) error {
			return validate.Var(uint(v.(T)), "required")
		},
	}
}

// Check validates a single value against its kind's schema.
func Check(v Value) error {
	s, ok := schemas[v.Kind()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, v.Kind())
	}
	if err := s.check(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, validate.Message(err))
	}
	return nil
}

// Label returns the human readable name of a kind.
func Label(k Kind) string {
	if s, ok := schemas[k]; ok {
		return s.label
	}
	return string(k)
}

// Definition is the set of kinds a particular stream field accepts.
type Definition struct {
	name  string
	kinds []Kind
}

// NewDefinition declares a stream field accepting kinds.
func NewDefinition(name string, kinds ...Kind) Definition {
	return Definition{name: name, kinds: kinds}
}

var (
	// BodyBlocks is accepted by page bodies and sections.
	BodyBlocks = NewDefinition("body",
		KindTitle,
		KindSubtitle,
		KindIntro,
		KindParagraph,
		KindAlignedImage,
		KindRawHTML,
		KindLink,
		KindCallToAction,
		KindPullQuote,
		KindDocument,
	)
	// HeroBlocks is accepted by the hero area at the top of a site page.
	HeroBlocks = NewDefinition("hero", KindImage, KindTitle, KindSubtitle)
)

// Name returns the definition name.
func (d Definition) Name() string {
	return d.name
}

// Kinds returns the accepted kinds in declaration order.
func (d Definition) Kinds() []Kind {
	return slices.Clone(d.kinds)
}

// Accepts reports whether k may appear in streams of this definition.
func (d Definition) Accepts(k Kind) bool {
	return slices.Contains(d.kinds, k)
}

// Validate checks every block of s and reports all failures at once. It
// returns nil or a *ValidationError.
func (d Definition) Validate(field string, s Stream) error {
	var errs []BlockError
	for i, b := range s {
		if err := d.validateBlock(b); err != nil {
			errs = append(errs, BlockError{Index: i, Kind: b.Type, Err: err})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Field: field, Errors: errs}
}

func (d Definition) validateBlock(b Block) error {
	if !d.Accepts(b.Type) {
		return fmt.Errorf("%w: %q is not allowed in %s", ErrUnknownKind, b.Type, d.name)
	}
	v, err := b.Decode()
	if err != nil {
		return err
	}
	return Check(v)
}

// BlockError describes the failure of one stream entry.
type BlockError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e BlockError) Error() string {
	return fmt.Sprintf("block %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e BlockError) Unwrap() error {
	return e.Err
}

// ValidationError collects every failing entry of a stream field.
type ValidationError struct {
	Field  string
	Errors []BlockError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, be := range e.Errors {
		parts[i] = be.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, be := range e.Errors {
		errs[i] = be
	}
	return errs
}
