package stream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStream() Stream {
	return Stream{
		MustBlock(Title("Welcome")),
		MustBlock(Paragraph("Some **bold** text")),
		MustBlock(AlignedImage{Image: 3, Caption: "A view", Alignment: AlignMid}),
		MustBlock(RawHTML{HTML: `<div class="x">&nbsp;</div>`, Alignment: HTMLAlignFull}),
		MustBlock(CallToAction(7)),
		MustBlock(Link("https://example.com/a?b=c&d=e")),
	}
}

func TestStreamRoundTrip(t *testing.T) {
	s := sampleStream()

	first, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Stream
	require.NoError(t, json.Unmarshal(first, &decoded))
	require.Len(t, decoded, len(s))
	for i := range s {
		assert.Equal(t, s[i].ID, decoded[i].ID)
		assert.Equal(t, s[i].Type, decoded[i].Type)
	}

	second, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestStreamMarshalKeepsHTML(t *testing.T) {
	s := Stream{MustBlock(RawHTML{HTML: "<p>hi</p>", Alignment: HTMLAlignNormal})}
	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>hi</p>")
}

func TestEmptyStreamMarshalsToArray(t *testing.T) {
	var s Stream
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestStreamScanAndValue(t *testing.T) {
	s := sampleStream()
	v, err := s.Value()
	require.NoError(t, err)

	var scanned Stream
	require.NoError(t, scanned.Scan(v))
	again, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, v, again)

	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.Len(t, scanned, len(s))

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan(42))
}

func TestStreamPositionalOps(t *testing.T) {
	a := MustBlock(Title("a"))
	b := MustBlock(Title("b"))
	c := MustBlock(Title("c"))

	var s Stream
	s.Append(a, c)
	require.NoError(t, s.Insert(1, b))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(s))

	require.NoError(t, s.Move(0, 2))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(s))

	require.NoError(t, s.Move(2, 0))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(s))

	removed, err := s.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, b.ID, removed.ID)
	assert.Equal(t, []string{a.ID, c.ID}, ids(s))
	assert.Equal(t, 1, s.Index(c.ID))
	assert.Equal(t, -1, s.Index("missing"))

	assert.ErrorIs(t, s.Insert(5, b), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Move(0, 2), ErrIndexOutOfRange)
	_, err = s.Remove(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestWithIDsFillsBlankIDs(t *testing.T) {
	var s Stream
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"title","value":"a"},{"id":"keep","type":"title","value":"b"}]`), &s))

	filled := s.WithIDs()
	require.Len(t, filled, 2)
	assert.NotEmpty(t, filled[0].ID)
	assert.Equal(t, "keep", filled[1].ID)
	assert.Empty(t, s[0].ID)
	assert.Nil(t, Stream(nil).WithIDs())
}

func ids(s Stream) []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = b.ID
	}
	return out
}

func TestDecodeTypedValues(t *testing.T) {
	values, err := sampleStream().Decode()
	require.NoError(t, err)
	require.Len(t, values, 6)

	assert.Equal(t, Title("Welcome"), values[0])
	assert.Equal(t, AlignedImage{Image: 3, Caption: "A view", Alignment: AlignMid}, values[2])
	assert.Equal(t, CallToAction(7), values[4])
}

func TestAlignedImageAlignment(t *testing.T) {
	for _, align := range []string{AlignLeft, AlignRight, AlignMid, AlignFull} {
		assert.NoError(t, Check(AlignedImage{Image: 1, Alignment: align}), align)
	}
	for _, align := range []string{"diagonal", "normal", "", "LEFT"} {
		err := Check(AlignedImage{Image: 1, Alignment: align})
		assert.ErrorIs(t, err, ErrInvalidValue, align)
	}
}

func TestRawHTMLAlignment(t *testing.T) {
	for _, align := range []string{HTMLAlignNormal, HTMLAlignFull} {
		assert.NoError(t, Check(RawHTML{HTML: "<b>x</b>", Alignment: align}), align)
	}
	for _, align := range []string{"mid", "left", "right", ""} {
		err := Check(RawHTML{HTML: "<b>x</b>", Alignment: align})
		assert.ErrorIs(t, err, ErrInvalidValue, align)
	}
}

func TestCheckValues(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		ok    bool
	}{
		{name: "title", value: Title("Hello"), ok: true},
		{name: "blank title", value: Title("   "), ok: false},
		{name: "long subtitle", value: Subtitle(string(make([]byte, 256))), ok: false},
		{name: "paragraph", value: Paragraph("text"), ok: true},
		{name: "absolute link", value: Link("https://example.com"), ok: true},
		{name: "relative link", value: Link("/about/"), ok: false},
		{name: "cleared call to action", value: CallToAction(0), ok: false},
		{name: "call to action", value: CallToAction(2), ok: true},
		{name: "document", value: Document(4), ok: true},
		{name: "image without id", value: Image{Caption: "x"}, ok: false},
		{name: "pull quote", value: PullQuote{Quote: "q", Attribution: "a"}, ok: true},
		{name: "pull quote without attribution", value: PullQuote{Quote: "q"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidValue)
			}
		})
	}
}

func TestDefinitionValidateReportsEveryEntry(t *testing.T) {
	s := Stream{
		MustBlock(Title("ok")),
		MustBlock(AlignedImage{Image: 1, Alignment: "diagonal"}),
		MustBlock(Paragraph("fine")),
		MustBlock(Image{Image: 2}),
		{ID: "x", Type: "carousel", Value: json.RawMessage(`{}`)},
		{ID: "y", Type: KindTitle, Value: json.RawMessage(`{"not":"a string"}`)},
	}

	err := BodyBlocks.Validate("body", s)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "body", verr.Field)
	require.Len(t, verr.Errors, 4)

	assert.Equal(t, 1, verr.Errors[0].Index)
	assert.Equal(t, KindAlignedImage, verr.Errors[0].Kind)
	assert.ErrorIs(t, verr.Errors[0], ErrInvalidValue)

	assert.Equal(t, 3, verr.Errors[1].Index)
	assert.ErrorIs(t, verr.Errors[1], ErrUnknownKind)

	assert.Equal(t, 4, verr.Errors[2].Index)
	assert.ErrorIs(t, verr.Errors[2], ErrUnknownKind)

	assert.Equal(t, 5, verr.Errors[3].Index)
	assert.ErrorIs(t, verr.Errors[3], ErrInvalidValue)

	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDefinitionValidateAcceptsValidStream(t *testing.T) {
	assert.NoError(t, BodyBlocks.Validate("body", sampleStream()))
	assert.NoError(t, HeroBlocks.Validate("hero", Stream{
		MustBlock(Image{Image: 1}),
		MustBlock(Title("Hero")),
	}))
	assert.NoError(t, BodyBlocks.Validate("body", nil))
}

func TestHeroRejectsBodyKinds(t *testing.T) {
	err := HeroBlocks.Validate("hero", Stream{MustBlock(Paragraph("x"))})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.True(t, HeroBlocks.Accepts(KindImage))
	assert.False(t, HeroBlocks.Accepts(KindParagraph))
}

func TestSnippetRefsAndClear(t *testing.T) {
	keep := MustBlock(CallToAction(2))
	drop := MustBlock(CallToAction(5))
	s := Stream{MustBlock(Title("t")), drop, keep, MustBlock(CallToAction(5))}

	refs := s.SnippetRefs()
	require.Len(t, refs, 3)
	assert.Equal(t, Ref{BlockID: drop.ID, ID: 5}, refs[0])

	cleared, n := s.ClearSnippet(5)
	assert.Equal(t, 2, n)
	assert.Equal(t, "null", string(cleared[1].Value))
	assert.Equal(t, "2", string(cleared[2].Value))
	assert.Equal(t, "5", string(s[1].Value), "original stream is untouched")

	refs = cleared.SnippetRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, uint(2), refs[0].ID)

	v, err := cleared[1].Decode()
	require.NoError(t, err)
	assert.Equal(t, CallToAction(0), v)
}

func TestImageRefs(t *testing.T) {
	s := Stream{
		MustBlock(Image{Image: 1}),
		MustBlock(AlignedImage{Image: 2, Alignment: AlignLeft}),
		MustBlock(Document(3)),
	}
	refs := s.ImageRefs()
	require.Len(t, refs, 2)
	assert.Equal(t, uint(1), refs[0].ID)
	assert.Equal(t, uint(2), refs[1].ID)

	docs := s.DocumentRefs()
	require.Len(t, docs, 1)
	assert.Equal(t, uint(3), docs[0].ID)
}
