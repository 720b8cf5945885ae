package stream

import "encoding/json"

// Ref points at a block holding a reference to another record.
type Ref struct {
	BlockID string
	ID      uint
}

// SnippetRefs lists the call_to_action references held by s, in stream order.
// Cleared or undecodable blocks are skipped.
func (s Stream) SnippetRefs() []Ref {
	return s.refs(KindCallToAction)
}

// DocumentRefs lists the document references held by s.
func (s Stream) DocumentRefs() []Ref {
	return s.refs(KindDocument)
}

// ImageRefs lists the images placed by image and aligned_image blocks.
func (s Stream) ImageRefs() []Ref {
	var refs []Ref
	for _, b := range s {
		v, err := b.Decode()
		if err != nil {
			continue
		}
		switch img := v.(type) {
		case Image:
			if img.Image != 0 {
				refs = append(refs, Ref{BlockID: b.ID, ID: img.Image})
			}
		case AlignedImage:
			if img.Image != 0 {
				refs = append(refs, Ref{BlockID: b.ID, ID: img.Image})
			}
		}
	}
	return refs
}

func (s Stream) refs(kind Kind) []Ref {
	var refs []Ref
	for _, b := range s {
		if b.Type != kind {
			continue
		}
		var id *uint
		if err := json.Unmarshal(b.Value, &id); err != nil || id == nil || *id == 0 {
			continue
		}
		refs = append(refs, Ref{BlockID: b.ID, ID: *id})
	}
	return refs
}

// ClearSnippet returns a copy of s where every call_to_action block pointing
// at id holds null, and the number of blocks changed.
func (s Stream) ClearSnippet(id uint) (Stream, int) {
	return s.clear(KindCallToAction, id)
}

// ClearDocument is ClearSnippet for document blocks.
func (s Stream) ClearDocument(id uint) (Stream, int) {
	return s.clear(KindDocument, id)
}

func (s Stream) clear(kind Kind, id uint) (Stream, int) {
	out := make(Stream, len(s))
	copy(out, s)
	changed := 0
	for i, b := range out {
		if b.Type != kind {
			continue
		}
		var ref *uint
		if err := json.Unmarshal(b.Value, &ref); err != nil || ref == nil || *ref != id {
			continue
		}
		out[i].Value = json.RawMessage("null")
		changed++
	}
	return out, changed
}
