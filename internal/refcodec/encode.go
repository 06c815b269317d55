package refcodec

import (
	"html"
	"strings"

	"grimoire/internal/entity"
)

// Encode returns the canonical markup for a reference. The label is carried
// both as an attribute and as inner text so that decoders which only read
// inner text still recover it. An empty label is written as the id, which is
// what Decode would report for it.
func Encode(t entity.Type, id, label string) string {
	if !t.Valid() {
		t = entity.Default
	}
	if label == "" {
		label = id
	}
	escapedLabel := html.EscapeString(label)

	var b strings.Builder
	b.WriteString(`<span `)
	b.WriteString(attrDiscriminator)
	b.WriteString(`="`)
	b.WriteString(mentionType)
	b.WriteString(`" `)
	b.WriteString(attrEntityType)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(string(t)))
	b.WriteString(`" `)
	b.WriteString(attrID)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(id))
	b.WriteString(`" `)
	b.WriteString(attrLabel)
	b.WriteString(`="`)
	b.WriteString(escapedLabel)
	b.WriteString(`">`)
	b.WriteString(escapedLabel)
	b.WriteString(`</span>`)
	return b.String()
}

// EncodeReference is Encode for an already decoded reference.
func EncodeReference(ref Reference) string {
	return Encode(ref.Type, ref.ID, ref.Label)
}

// EncodeImage returns the canonical markup for an inline image.
func EncodeImage(src string) string {
	return `<img src="` + html.EscapeString(src) + `">`
}

// Join serialises segments back into a document using canonical tokens.
// Text segments are written verbatim.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Kind {
		case KindReference:
			if seg.Reference != nil {
				b.WriteString(EncodeReference(*seg.Reference))
			}
		case KindImage:
			if seg.Image != nil {
				b.WriteString(EncodeImage(seg.Image.Src))
			}
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// Canonicalize rewrites every token in document into its canonical form.
func Canonicalize(document string) string {
	return Join(Decode(document))
}

// References lists every reference in document, including references nested
// inside labels, in order of first appearance and without duplicates.
func References(document string) []Reference {
	var out []Reference
	seen := map[string]struct{}{}
	collectReferences(Decode(document), seen, &out)
	return out
}

func collectReferences(segments []Segment, seen map[string]struct{}, out *[]Reference) {
	for _, seg := range segments {
		if seg.Kind != KindReference || seg.Reference == nil {
			continue
		}
		ref := *seg.Reference
		if _, dup := seen[ref.Key()]; !dup {
			seen[ref.Key()] = struct{}{}
			flat := ref
			flat.LabelSegments = nil
			*out = append(*out, flat)
		}
		collectReferences(ref.LabelSegments, seen, out)
	}
}

// PlainLabel renders a reference label without markup, flattening nested
// references and dropping images.
func PlainLabel(ref Reference) string {
	if len(ref.LabelSegments) == 0 {
		return ref.Label
	}
	var b strings.Builder
	for _, seg := range ref.LabelSegments {
		switch seg.Kind {
		case KindReference:
			b.WriteString(PlainLabel(*seg.Reference))
		case KindText:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}
