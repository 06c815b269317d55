package refcodec

import (
	"strings"

	"golang.org/x/net/html"

	"grimoire/internal/entity"
)

// DefaultMaxDepth bounds how many levels of reference-inside-label are
// decoded before the remaining label is kept as plain text.
const DefaultMaxDepth = 5

const (
	attrDiscriminator = "data-type"
	mentionType       = "mention"
	attrID            = "data-id"
	attrLabel         = "data-label"
	attrEntityType    = "data-entity-type"

	// legacyTag predates the data-* attributes: <ref type=Rule id=r1 label='x'/>.
	legacyTag = "ref"
)

// Decoder splits documents into segments.
type Decoder struct {
	MaxDepth int
}

var defaultDecoder = Decoder{MaxDepth: DefaultMaxDepth}

// Decode splits document with the default depth bound.
func Decode(document string) []Segment {
	return defaultDecoder.Decode(document)
}

// Decode splits document into text, reference and image segments in source
// order. It never panics; any internal fault yields one text segment holding
// the whole input.
func (d Decoder) Decode(document string) (segments []Segment) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			if document != "" {
				segments = []Segment{textSegment(document)}
			}
		}
	}()
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return decodeAt(document, 0, maxDepth)
}

type segmentBuilder struct {
	segments []Segment
	text     strings.Builder
}

func (b *segmentBuilder) writeText(s string) {
	b.text.WriteString(s)
}

func (b *segmentBuilder) flush() {
	if b.text.Len() == 0 {
		return
	}
	b.segments = append(b.segments, textSegment(b.text.String()))
	b.text.Reset()
}

func (b *segmentBuilder) add(seg Segment) {
	if seg.Kind == KindText {
		b.writeText(seg.Text)
		return
	}
	b.flush()
	b.segments = append(b.segments, seg)
}

func (b *segmentBuilder) addAll(segs []Segment) {
	for _, seg := range segs {
		b.add(seg)
	}
}

func (b *segmentBuilder) result() []Segment {
	b.flush()
	return b.segments
}

type tagInfo struct {
	name  string
	attrs map[string]string
}

func (t tagInfo) isMention() bool {
	return t.name == legacyTag || strings.EqualFold(t.attrs[attrDiscriminator], mentionType)
}

func (t tagInfo) attr(primary, legacy string) (string, bool) {
	if v, ok := t.attrs[primary]; ok {
		return v, true
	}
	if t.name == legacyTag {
		v, ok := t.attrs[legacy]
		return v, ok
	}
	return "", false
}

func readTag(z *html.Tokenizer) tagInfo {
	name, hasAttr := z.TagName()
	info := tagInfo{name: string(name), attrs: map[string]string{}}
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		k := string(key)
		if _, seen := info.attrs[k]; !seen {
			info.attrs[k] = string(val)
		}
	}
	return info
}

func decodeAt(document string, depth, maxDepth int) []Segment {
	if document == "" {
		return nil
	}

	z := html.NewTokenizer(strings.NewReader(document))
	var b segmentBuilder
	consumed := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF ends a well-formed scan; anything else leaves a tail that
			// is appended verbatim below.
			break
		}
		// Raw must be copied before TagName/TagAttr/Text, which rewrite the
		// tokenizer buffer in place.
		raw := string(z.Raw())
		consumed += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tag := readTag(z)
			switch {
			case tag.isMention():
				if tt == html.SelfClosingTagToken {
					ref, ok := buildReference(tag, "", "", depth, maxDepth)
					if !ok {
						b.writeText(raw)
						continue
					}
					b.add(referenceSegment(ref))
					continue
				}
				inner, innerText, closing, closed := readElementBody(z, tag.name)
				consumed += len(inner) + len(closing)
				if !closed {
					// Unterminated reference: keep the opening tag as text and
					// decode whatever followed it at the same level.
					b.writeText(raw)
					b.addAll(decodeAt(inner, depth, maxDepth))
					continue
				}
				ref, ok := buildReference(tag, inner, innerText, depth, maxDepth)
				if !ok {
					b.writeText(raw + inner + closing)
					continue
				}
				b.add(referenceSegment(ref))
			case tag.name == "img":
				src := tag.attrs["src"]
				if strings.TrimSpace(src) == "" {
					b.writeText(raw)
					continue
				}
				b.add(imageSegment(src))
			default:
				b.writeText(raw)
			}
		default:
			b.writeText(raw)
		}
	}

	if consumed < len(document) {
		b.writeText(document[consumed:])
	}
	return b.result()
}

// readElementBody consumes tokens up to the end tag matching name, honouring
// nested elements of the same name. It returns the raw inner markup, the
// unescaped inner text, the raw closing tag and whether one was found.
func readElementBody(z *html.Tokenizer, name string) (inner, innerText, closing string, closed bool) {
	var raw, text strings.Builder
	level := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return raw.String(), text.String(), "", false
		}
		chunk := string(z.Raw())
		switch tt {
		case html.StartTagToken:
			if tagName(z) == name {
				level++
			}
		case html.EndTagToken:
			if tagName(z) == name {
				if level == 0 {
					return raw.String(), text.String(), chunk, true
				}
				level--
			}
		case html.TextToken:
			text.Write(z.Text())
		}
		raw.WriteString(chunk)
	}
}

func tagName(z *html.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}

func buildReference(tag tagInfo, inner, innerText string, depth, maxDepth int) (Reference, bool) {
	id, _ := tag.attr(attrID, "id")
	id = strings.TrimSpace(id)
	if id == "" {
		return Reference{}, false
	}

	label, ok := tag.attr(attrLabel, "label")
	if !ok || label == "" {
		label = strings.TrimSpace(innerText)
		// A body holding references or images becomes the label markup so
		// the nested decode below keeps them.
		if strings.ContainsRune(inner, '<') && depth+1 <= maxDepth &&
			hasToken(decodeAt(inner, depth+1, maxDepth)) {
			label = strings.TrimSpace(inner)
		}
	}
	if label == "" {
		label = id
	}

	rawType, _ := tag.attr(attrEntityType, "type")
	ref := Reference{
		ID:    id,
		Label: label,
		Type:  entity.ParseOrDefault(rawType),
	}

	if strings.ContainsRune(label, '<') && depth+1 <= maxDepth {
		nested := decodeAt(label, depth+1, maxDepth)
		if hasToken(nested) {
			ref.LabelSegments = nested
		}
	}
	return ref, true
}

func hasToken(segments []Segment) bool {
	for _, seg := range segments {
		if seg.Kind != KindText {
			return true
		}
	}
	return false
}
