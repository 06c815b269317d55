// Package render turns decoded rich-text documents into read-only HTML and
// plain text, and converts editor JSON into stored documents.
package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	"grimoire/internal/refcodec"
)

// HTML renders document for read-only display. Reference tokens become typed
// badges that a client attaches previews to; images become inline images.
// Surrounding markup passes through the user content policy, which drops
// scripts and event handler attributes.
func HTML(document string) string {
	return Segments(refcodec.Decode(document))
}

var textPolicy = newTextPolicy()

func newTextPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9 _-]*$`)).Globally()
	p.AllowDataAttributes()
	return p
}

// Segments renders already decoded segments.
func Segments(segments []refcodec.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Kind {
		case refcodec.KindReference:
			writeBadge(&b, *seg.Reference)
		case refcodec.KindImage:
			b.WriteString(`<img class="inline-image" src="`)
			b.WriteString(html.EscapeString(seg.Image.Src))
			b.WriteString(`" alt="">`)
		default:
			b.WriteString(textPolicy.Sanitize(seg.Text))
		}
	}
	return b.String()
}

func writeBadge(b *strings.Builder, ref refcodec.Reference) {
	b.WriteString(`<span class="ref ref-`)
	b.WriteString(ref.Type.Slug())
	b.WriteString(`" data-entity-type="`)
	b.WriteString(html.EscapeString(string(ref.Type)))
	b.WriteString(`" data-id="`)
	b.WriteString(html.EscapeString(ref.ID))
	b.WriteString(`">`)
	if len(ref.LabelSegments) == 0 {
		b.WriteString(html.EscapeString(ref.Label))
	} else {
		// Badges do not nest: inner references render as their label text.
		for _, seg := range ref.LabelSegments {
			switch seg.Kind {
			case refcodec.KindReference:
				b.WriteString(html.EscapeString(refcodec.PlainLabel(*seg.Reference)))
			case refcodec.KindImage:
				b.WriteString(`<img class="inline-image" src="`)
				b.WriteString(html.EscapeString(seg.Image.Src))
				b.WriteString(`" alt="">`)
			default:
				b.WriteString(html.EscapeString(stripTags(seg.Text)))
			}
		}
	}
	b.WriteString(`</span>`)
}

// PlainText strips markup from document, keeping reference labels and
// collapsing whitespace. Images are dropped.
func PlainText(document string) string {
	var b strings.Builder
	for _, seg := range refcodec.Decode(document) {
		switch seg.Kind {
		case refcodec.KindReference:
			b.WriteString(" ")
			b.WriteString(refcodec.PlainLabel(*seg.Reference))
			b.WriteString(" ")
		case refcodec.KindText:
			writeText(&b, seg.Text)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "blockquote": true, "tr": true,
}

// Text strips tags from a markup fragment, keeping its whitespace. Block
// tags become a single space.
func Text(markup string) string {
	return stripTags(markup)
}

func stripTags(markup string) string {
	var b strings.Builder
	writeText(&b, markup)
	return b.String()
}

func writeText(b *strings.Builder, markup string) {
	z := xhtml.NewTokenizer(strings.NewReader(markup))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return
		case xhtml.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == xhtml.StartTagToken {
					skip++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteString(" ")
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockTags[tag] {
				b.WriteString(" ")
			}
		}
	}
}
