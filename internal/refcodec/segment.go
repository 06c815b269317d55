// Package refcodec embeds typed entity references and inline images into a
// stored rich-text document and decodes a document back into an ordered
// sequence of text, reference and image segments.
//
// The stored document is the only source of truth: every reference and image
// can be re-derived from the string alone. Decoding never fails; malformed or
// partial tokens come back as plain text.
package refcodec

import "grimoire/internal/entity"

// Kind discriminates the payload carried by a Segment.
type Kind string

const (
	KindText      Kind = "text"
	KindReference Kind = "reference"
	KindImage     Kind = "image"
)

// Segment is one decoded unit of a document.
type Segment struct {
	Kind      Kind       `json:"kind"`
	Text      string     `json:"text,omitempty"`
	Reference *Reference `json:"reference,omitempty"`
	Image     *Image     `json:"image,omitempty"`
}

// Reference is an embedded pointer to another catalog entity.
type Reference struct {
	ID    string      `json:"id"`
	Label string      `json:"label"`
	Type  entity.Type `json:"entityType"`
	// LabelSegments holds the decoded label when it carries markup of its
	// own. Nil when the label is plain text or the depth bound was reached.
	LabelSegments []Segment `json:"labelSegments,omitempty"`
}

// Image is an embedded inline image.
type Image struct {
	Src string `json:"src"`
}

// Key identifies the referenced entity independently of the label.
func (r Reference) Key() string {
	return r.Type.Slug() + ":" + r.ID
}

func textSegment(s string) Segment {
	return Segment{Kind: KindText, Text: s}
}

func referenceSegment(ref Reference) Segment {
	return Segment{Kind: KindReference, Reference: &ref}
}

func imageSegment(src string) Segment {
	return Segment{Kind: KindImage, Image: &Image{Src: src}}
}
