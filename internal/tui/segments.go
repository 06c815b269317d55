package tui

import (
	"sort"
	"strings"

	"grimoire/internal/refcodec"
	"grimoire/internal/render"
)

// renderSegments draws a decoded document as terminal text. focus indexes the
// top-level references; -1 highlights none.
func renderSegments(s *Styles, segments []refcodec.Segment, focus int) string {
	var b strings.Builder
	ref := 0
	for _, seg := range segments {
		switch seg.Kind {
		case refcodec.KindReference:
			label := refcodec.PlainLabel(*seg.Reference)
			b.WriteString(s.Badge(seg.Reference.Type, ref == focus).Render(label))
			ref++
		case refcodec.KindImage:
			b.WriteString(s.Muted.Render("[image]"))
		default:
			b.WriteString(s.Normal.Render(render.Text(seg.Text)))
		}
	}
	return b.String()
}

// topLevelReferences lists the references that get their own badge.
func topLevelReferences(segments []refcodec.Segment) []refcodec.Reference {
	var refs []refcodec.Reference
	for _, seg := range segments {
		if seg.Kind == refcodec.KindReference {
			refs = append(refs, *seg.Reference)
		}
	}
	return refs
}

// formatPairs renders non-empty map entries as "key: value" in key order.
func formatPairs(m map[string]string, sep string) string {
	keys := make([]string, 0, len(m))
	for key, v := range m {
		if v != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+m[key])
	}
	return strings.Join(parts, sep)
}
