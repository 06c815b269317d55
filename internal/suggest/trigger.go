package suggest

import "unicode"

// DetectTrigger reports whether the caret sits inside a mention context: a
// trigger rune at the start of text or after whitespace, followed by no
// whitespace up to the caret. caret and the returned Range are rune offsets;
// the query is the text between the trigger and the caret.
func DetectTrigger(text string, caret int, trigger rune) (Range, string, bool) {
	runes := []rune(text)
	if caret < 0 || caret > len(runes) {
		return Range{}, "", false
	}
	for i := caret - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			return Range{}, "", false
		}
		if r != trigger {
			continue
		}
		if i > 0 && !unicode.IsSpace(runes[i-1]) {
			return Range{}, "", false
		}
		return Range{From: i, To: caret}, string(runes[i+1 : caret]), true
	}
	return Range{}, "", false
}
