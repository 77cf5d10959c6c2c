package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text (trim, collapse whitespace). It is applied to
// binary formats whose extractors emit layout whitespace; markdown and plain text
// are chunked verbatim.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
