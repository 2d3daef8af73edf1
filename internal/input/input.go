// Package input turns raw user text into clean list entries.
package input

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// MaxItemLength is the maximum length of an item, in characters
const MaxItemLength = 200

// Delimiters separate several items typed in one go
var Delimiters = []rune{
	',', // ASCII comma
	'，', // fullwidth comma
	'、', // ideographic comma
	'﹐', // small comma
}

func isDelimiter(r rune) bool {
	for _, d := range Delimiters {
		if r == d {
			return true
		}
	}
	return false
}

// ParseInput splits text on any mix of the delimiters and returns the
// sanitized, non-empty segments in order. Without a delimiter the whole
// input is one item.
func ParseInput(text string) []string {
	out := []string{}
	if text == "" {
		return out
	}

	var parts []string
	if strings.IndexFunc(text, isDelimiter) >= 0 {
		parts = strings.FieldsFunc(text, isDelimiter)
	} else {
		parts = []string{text}
	}

	for _, p := range parts {
		if s := SanitizeItem(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SanitizeItem trims text, collapses whitespace runs to a single space and
// truncates the result to MaxItemLength characters.
func SanitizeItem(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	n := 0
	space := false
	for _, r := range text {
		if n == MaxItemLength {
			break
		}
		if unicode.IsSpace(r) {
			if space {
				continue
			}
			r = ' '
			space = true
		} else {
			space = false
		}
		b.WriteRune(r)
		n++
	}

	// truncation can end on the space of a collapsed run
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// EscapeHTML makes text safe to place inside markup: & < > " ' are escaped.
func EscapeHTML(text string) string {
	if text == "" {
		return ""
	}
	return html.EscapeString(text)
}
