// Package content splits a post body into display segments.
package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind classifies a segment.
type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindQuote     Kind = "quote"
	KindHeading   Kind = "heading"
)

// maxHeadingLen is exclusive, in runes.
const maxHeadingLen = 100

var labelPrefix = regexp.MustCompile(`^[A-Z][a-z]+:`)

// Block is one classified segment of a post body.
type Block struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Segment splits content on blank lines and classifies each trimmed block.
// The classification is a heuristic: short all-caps sentences come out as
// headings.
func Segment(content string) []Block {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var out []Block
	for _, block := range strings.Split(content, "\n\n") {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		out = append(out, classify(trimmed))
	}
	return out
}

func classify(s string) Block {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		text := strings.TrimPrefix(s, `"`)
		text = strings.TrimSuffix(text, `"`)
		return Block{Kind: KindQuote, Text: text}
	}
	if utf8.RuneCountInString(s) < maxHeadingLen && (s == strings.ToUpper(s) || labelPrefix.MatchString(s)) {
		return Block{Kind: KindHeading, Text: s}
	}
	return Block{Kind: KindParagraph, Text: s}
}
