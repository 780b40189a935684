package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Block
	}{
		{
			name:    "quote",
			content: `"Hello world"`,
			want:    []Block{{Kind: KindQuote, Text: "Hello world"}},
		},
		{
			name:    "heading then paragraph",
			content: "SUMMARY\n\nSome body text.",
			want: []Block{
				{Kind: KindHeading, Text: "SUMMARY"},
				{Kind: KindParagraph, Text: "Some body text."},
			},
		},
		{
			name:    "label heading",
			content: "Note: read this first\n\nThen the rest of it.",
			want: []Block{
				{Kind: KindHeading, Text: "Note: read this first"},
				{Kind: KindParagraph, Text: "Then the rest of it."},
			},
		},
		{
			name:    "blank blocks are dropped",
			content: "\n\nfirst\n\n   \n\nsecond para.\n\n",
			want: []Block{
				{Kind: KindParagraph, Text: "first"},
				{Kind: KindParagraph, Text: "second para."},
			},
		},
		{
			name:    "crlf line endings",
			content: "INTRO\r\n\r\nbody here.",
			want: []Block{
				{Kind: KindHeading, Text: "INTRO"},
				{Kind: KindParagraph, Text: "body here."},
			},
		},
		{
			name:    "single newline stays in one block",
			content: "line one\nline two",
			want:    []Block{{Kind: KindParagraph, Text: "line one\nline two"}},
		},
		{
			name:    "short all caps sentence reads as heading",
			content: "GST RATES ARE CHANGING.",
			want:    []Block{{Kind: KindHeading, Text: "GST RATES ARE CHANGING."}},
		},
		{
			name:    "digits only count as upper case",
			content: "2024",
			want:    []Block{{Kind: KindHeading, Text: "2024"}},
		},
		{
			name:    "lone quote mark",
			content: `"`,
			want:    []Block{{Kind: KindQuote, Text: ""}},
		},
		{
			name:    "empty",
			content: "",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segment(tt.content))
		})
	}
}

func TestSegmentLongUpperCaseIsParagraph(t *testing.T) {
	long := strings.Repeat("A", 100)
	got := Segment(long)
	assert.Equal(t, []Block{{Kind: KindParagraph, Text: long}}, got)

	justUnder := strings.Repeat("A", 99)
	assert.Equal(t, KindHeading, Segment(justUnder)[0].Kind)
}

func TestSegmentLowerCaseLabelIsParagraph(t *testing.T) {
	got := Segment("note: lower case label")
	assert.Equal(t, KindParagraph, got[0].Kind)
}

func TestSegmentDeterministic(t *testing.T) {
	in := "TITLE\n\n\"quoted\"\n\nTip: short\n\nA normal paragraph of text."
	first := Segment(in)
	assert.Equal(t, first, Segment(in))
	assert.Len(t, first, 4)
}
