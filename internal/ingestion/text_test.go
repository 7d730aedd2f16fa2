package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText_PreserveBulletLists(t *testing.T) {
	input := "- Item 1\n- Item 2\n* Item 3\n• Item 4"
	result := CleanText(input)

	assert.Contains(t, result, "- Item 1")
	assert.Contains(t, result, "- Item 2")
	assert.Contains(t, result, "* Item 3")
	assert.Contains(t, result, "• Item 4")
}

func TestCleanText_NormalizeWhitespace(t *testing.T) {
	result := CleanText("Line    with    multiple    spaces")

	assert.Equal(t, "Line with multiple spaces", result)
}

func TestCleanText_RemoveExcessiveBlankLines(t *testing.T) {
	result := CleanText("Line 1\n\n\n\n\nLine 2")

	assert.Equal(t, "Line 1\n\nLine 2", result)
}

func TestCleanText_NormalizeLineEndings(t *testing.T) {
	result := CleanText("Line 1\r\nLine 2\rLine 3\fLine 4")

	assert.Equal(t, "Line 1\nLine 2\nLine 3\nLine 4", result)
}

func TestCleanText_Empty(t *testing.T) {
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "", CleanText("   \n\t\n  "))
}

func TestNormalizeOCR(t *testing.T) {
	input := "JOHN\tDOE   \r\n-----\n\n\n\nSoftware  Engineer  \n____\nSkills"
	result := NormalizeOCR(input)

	assert.Equal(t, "JOHN DOE\n\nSoftware Engineer\n\nSkills", result)
}

func TestTextLength_IgnoresWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "empty", in: "", want: 0},
		{name: "whitespace only", in: " \n\t\n ", want: 0},
		{name: "ascii", in: "ab cd\n\nef", want: 6},
		{name: "unicode", in: "Zoë Müller", want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TextLength(tt.in))
		})
	}
}

func TestJoinPages_SkipsBlankPages(t *testing.T) {
	result := joinPages([]string{"first", "  ", "", "second"})

	assert.Equal(t, "first\n\nsecond", result)
	assert.Equal(t, 1, strings.Count(result, pageSeparator))
}
