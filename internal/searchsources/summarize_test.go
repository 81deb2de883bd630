package searchsources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{
			name:   "short text is kept whole",
			text:   "Go is fast. Go is simple.",
			maxLen: 300,
			want:   "Go is fast. Go is simple.",
		},
		{
			name:   "stops once the budget is reached",
			text:   "First sentence here. Second sentence here. Third sentence here.",
			maxLen: 25,
			want:   "First sentence here. Second sentence here.",
		},
		{
			name:   "empty text",
			text:   "",
			maxLen: 10,
			want:   "",
		},
		{
			name:   "text without periods",
			text:   "no sentence boundary",
			maxLen: 5,
			want:   "no sentence boundary.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeText(tt.text, tt.maxLen))
		})
	}
}

func TestSummarizeText_DefaultLength(t *testing.T) {
	text := strings.Repeat("This sentence has some words in it. ", 40)
	got := SummarizeText(text, 0)
	assert.GreaterOrEqual(t, len(got), DefaultSummaryLength)
	assert.Less(t, len(got), DefaultSummaryLength+40)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "hé", truncate("héllo", 2))
	assert.Equal(t, "aé", truncate("aé", 2))
}
