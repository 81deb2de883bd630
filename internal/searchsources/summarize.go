package searchsources

import "strings"

// DefaultSummaryLength is the budget SummarizeText uses when maxLen <= 0.
const DefaultSummaryLength = 300

// SummarizeText returns the leading sentences of text. Sentences are taken
// while the summary is still shorter than maxLen, so the result may run
// past maxLen by at most one sentence.
func SummarizeText(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSummaryLength
	}

	var b strings.Builder
	for _, sentence := range strings.Split(text, ".") {
		if b.Len() >= maxLen {
			break
		}
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		b.WriteString(sentence)
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}
