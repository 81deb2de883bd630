package searchsources

import (
	"sort"
	"strings"

	"github.com/helixir/research-agent-service/internal/domain"
)

// Scores assigned by ValidateSources.
const (
	TrustedScore    = 0.9
	UnverifiedScore = 0.5
)

// trustedMarkers are URL substrings that mark a source as trusted.
var trustedMarkers = []string{
	"wikipedia.org",
	"github.com",
	"medium.com",
	"arxiv.org",
	".edu",
	".gov",
	"research",
	"journal",
	"conference",
}

// IsTrustedURL reports whether the URL contains one of the trusted markers.
func IsTrustedURL(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range trustedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ValidateSources rescores copies of the given sources by URL and returns
// them most trusted first. Ties keep their input order. The input slice is
// not modified.
func ValidateSources(sources []domain.Source) []domain.Source {
	validated := make([]domain.Source, len(sources))
	for i, s := range sources {
		s.ReliabilityScore = UnverifiedScore
		if IsTrustedURL(s.URL) {
			s.ReliabilityScore = TrustedScore
		}
		validated[i] = s
	}

	sort.SliceStable(validated, func(i, j int) bool {
		return validated[i].ReliabilityScore > validated[j].ReliabilityScore
	})
	return validated
}
