// Package searchsources provides the search backends the researcher draws
// on: a general web backend (DuckDuckGo or Brave) and an encyclopedic
// backend (Wikipedia), plus the Gatherer that fronts them.
package searchsources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/helixir/research-agent-service/internal/domain"
)

const (
	// minWebBodyLength is the shortest web snippet kept as a source.
	minWebBodyLength = 50

	// maxContentLength caps the content stored on each source.
	maxContentLength = 500
)

// Searcher is a single search backend.
type Searcher interface {
	// Name returns the backend identifier used in logs and metrics.
	Name() string

	// SourceType returns the type stamped on every result.
	SourceType() domain.SourceType

	// Search returns up to maxResults sources for query. Transport and
	// decoding failures are returned as errors; callers that must not fail
	// go through a Gatherer.
	Search(ctx context.Context, query string, maxResults int) ([]domain.Source, error)
}

// webResult is a raw hit from a general web backend before filtering.
type webResult struct {
	Title string
	Body  string
	Link  string
}

// filterWebResults drops short snippets and off-topic "windows" hits, then
// turns the remainder into web sources with truncated content.
func filterWebResults(query string, results []webResult) []domain.Source {
	queryMentionsWindows := strings.Contains(strings.ToLower(query), "windows")

	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		if len(r.Body) < minWebBodyLength {
			continue
		}
		if !queryMentionsWindows && strings.Contains(strings.ToLower(r.Title), "windows") {
			continue
		}
		sources = append(sources, domain.NewSource(domain.SourceTypeWeb, r.Title, truncate(r.Body, maxContentLength), r.Link))
	}
	return sources
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// statusError reads a short excerpt of a non-2xx body into an ExternalAPIError.
func statusError(backend string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(excerpt))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return domain.NewExternalAPIError(backend, resp.StatusCode, msg, nil)
}

// decodeError wraps a response decoding failure.
func decodeError(backend string, err error) error {
	return domain.NewExternalAPIError(backend, 0, "decode response", fmt.Errorf("decode: %w", err))
}
