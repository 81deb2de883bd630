package searchsources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/helixir/research-agent-service/internal/domain"
)

const (
	// BraveBaseURL is the Brave Search API root.
	BraveBaseURL = "https://api.search.brave.com/res/v1"

	braveName         = "brave"
	braveAPIKeyHeader = "X-Subscription-Token"

	// braveMaxCount is the largest count the API accepts.
	braveMaxCount = 20
)

// BraveConfig configures the Brave backend.
type BraveConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	UserAgent  string
}

// Brave queries the Brave Search web endpoint.
type Brave struct {
	httpClient *HTTPClient
	baseURL    string
	sanitizer  *bluemonday.Policy
}

// NewBrave creates the backend. A nil httpClient builds one from cfg.
func NewBrave(cfg BraveConfig, httpClient *HTTPClient) *Brave {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BraveBaseURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(HTTPClientConfig{
			Backend:      braveName,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
			UserAgent:    cfg.UserAgent,
			APIKey:       cfg.APIKey,
			APIKeyHeader: braveAPIKeyHeader,
		})
	}
	return &Brave{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// Name returns "brave".
func (b *Brave) Name() string { return braveName }

// SourceType returns domain.SourceTypeWeb.
func (b *Brave) SourceType() domain.SourceType { return domain.SourceTypeWeb }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search requests up to maxResults hits and applies the web filters.
func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]domain.Source, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	count := maxResults
	if count > braveMaxCount {
		count = braveMaxCount
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/web/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(braveName, resp)
	}

	var body braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, decodeError(braveName, err)
	}

	results := make([]webResult, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		if len(results) == maxResults {
			break
		}
		results = append(results, webResult{
			Title: stripHTML(b.sanitizer, r.Title),
			Body:  stripHTML(b.sanitizer, r.Description),
			Link:  r.URL,
		})
	}
	return filterWebResults(query, results), nil
}
