package searchsources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/research-agent-service/internal/domain"
)

const (
	// DuckDuckGoBaseURL is the HTML-only search endpoint.
	DuckDuckGoBaseURL = "https://html.duckduckgo.com/html/"

	duckDuckGoName = "duckduckgo"
)

// DuckDuckGoConfig configures the DuckDuckGo backend.
type DuckDuckGoConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	UserAgent  string
}

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	httpClient *HTTPClient
	baseURL    string
}

// NewDuckDuckGo creates the backend. A nil httpClient builds one from cfg.
func NewDuckDuckGo(cfg DuckDuckGoConfig, httpClient *HTTPClient) *DuckDuckGo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DuckDuckGoBaseURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(HTTPClientConfig{
			Backend:    duckDuckGoName,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			UserAgent:  cfg.UserAgent,
		})
	}
	return &DuckDuckGo{httpClient: httpClient, baseURL: cfg.BaseURL}
}

// Name returns "duckduckgo".
func (d *DuckDuckGo) Name() string { return duckDuckGoName }

// SourceType returns domain.SourceTypeWeb.
func (d *DuckDuckGo) SourceType() domain.SourceType { return domain.SourceTypeWeb }

// Search scrapes one results page and keeps up to maxResults hits that pass
// the web filters.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]domain.Source, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	reqURL, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(duckDuckGoName, resp)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, decodeError(duckDuckGoName, err)
	}

	return filterWebResults(query, parseDuckDuckGoResults(doc, maxResults)), nil
}

// parseDuckDuckGoResults extracts up to limit organic hits, skipping ads.
func parseDuckDuckGoResults(doc *goquery.Document, limit int) []webResult {
	results := make([]webResult, 0, limit)
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}

		anchor := s.Find("a.result__a").First()
		title := strings.TrimSpace(anchor.Text())
		href, _ := anchor.Attr("href")
		if title == "" || href == "" {
			return true
		}

		results = append(results, webResult{
			Title: title,
			Body:  strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			Link:  resolveDuckDuckGoLink(href),
		})
		return len(results) < limit
	})
	return results
}

// resolveDuckDuckGoLink unwraps the /l/?uddg= redirect used on result links.
func resolveDuckDuckGoLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
