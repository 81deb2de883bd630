package searchsources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/helixir/research-agent-service/internal/domain"
)

const (
	// DefaultWikipediaLanguage is the language edition used when none is set.
	DefaultWikipediaLanguage = "en"

	wikipediaName = "wikipedia"
)

// WikipediaConfig configures the Wikipedia backend.
type WikipediaConfig struct {
	// Language selects the edition, e.g. "en" or "de".
	Language string

	// BaseURL overrides the api.php endpoint. Page URLs are still built
	// from Language.
	BaseURL string

	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	UserAgent  string
}

// Wikipedia searches a MediaWiki edition and returns article intros.
type Wikipedia struct {
	httpClient *HTTPClient
	apiURL     string
	language   string
	sanitizer  *bluemonday.Policy
}

// NewWikipedia creates the backend. A nil httpClient builds one from cfg.
func NewWikipedia(cfg WikipediaConfig, httpClient *HTTPClient) *Wikipedia {
	if cfg.Language == "" {
		cfg.Language = DefaultWikipediaLanguage
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", cfg.Language)
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(HTTPClientConfig{
			Backend:    wikipediaName,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstSize:  int(cfg.RateLimit),
			MaxRetries: cfg.MaxRetries,
			UserAgent:  cfg.UserAgent,
		})
	}
	return &Wikipedia{
		httpClient: httpClient,
		apiURL:     cfg.BaseURL,
		language:   cfg.Language,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// Name returns "wikipedia".
func (w *Wikipedia) Name() string { return wikipediaName }

// SourceType returns domain.SourceTypeWikipedia.
func (w *Wikipedia) SourceType() domain.SourceType { return domain.SourceTypeWikipedia }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPage struct {
	Title     string            `json:"title"`
	Extract   string            `json:"extract"`
	Missing   bool              `json:"missing"`
	PageProps map[string]string `json:"pageprops"`
}

type wikiPagesResponse struct {
	Query struct {
		Normalized []wikiRename `json:"normalized"`
		Redirects  []wikiRename `json:"redirects"`
		Pages      []wikiPage   `json:"pages"`
	} `json:"query"`
}

type wikiRename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Search finds up to maxResults titles, then fetches their intros in one
// request. Disambiguation and missing pages are skipped. Result order
// follows the search ranking.
func (w *Wikipedia) Search(ctx context.Context, query string, maxResults int) ([]domain.Source, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	hits, err := w.searchTitles(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	titles := make([]string, len(hits))
	for i, h := range hits {
		titles[i] = h.Title
	}
	pages, err := w.fetchPages(ctx, titles)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		page, ok := pages[h.Title]
		if !ok || page.Missing {
			continue
		}
		if _, disambiguation := page.PageProps["disambiguation"]; disambiguation {
			continue
		}

		summary := strings.TrimSpace(page.Extract)
		if summary == "" {
			summary = stripHTML(w.sanitizer, h.Snippet)
		}
		sources = append(sources, domain.NewSource(
			domain.SourceTypeWikipedia,
			page.Title,
			truncate(summary, maxContentLength),
			w.pageURL(page.Title),
		))
	}
	return sources, nil
}

type wikiHit struct {
	Title   string
	Snippet string
}

func (w *Wikipedia) searchTitles(ctx context.Context, query string, limit int) ([]wikiHit, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "snippet")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var body wikiSearchResponse
	if err := w.get(ctx, params, &body); err != nil {
		return nil, err
	}

	hits := make([]wikiHit, 0, len(body.Query.Search))
	for _, s := range body.Query.Search {
		hits = append(hits, wikiHit{Title: s.Title, Snippet: s.Snippet})
	}
	return hits, nil
}

// fetchPages returns the pages keyed by the title that was requested, so
// normalized and redirected titles still match the search hits.
func (w *Wikipedia) fetchPages(ctx context.Context, titles []string) (map[string]wikiPage, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|pageprops")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("ppprop", "disambiguation")
	params.Set("redirects", "1")
	params.Set("titles", strings.Join(titles, "|"))
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var body wikiPagesResponse
	if err := w.get(ctx, params, &body); err != nil {
		return nil, err
	}

	byTitle := make(map[string]wikiPage, len(body.Query.Pages))
	for _, p := range body.Query.Pages {
		byTitle[p.Title] = p
	}

	pages := make(map[string]wikiPage, len(titles))
	for _, title := range titles {
		resolved := title
		for _, r := range body.Query.Normalized {
			if r.From == resolved {
				resolved = r.To
			}
		}
		for _, r := range body.Query.Redirects {
			if r.From == resolved {
				resolved = r.To
			}
		}
		if p, ok := byTitle[resolved]; ok {
			pages[title] = p
		}
	}
	return pages, nil
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(wikipediaName, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(wikipediaName, err)
	}
	return nil
}

// pageURL builds the canonical article URL for title.
func (w *Wikipedia) pageURL(title string) string {
	slug := strings.ReplaceAll(title, " ", "_")
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", w.language, url.PathEscape(slug))
}

// stripHTML removes all markup and decodes entities.
func stripHTML(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}
