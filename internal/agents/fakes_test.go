package agents

import (
	"context"
	"strings"
	"sync"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/llm"
)

// fakeModel answers by prompt kind: relevance prompts get relevance,
// everything else gets a reply derived from the operation.
type fakeModel struct {
	mu         sync.Mutex
	relevance  func(prompt string) string
	err        error
	failOn     string
	panicOn    string
	prompts    []string
	operations []string
}

func (m *fakeModel) Invoke(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := llm.OperationFromContext(ctx)
	m.prompts = append(m.prompts, prompt)
	m.operations = append(m.operations, op)

	if m.panicOn != "" && op == m.panicOn {
		panic("model exploded")
	}
	if m.err != nil && (m.failOn == "" || op == m.failOn) {
		return "", m.err
	}

	switch op {
	case llm.OperationRelevance:
		if m.relevance != nil {
			return m.relevance(prompt), nil
		}
		return "YES", nil
	case llm.OperationSummarize:
		return "- key point about " + titleFromPrompt(prompt), nil
	case llm.OperationCritique:
		return "Overall reliable. Confidence: 80%", nil
	case llm.OperationReport:
		return "# Report\n\n## Executive Summary\nAll good.", nil
	}
	return "", nil
}

func (m *fakeModel) Provider() string { return "fake" }
func (m *fakeModel) Name() string     { return "fake-1" }

func (m *fakeModel) callsFor(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.operations {
		if o == op {
			n++
		}
	}
	return n
}

func (m *fakeModel) lastPrompt(op string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.operations) - 1; i >= 0; i-- {
		if m.operations[i] == op {
			return m.prompts[i]
		}
	}
	return ""
}

// titleFromPrompt pulls the content line out of a summary prompt.
func titleFromPrompt(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "Content: ") {
			return strings.TrimPrefix(line, "Content: ")
		}
	}
	return "unknown"
}

// fakeGatherer returns canned web and wiki results.
type fakeGatherer struct {
	web     []domain.Source
	wiki    []domain.Source
	gotWeb  int
	gotWiki int
}

func (g *fakeGatherer) SearchWeb(_ context.Context, _ string, maxResults int) []domain.Source {
	g.gotWeb = maxResults
	return g.web
}

func (g *fakeGatherer) SearchWikipedia(_ context.Context, _ string, maxResults int) []domain.Source {
	g.gotWiki = maxResults
	return g.wiki
}

func webSource(title string) domain.Source {
	return domain.NewSource(domain.SourceTypeWeb, title, "Web content about "+title+" with enough detail to pass filters.", "https://example.com/"+title)
}

func wikiSource(title string) domain.Source {
	return domain.NewSource(domain.SourceTypeWikipedia, title, "Encyclopedia entry for "+title+".", "https://en.wikipedia.org/wiki/"+title)
}

func webSources(n int) []domain.Source {
	out := make([]domain.Source, n)
	for i := range out {
		out[i] = webSource(string(rune('a' + i)))
	}
	return out
}
