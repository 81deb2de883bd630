package agents

import (
	"fmt"
	"strings"

	"github.com/helixir/research-agent-service/internal/domain"
)

// Prompt budgets, in characters.
const (
	relevancePreviewLen = 300
	summaryContentLen   = 500
	critiqueFindingLen  = 200
	critiqueMaxFindings = 5
	reportMaxFindings   = 10
)

const relevancePromptTemplate = `Is this source relevant to the query? Answer ONLY 'YES' or 'NO'.

Query: %s
Source Title: %s
Content Preview: %s

Relevant (YES/NO)?`

const summaryPromptTemplate = `Analyze this research content and extract 2-3 key findings.

Topic: %s
Content: %s

Extract key findings as a concise bullet-point summary:`

const critiquePromptTemplate = `As a skeptical research critic, evaluate these findings for accuracy and consistency.
Topic: %s

Findings:
%s

Provide:
1. Overall reliability assessment
2. Any contradictions or conflicts
3. Quality of evidence
4. Confidence level (0-100%%)`

const reportPromptTemplate = `Write a professional research report based on these findings.

Topic: %s

Findings:
%s

Critic's Assessment:
%s

Write a comprehensive report with:
1. Executive Summary
2. Key Findings
3. Analysis
4. Conclusion
5. Recommendation for Further Research

Make it concise and professional.`

func relevancePrompt(query string, src domain.Source) string {
	return fmt.Sprintf(relevancePromptTemplate, query, src.Title, prefix(src.Content, relevancePreviewLen))
}

func summaryPrompt(topic string, src domain.Source) string {
	return fmt.Sprintf(summaryPromptTemplate, topic, prefix(src.Content, summaryContentLen))
}

func critiquePrompt(topic string, findings []domain.Finding) string {
	if len(findings) > critiqueMaxFindings {
		findings = findings[:critiqueMaxFindings]
	}
	lines := make([]string, len(findings))
	for i, f := range findings {
		lines[i] = "- " + prefix(f.FindingText, critiqueFindingLen)
	}
	return fmt.Sprintf(critiquePromptTemplate, topic, strings.Join(lines, "\n"))
}

// findingsDigest renders up to ten findings for the report prompt.
func findingsDigest(findings []domain.Finding) string {
	if len(findings) > reportMaxFindings {
		findings = findings[:reportMaxFindings]
	}
	blocks := make([]string, len(findings))
	for i, f := range findings {
		blocks[i] = fmt.Sprintf("**Finding %d:**\n%s\n*Source: %s*", i+1, f.FindingText, f.FirstSourceTitle())
	}
	return strings.Join(blocks, "\n\n")
}

func reportPrompt(topic, digest, criticism string) string {
	return fmt.Sprintf(reportPromptTemplate, topic, digest, criticism)
}

// isIrrelevant reports whether a relevance answer rejects the source. Any
// answer containing "NO" counts as a rejection.
func isIrrelevant(answer string) bool {
	return strings.Contains(strings.ToUpper(strings.TrimSpace(answer)), "NO")
}

// prefix returns the first n characters of s.
func prefix(s string, n int) string {
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
