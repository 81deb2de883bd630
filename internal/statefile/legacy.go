package statefile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/research-agent-service/internal/domain"
)

// Version 0 documents: the flat layout written before schema versioning.

type legacySource struct {
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	URL              string   `json:"url"`
	ReliabilityScore *float64 `json:"reliability_score"`
	SourceType       string   `json:"source_type"`
}

type legacyFinding struct {
	Topic    string         `json:"topic"`
	Finding  string         `json:"finding"`
	Sources  []legacySource `json:"sources"`
	Verified bool           `json:"verified"`
}

type legacyHistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Agent     string `json:"agent"`
	Action    string `json:"action"`
	Result    string `json:"result"`
}

type legacyMetadata struct {
	Query                 string `json:"query"`
	SourcesUsed           int    `json:"sources_used"`
	FindingsExtracted     int    `json:"findings_extracted"`
	VerificationCompleted bool   `json:"verification_completed"`
}

type legacyState struct {
	ResearchQuery       string               `json:"research_query"`
	RawResearch         []legacySource       `json:"raw_research"`
	AnalyzedFindings    []legacyFinding      `json:"analyzed_findings"`
	Criticism           string               `json:"criticism"`
	ContradictionsFound []string             `json:"contradictions_found"`
	VerificationStatus  string               `json:"verification_status"`
	FinalReport         string               `json:"final_report"`
	ReportMetadata      json.RawMessage      `json:"report_metadata"`
	ConversationHistory []legacyHistoryEntry `json:"conversation_history"`
	CurrentAgent        string               `json:"current_agent"`
	ExecutionStatus     string               `json:"execution_status"`
	ErrorMessage        *string              `json:"error_message"`
	CreatedAt           *string              `json:"created_at"`
	UpdatedAt           *string              `json:"updated_at"`
}

// legacyDefaultReliability is the score version 0 assumed when none was set.
const legacyDefaultReliability = 0.5

// legacyTimeLayouts are tried in order. Zone-less values are read as UTC.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func migrateV0(data []byte) (*domain.WorkflowState, error) {
	var old legacyState
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("decode legacy state: %w", err)
	}

	s := &domain.WorkflowState{
		Query:               old.ResearchQuery,
		Sources:             migrateSources(old.RawResearch),
		Criticism:           old.Criticism,
		ContradictionsFound: old.ContradictionsFound,
		VerificationStatus:  domain.VerificationStatus(old.VerificationStatus),
		Report:              old.FinalReport,
		CurrentAgent:        old.CurrentAgent,
		ExecutionStatus:     domain.ExecutionStatus(old.ExecutionStatus),
	}
	if old.ErrorMessage != nil {
		s.ErrorMessage = *old.ErrorMessage
	}

	for _, f := range old.AnalyzedFindings {
		s.Findings = append(s.Findings, domain.Finding{
			Topic:       f.Topic,
			FindingText: f.Finding,
			Sources:     migrateSources(f.Sources),
			Verified:    f.Verified,
		})
	}

	for i, h := range old.ConversationHistory {
		ts, err := parseLegacyTime(h.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("conversation_history[%d].timestamp: %w", i, err)
		}
		s.History = append(s.History, domain.HistoryEntry{
			Timestamp: ts,
			Agent:     h.Agent,
			Action:    h.Action,
			Result:    h.Result,
		})
	}

	md, err := migrateMetadata(old.ReportMetadata)
	if err != nil {
		return nil, err
	}
	s.ReportMetadata = md

	if old.CreatedAt != nil {
		if s.CreatedAt, err = parseLegacyTime(*old.CreatedAt); err != nil {
			return nil, fmt.Errorf("created_at: %w", err)
		}
	}
	if old.UpdatedAt != nil {
		if s.UpdatedAt, err = parseLegacyTime(*old.UpdatedAt); err != nil {
			return nil, fmt.Errorf("updated_at: %w", err)
		}
	}
	return s, nil
}

// migrateSources maps version 0 sources onto the current type. Source types
// that are now unknown ("paper", "news", ...) become web sources.
func migrateSources(in []legacySource) []domain.Source {
	out := make([]domain.Source, 0, len(in))
	for _, src := range in {
		score := legacyDefaultReliability
		if src.ReliabilityScore != nil {
			score = *src.ReliabilityScore
		}
		sourceType := domain.SourceType(strings.ToLower(strings.TrimSpace(src.SourceType)))
		if !sourceType.IsValid() {
			sourceType = domain.SourceTypeWeb
		}
		out = append(out, domain.Source{
			Title:            src.Title,
			Content:          src.Content,
			URL:              src.URL,
			ReliabilityScore: score,
			SourceType:       sourceType,
		})
	}
	return out
}

// migrateMetadata maps the free-form metadata map onto ReportMetadata. An
// absent, null or empty map means no report was written.
func migrateMetadata(raw json.RawMessage) (*domain.ReportMetadata, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, nil
	}
	var md legacyMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("report_metadata: %w", err)
	}
	return &domain.ReportMetadata{
		Query:                 md.Query,
		SourceCount:           md.SourcesUsed,
		FindingCount:          md.FindingsExtracted,
		VerificationCompleted: md.VerificationCompleted,
	}, nil
}

func parseLegacyTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
