// Package statefile reads and writes research runs as versioned JSON
// documents:
//
//	{"schema_version": 1, "state": {...}}
//
// Documents written before versioning (a flat object keyed by
// research_query) are read as version 0 and migrated on load.
package statefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/helixir/research-agent-service/internal/domain"
)

// CurrentVersion is the schema version written by Marshal.
const CurrentVersion = 1

// ErrUnsupportedVersion is returned for documents newer than CurrentVersion.
var ErrUnsupportedVersion = errors.New("unsupported state schema version")

// Document is the on-disk envelope.
type Document struct {
	SchemaVersion int                   `json:"schema_version"`
	State         *domain.WorkflowState `json:"state"`
}

// Marshal encodes state as an indented current-version document.
func Marshal(state *domain.WorkflowState) ([]byte, error) {
	if state == nil {
		return nil, domain.NewValidationError("state", "must not be nil")
	}
	data, err := json.MarshalIndent(Document{SchemaVersion: CurrentVersion, State: state}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state document: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a document of any supported version.
func Unmarshal(data []byte) (*domain.WorkflowState, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode state document: %w", err)
	}

	version := 0
	if raw, ok := probe["schema_version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, fmt.Errorf("decode schema_version: %w", err)
		}
	}

	var (
		state *domain.WorkflowState
		err   error
	)
	switch {
	case version > CurrentVersion:
		return nil, fmt.Errorf("%w: %d (max %d)", ErrUnsupportedVersion, version, CurrentVersion)
	case version == CurrentVersion:
		state, err = decodeV1(data)
	case version < 0:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	default:
		if _, ok := probe["research_query"]; !ok {
			return nil, domain.NewValidationError("document", "neither schema_version nor research_query present")
		}
		state, err = migrateV0(data)
	}
	if err != nil {
		return nil, err
	}

	normalize(state)
	if err := validate(state); err != nil {
		return nil, err
	}
	return state, nil
}

func decodeV1(data []byte) (*domain.WorkflowState, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode state document: %w", err)
	}
	if doc.State == nil {
		return nil, domain.NewValidationError("state", "missing")
	}
	return doc.State, nil
}

// Save writes state to path atomically: the document goes to a temporary
// file in the same directory, which is then renamed over path.
func Save(path string, state *domain.WorkflowState) error {
	data, err := Marshal(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename has succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Load reads and decodes the document at path.
func Load(path string) (*domain.WorkflowState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	state, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return state, nil
}

// normalize fills defaults so decoded states look like freshly built ones.
func normalize(s *domain.WorkflowState) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Sources == nil {
		s.Sources = []domain.Source{}
	}
	if s.Findings == nil {
		s.Findings = []domain.Finding{}
	}
	for i := range s.Findings {
		if s.Findings[i].Sources == nil {
			s.Findings[i].Sources = []domain.Source{}
		}
	}
	if s.ContradictionsFound == nil {
		s.ContradictionsFound = []string{}
	}
	if s.History == nil {
		s.History = []domain.HistoryEntry{}
	}
	if s.VerificationStatus == "" {
		s.VerificationStatus = domain.VerificationNotStarted
	}
	if s.ExecutionStatus == "" {
		s.ExecutionStatus = domain.ExecutionIdle
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = domain.Now()
	}
	if s.UpdatedAt.Before(s.CreatedAt) {
		s.UpdatedAt = s.CreatedAt
	}
}

func validate(s *domain.WorkflowState) error {
	if !s.ExecutionStatus.IsValid() {
		return domain.NewValidationError("execution_status", fmt.Sprintf("unknown value %q", s.ExecutionStatus))
	}
	if !s.VerificationStatus.IsValid() {
		return domain.NewValidationError("verification_status", fmt.Sprintf("unknown value %q", s.VerificationStatus))
	}
	for i, src := range s.Sources {
		if !src.SourceType.IsValid() {
			return domain.NewValidationError(fmt.Sprintf("sources[%d].source_type", i), fmt.Sprintf("unknown value %q", src.SourceType))
		}
	}
	return nil
}
