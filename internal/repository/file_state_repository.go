package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/statefile"
)

const stateFileExt = ".json"

var _ StateRepository = (*FileStateRepository)(nil)

// FileStateRepository keeps one statefile document per run under a
// directory, named <id>.json. It is safe for use by one process.
type FileStateRepository struct {
	dir    string
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewFileStateRepository creates dir if needed.
func NewFileStateRepository(dir string, logger zerolog.Logger) (*FileStateRepository, error) {
	if dir == "" {
		return nil, domain.NewValidationError("dir", "state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStateRepository{
		dir:    dir,
		logger: logger.With().Str("component", "state_repository").Str("dir", dir).Logger(),
	}, nil
}

func (r *FileStateRepository) path(id uuid.UUID) string {
	return filepath.Join(r.dir, id.String()+stateFileExt)
}

// Save writes the run's document atomically.
func (r *FileStateRepository) Save(ctx context.Context, state *domain.WorkflowState) error {
	if err := validateState(state); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return statefile.Save(r.path(state.ID), state)
}

// Get loads the run's document.
func (r *FileStateRepository) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load(id)
}

func (r *FileStateRepository) load(id uuid.UUID) (*domain.WorkflowState, error) {
	state, err := statefile.Load(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewNotFoundError("research run", id.String())
		}
		return nil, err
	}
	return state, nil
}

// List scans the directory. Unreadable documents are logged and skipped.
func (r *FileStateRepository) List(ctx context.Context, filter StateFilter) ([]*domain.WorkflowState, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.mu.RUnlock()
		return nil, 0, fmt.Errorf("failed to read state directory: %w", err)
	}

	var matched []*domain.WorkflowState
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			r.mu.RUnlock()
			return nil, 0, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, stateFileExt) {
			continue
		}
		state, err := statefile.Load(filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable state document")
			continue
		}
		if filter.matches(state) {
			matched = append(matched, state)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []*domain.WorkflowState{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	return matched[filter.Offset:end], total, nil
}

// UpdateStatus rewrites the run's document with the new status.
func (r *FileStateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, message string) error {
	if err := validateStatusUpdate(status); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load(id)
	if err != nil {
		return err
	}
	applyStatus(state, status, message)
	return statefile.Save(r.path(id), state)
}

// Delete removes the run's document.
func (r *FileStateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewNotFoundError("research run", id.String())
		}
		return fmt.Errorf("failed to delete state document: %w", err)
	}
	return nil
}
