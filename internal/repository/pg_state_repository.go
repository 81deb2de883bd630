package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/database"
	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/statefile"
)

var _ StateRepository = (*PgStateRepository)(nil)

// PgStateRepository stores runs in the research_runs table. Status columns
// are denormalized from the JSONB document for filtering.
type PgStateRepository struct {
	db     DBTX
	logger zerolog.Logger
}

// NewPgStateRepository creates a PostgreSQL state repository.
func NewPgStateRepository(db DBTX, logger zerolog.Logger) *PgStateRepository {
	return &PgStateRepository{
		db:     db,
		logger: logger.With().Str("component", "state_repository").Logger(),
	}
}

const upsertRunQuery = `
	INSERT INTO research_runs (
		id, query, execution_status, verification_status,
		error_message, document, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		query = EXCLUDED.query,
		execution_status = EXCLUDED.execution_status,
		verification_status = EXCLUDED.verification_status,
		error_message = EXCLUDED.error_message,
		document = EXCLUDED.document,
		updated_at = EXCLUDED.updated_at`

// Save upserts the run.
func (r *PgStateRepository) Save(ctx context.Context, state *domain.WorkflowState) error {
	if err := validateState(state); err != nil {
		return err
	}
	return r.write(ctx, state)
}

func (r *PgStateRepository) write(ctx context.Context, state *domain.WorkflowState) error {
	doc, err := statefile.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = r.db.Exec(ctx, upsertRunQuery,
		state.ID,
		state.Query,
		string(state.ExecutionStatus),
		string(state.VerificationStatus),
		nullString(state.ErrorMessage),
		doc,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save research run: %w", err)
	}
	return nil
}

// Get loads the run's document.
func (r *PgStateRepository) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	row := r.db.QueryRow(ctx, `SELECT document FROM research_runs WHERE id = $1`, id)
	state, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("research run", id.String())
		}
		return nil, fmt.Errorf("failed to get research run: %w", err)
	}
	return state, nil
}

// List returns a page of runs, newest first.
func (r *PgStateRepository) List(ctx context.Context, filter StateFilter) ([]*domain.WorkflowState, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var (
		conditions []string
		args       []any
	)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			args = append(args, string(s))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("execution_status IN (%s)", strings.Join(placeholders, ", ")))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM research_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count research runs: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	listQuery := fmt.Sprintf(
		"SELECT document FROM research_runs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list research runs: %w", err)
	}
	defer rows.Close()

	states := make([]*domain.WorkflowState, 0, filter.Limit)
	for rows.Next() {
		state, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan research run: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate research runs: %w", err)
	}
	return states, total, nil
}

// UpdateStatus locks the row, applies the status to the document and writes
// it back.
func (r *PgStateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, message string) error {
	if err := validateStatusUpdate(status); err != nil {
		return err
	}

	// The row lock needs a transaction. Inside a pgx.Tx this is a savepoint.
	if beginner, ok := r.db.(database.TxBeginner); ok {
		return database.RunInTx(ctx, beginner, r.logger, func(tx pgx.Tx) error {
			txRepo := &PgStateRepository{db: tx, logger: r.logger}
			return txRepo.updateStatusInTx(ctx, id, status, message)
		})
	}
	return r.updateStatusInTx(ctx, id, status, message)
}

func (r *PgStateRepository) updateStatusInTx(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, message string) error {
	row := r.db.QueryRow(ctx, `SELECT document FROM research_runs WHERE id = $1 FOR UPDATE`, id)
	state, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("research run", id.String())
		}
		return fmt.Errorf("failed to lock research run: %w", err)
	}

	applyStatus(state, status, message)
	return r.write(ctx, state)
}

// Delete removes the run.
func (r *PgStateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM research_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete research run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("research run", id.String())
	}
	return nil
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.WorkflowState, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	state, err := statefile.Unmarshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored document: %w", err)
	}
	return state, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
