package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/domain"
)

var _ StateRepository = (*CachedStateRepository)(nil)

// CachedStateRepository reads through a StateCache and writes to both the
// store and the cache. Cache failures are logged and never fail a call.
type CachedStateRepository struct {
	store  StateRepository
	cache  StateCache
	logger zerolog.Logger
}

// NewCachedStateRepository layers cache over store.
func NewCachedStateRepository(store StateRepository, cache StateCache, logger zerolog.Logger) *CachedStateRepository {
	return &CachedStateRepository{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "state_cache").Logger(),
	}
}

// Save writes to the store, then refreshes the cache.
func (r *CachedStateRepository) Save(ctx context.Context, state *domain.WorkflowState) error {
	if err := r.store.Save(ctx, state); err != nil {
		return err
	}
	if err := r.cache.Set(ctx, state); err != nil {
		r.logger.Warn().Err(err).Str("run_id", state.ID.String()).Msg("state cache write failed")
	}
	return nil
}

// Get serves from the cache when possible.
func (r *CachedStateRepository) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	state, err := r.cache.Get(ctx, id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn().Err(err).Str("run_id", id.String()).Msg("state cache read failed")
	}

	state, err = r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, state); err != nil {
		r.logger.Warn().Err(err).Str("run_id", id.String()).Msg("state cache fill failed")
	}
	return state, nil
}

// List always reads the store.
func (r *CachedStateRepository) List(ctx context.Context, filter StateFilter) ([]*domain.WorkflowState, int64, error) {
	return r.store.List(ctx, filter)
}

// UpdateStatus updates the store and evicts the cached copy.
func (r *CachedStateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, message string) error {
	if err := r.store.UpdateStatus(ctx, id, status, message); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

// Delete removes from the store and evicts the cached copy.
func (r *CachedStateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

func (r *CachedStateRepository) evict(ctx context.Context, id uuid.UUID) {
	if err := r.cache.Delete(ctx, id); err != nil {
		r.logger.Warn().Err(err).Str("run_id", id.String()).Msg("state cache eviction failed")
	}
}
