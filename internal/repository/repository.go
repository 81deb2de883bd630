// Package repository persists research runs.
//
// StateRepository is the storage contract used by the HTTP server and the
// Temporal persistence activities. Three implementations are provided:
//
//   - PgStateRepository stores runs in the research_runs table, with the full
//     state kept as a versioned JSONB document.
//   - FileStateRepository keeps one statefile document per run in a
//     directory, for deployments without PostgreSQL.
//   - CachedStateRepository puts a RedisStateCache in front of either.
//
// Every implementation returns domain.NotFoundError for unknown ids and
// domain.ValidationError for bad input, so callers can match with errors.Is.
package repository

import (
	"github.com/helixir/research-agent-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxFilterLimit] and offset to >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
