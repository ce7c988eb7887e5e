// Package repository persists collaboration runs in PostgreSQL.
//
// Repositories accept a DBTX so the same code runs against the pool or inside
// a transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    return repository.NewPgCollaborationRepository(tx).SaveRun(ctx, report)
//	})
//
// Not-found lookups return an error matching domain.ErrNotFound.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/collab-graph-service/internal/database"
	"github.com/helixir/collab-graph-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// EdgeFilter narrows the edges returned for a run.
type EdgeFilter struct {
	// MinCount drops edges with fewer collaborations.
	MinCount int
	// InstitutionID keeps only edges touching this institution when set.
	// Short and URL forms match the same stored edges.
	InstitutionID string
}

// CollaborationRepository stores and reads back pipeline runs.
type CollaborationRepository interface {
	// SaveRun writes the run, its institution statuses and its edges atomically.
	SaveRun(ctx context.Context, report *domain.RunReport) error

	// GetRun loads a full run report.
	GetRun(ctx context.Context, runID uuid.UUID) (*domain.RunReport, error)

	// LatestRun loads the most recently completed run.
	LatestRun(ctx context.Context) (*domain.RunReport, error)

	// ListEdges returns a run's edges in their original order.
	ListEdges(ctx context.Context, runID uuid.UUID, filter EdgeFilter) ([]domain.Edge, error)
}

// Bulk insert batch size, kept well under the Postgres bind parameter limit.
const insertChunkSize = 1000
