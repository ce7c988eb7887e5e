package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/collab-graph-service/internal/domain"
)

var _ CollaborationRepository = (*PgCollaborationRepository)(nil)

// PgCollaborationRepository is a PostgreSQL implementation of CollaborationRepository.
type PgCollaborationRepository struct {
	db DBTX
}

// NewPgCollaborationRepository creates a new PostgreSQL collaboration repository.
func NewPgCollaborationRepository(db DBTX) *PgCollaborationRepository {
	return &PgCollaborationRepository{db: db}
}

// SaveRun writes the run row, then statuses and edges in chunks, all in one
// transaction. When db is already a transaction this opens a savepoint.
// The transaction is rolled back only when a write fails.
func (r *PgCollaborationRepository) SaveRun(ctx context.Context, report *domain.RunReport) error {
	if report == nil {
		return domain.NewValidationError("report", "report is required")
	}
	if report.RunID == uuid.Nil {
		return domain.NewValidationError("run_id", "run id is required")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := writeRun(ctx, tx, report); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func writeRun(ctx context.Context, tx pgx.Tx, report *domain.RunReport) error {
	query := `
		INSERT INTO collaboration_runs (id, started_at, completed_at, from_year, failure_policy, count_policy, edge_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		report.RunID,
		report.StartedAt,
		report.CompletedAt,
		report.FromYear,
		string(report.FailurePolicy),
		string(report.CountPolicy),
		len(report.Edges),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertStatuses(ctx, tx, report.RunID, report.Institutions); err != nil {
		return err
	}
	return insertEdges(ctx, tx, report.RunID, report.Edges)
}

func insertStatuses(ctx context.Context, tx pgx.Tx, runID uuid.UUID, statuses []domain.InstitutionStatus) error {
	const cols = 9
	for start := 0; start < len(statuses); start += insertChunkSize {
		end := min(start+insertChunkSize, len(statuses))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*cols)
		for i := start; i < end; i++ {
			s := statuses[i]
			values = append(values, placeholders(len(args), cols))
			args = append(args, runID, i, s.InstitutionID, s.Name, string(s.Status),
				s.PagesFetched, s.WorksFetched, s.PairsEmitted, s.Error)
		}

		query := `
			INSERT INTO institution_fetch_status
				(run_id, position, institution_id, name, status, pages_fetched, works_fetched, pairs_emitted, error)
			VALUES ` + strings.Join(values, ", ")

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert institution statuses: %w", err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx pgx.Tx, runID uuid.UUID, edges []domain.Edge) error {
	const cols = 5
	for start := 0; start < len(edges); start += insertChunkSize {
		end := min(start+insertChunkSize, len(edges))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*cols)
		for i := start; i < end; i++ {
			e := edges[i]
			values = append(values, placeholders(len(args), cols))
			args = append(args, runID, i, e.InstitutionA, e.InstitutionB, e.CollabCount)
		}

		query := `
			INSERT INTO collaboration_edges (run_id, position, institution_a, institution_b, collab_count)
			VALUES ` + strings.Join(values, ", ")

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert edges: %w", err)
		}
	}
	return nil
}

// placeholders renders "($n+1, ..., $n+cols)".
func placeholders(offset, cols int) string {
	parts := make([]string, cols)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", offset+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// GetRun loads a run with its statuses and all of its edges.
func (r *PgCollaborationRepository) GetRun(ctx context.Context, runID uuid.UUID) (*domain.RunReport, error) {
	query := `
		SELECT id, started_at, completed_at, from_year, failure_policy, count_policy
		FROM collaboration_runs
		WHERE id = $1`

	report, err := scanRun(r.db.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("run", runID.String())
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return r.hydrate(ctx, report)
}

// LatestRun loads the run with the latest completion time.
func (r *PgCollaborationRepository) LatestRun(ctx context.Context) (*domain.RunReport, error) {
	query := `
		SELECT id, started_at, completed_at, from_year, failure_policy, count_policy
		FROM collaboration_runs
		ORDER BY completed_at DESC
		LIMIT 1`

	report, err := scanRun(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("run", "latest")
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return r.hydrate(ctx, report)
}

func (r *PgCollaborationRepository) hydrate(ctx context.Context, report *domain.RunReport) (*domain.RunReport, error) {
	statuses, err := r.listStatuses(ctx, report.RunID)
	if err != nil {
		return nil, err
	}
	report.Institutions = statuses

	edges, err := r.ListEdges(ctx, report.RunID, EdgeFilter{})
	if err != nil {
		return nil, err
	}
	report.Edges = edges
	return report, nil
}

func (r *PgCollaborationRepository) listStatuses(ctx context.Context, runID uuid.UUID) ([]domain.InstitutionStatus, error) {
	query := `
		SELECT institution_id, name, status, pages_fetched, works_fetched, pairs_emitted, error
		FROM institution_fetch_status
		WHERE run_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list institution statuses: %w", err)
	}
	defer rows.Close()

	statuses := []domain.InstitutionStatus{}
	for rows.Next() {
		var s domain.InstitutionStatus
		var status string
		if err := rows.Scan(&s.InstitutionID, &s.Name, &status, &s.PagesFetched, &s.WorksFetched, &s.PairsEmitted, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan institution status: %w", err)
		}
		s.Status = domain.FetchStatus(status)
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating institution statuses: %w", err)
	}
	return statuses, nil
}

// ListEdges returns the run's edges in insertion order, filtered by f.
func (r *PgCollaborationRepository) ListEdges(ctx context.Context, runID uuid.UUID, f EdgeFilter) ([]domain.Edge, error) {
	conditions := []string{"run_id = $1"}
	args := []any{runID}

	if f.MinCount > 0 {
		args = append(args, f.MinCount)
		conditions = append(conditions, fmt.Sprintf("collab_count >= $%d", len(args)))
	}
	if forms := domain.InstitutionIDForms(f.InstitutionID); forms != nil {
		args = append(args, forms)
		conditions = append(conditions, fmt.Sprintf("(institution_a = ANY($%d) OR institution_b = ANY($%d))", len(args), len(args)))
	}

	query := `
		SELECT institution_a, institution_b, collab_count
		FROM collaboration_edges
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	edges := []domain.Edge{}
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.InstitutionA, &e.InstitutionB, &e.CollabCount); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

func scanRun(row pgx.Row) (*domain.RunReport, error) {
	var report domain.RunReport
	var failure, count string
	if err := row.Scan(&report.RunID, &report.StartedAt, &report.CompletedAt, &report.FromYear, &failure, &count); err != nil {
		return nil, err
	}
	report.FailurePolicy = domain.FailurePolicy(failure)
	report.CountPolicy = domain.CountPolicy(count)
	return &report, nil
}
