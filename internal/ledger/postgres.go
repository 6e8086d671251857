package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger implements the Ledger interface using pgx/v5.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger creates a new PostgresLedger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Ping checks database connectivity.
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

func (l *PostgresLedger) Record(ctx context.Context, entry *Entry) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO submitted_jobs (id, job_id, schema_name, table_count, status, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.JobID, entry.SchemaName, entry.TableCount, entry.Status, entry.SubmittedAt)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

func (l *PostgresLedger) UpdateStatus(ctx context.Context, jobID, status string, opts ...UpdateOption) error {
	params := &updateParams{}
	for _, opt := range opts {
		opt(params)
	}

	now := time.Now().UTC()
	query := `UPDATE submitted_jobs SET status = $2, updated_at = $3`
	args := []any{jobID, status, now}
	argIdx := 4

	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.CompletedAt != nil {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, *params.CompletedAt)
		argIdx++
	}

	query += " WHERE job_id = $1"

	tag, err := l.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, jobID string) (*Entry, error) {
	var e Entry
	err := l.pool.QueryRow(ctx,
		`SELECT id, job_id, schema_name, table_count, status, error_message, submitted_at, completed_at
		 FROM submitted_jobs WHERE job_id = $1`, jobID,
	).Scan(&e.ID, &e.JobID, &e.SchemaName, &e.TableCount, &e.Status,
		&e.ErrorMessage, &e.SubmittedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &e, nil
}

func (l *PostgresLedger) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, job_id, schema_name, table_count, status, error_message, submitted_at, completed_at
		 FROM submitted_jobs ORDER BY submitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.JobID, &e.SchemaName, &e.TableCount, &e.Status,
			&e.ErrorMessage, &e.SubmittedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
