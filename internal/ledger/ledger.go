// Package ledger keeps a local record of every job submitted through this
// toolkit. The server owns job state; the ledger is an audit trail of what
// we asked it to do and how it ended.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("job not recorded")

// Entry is one submitted job as this client saw it.
type Entry struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	JobID        string     `db:"job_id"        json:"job_id"`
	SchemaName   string     `db:"schema_name"   json:"schema_name"`
	TableCount   int        `db:"table_count"   json:"table_count"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at"  json:"submitted_at"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
}

// Ledger is the data access interface for submitted-job records.
type Ledger interface {
	Ping(ctx context.Context) error
	Record(ctx context.Context, entry *Entry) error
	UpdateStatus(ctx context.Context, jobID, status string, opts ...UpdateOption) error
	Get(ctx context.Context, jobID string) (*Entry, error)
	List(ctx context.Context, limit int) ([]*Entry, error)
}

type updateParams struct {
	ErrorMessage *string
	CompletedAt  *time.Time
}

type UpdateOption func(*updateParams)

func WithErrorMessage(msg string) UpdateOption {
	return func(p *updateParams) {
		p.ErrorMessage = &msg
	}
}

func WithCompletedAt(t time.Time) UpdateOption {
	return func(p *updateParams) {
		p.CompletedAt = &t
	}
}
