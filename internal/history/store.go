// Package history keeps past page results so a takeoff can be reviewed,
// renamed or discarded later.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/ironsheep/symbol-takeoff/internal/takeoff"
)

// ErrNotFound is returned when no entry exists for a job ID.
var ErrNotFound = errors.New("history entry not found")

// Entry is one stored page result.
type Entry struct {
	JobID     string              `json:"job_id"`
	Project   string              `json:"project"`
	Source    string              `json:"source"`
	CreatedAt time.Time           `json:"created_at"`
	Result    *takeoff.PageResult `json:"result"`
}

// Store persists entries.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context, jobID string) (*Entry, error)
	// List returns up to limit entries, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)
	Delete(ctx context.Context, jobID string) error
	Rename(ctx context.Context, jobID, project string) error
	Close() error
}
