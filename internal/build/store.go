// Package build tracks asynchronous code-generation jobs through their
// lifecycle and persists them in a keyed store.
//
// Three store backends share one interface: an in-memory map (default),
// SQLite, and PostgreSQL. Updates go through a per-key atomic
// read-modify-write so concurrent writers cannot lose each other's fields.
package build

import (
	"context"
	"errors"
	"time"

	"github.com/nichedotsol/agentex/internal/model"
)

// ErrNotFound is returned when a build id does not exist. An update against
// a swept id also returns it; callers on background paths drop it silently.
var ErrNotFound = errors.New("build: not found")

// ErrExists is returned when creating a build whose id is already taken.
var ErrExists = errors.New("build: id already exists")

// DefaultRetention is how long an idle build survives before the sweeper
// removes it, measured from last update.
const DefaultRetention = 24 * time.Hour

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = time.Hour

// Store is the keyed system of record for builds. Implementations must make
// Update atomic per key: the callback runs against the current record and
// the merged result is written back in one step.
type Store interface {
	// Create inserts a new record. Returns ErrExists on id collision.
	Create(ctx context.Context, b model.Build) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Build, error)

	// Update applies fn to the current record under a per-key lock or
	// transaction, refreshes UpdatedAt, and persists the result. Returns
	// the updated record, or ErrNotFound when the id is absent.
	Update(ctx context.Context, id string, fn func(*model.Build)) (model.Build, error)

	// Sweep deletes every record whose UpdatedAt is before cutoff and
	// returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	// Name identifies the backend for health reporting.
	Name() string

	Close() error
}

// NewBuild returns a fresh queued record for the given config snapshot.
func NewBuild(id, agentID string, config *model.AgentSpec) model.Build {
	now := time.Now().UTC()
	return model.Build{
		ID:        id,
		Status:    model.BuildQueued,
		Progress:  0,
		AgentID:   agentID,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
