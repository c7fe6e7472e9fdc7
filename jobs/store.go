// Package jobs owns the lifecycle of scraping jobs: the store that holds
// them and the manager that runs them in the background.
package jobs

import (
	"context"
	"errors"

	"github.com/use-agent/mapscout/models"
)

var (
	// ErrJobExists is returned by Create when the id is already taken.
	ErrJobExists = errors.New("jobs: job already exists")

	// ErrTerminal is returned by Update when the stored job is already
	// completed or failed.
	ErrTerminal = errors.New("jobs: job is already in a terminal status")
)

// Store holds jobs by id. Implementations must be safe for concurrent use
// and must reject any update to a job whose stored status is terminal.
type Store interface {
	// Create stores a new job. It returns ErrJobExists for a duplicate id.
	Create(ctx context.Context, job *models.Job) error

	// Get returns a copy of the job, or models.ErrJobNotFound.
	Get(ctx context.Context, id string) (*models.Job, error)

	// Update replaces the stored job with job. It returns
	// models.ErrJobNotFound for an unknown id and ErrTerminal when the
	// stored job can no longer change.
	Update(ctx context.Context, job *models.Job) error

	// Count returns the number of stored jobs.
	Count(ctx context.Context) (int, error)
}
