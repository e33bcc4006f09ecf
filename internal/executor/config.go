package executor

import (
	"fmt"
	"time"

	"github.com/aryankumar/lomsync/internal/util"
)

// RejectionPolicy decides what Submit does when every worker is busy and the
// queue is full
type RejectionPolicy string

const (
	// RejectCallerRuns runs the task synchronously on the submitting goroutine
	RejectCallerRuns RejectionPolicy = "caller-runs"

	// RejectAbort refuses the task with util.ErrQueueFull
	RejectAbort RejectionPolicy = "abort"

	// RejectBlock waits for queue space until the pool shuts down
	RejectBlock RejectionPolicy = "block"
)

// Config sizes the pool. It is read-only once the pool is constructed.
type Config struct {
	// MinWorkers are started with the pool and never retire
	MinWorkers int `yaml:"minWorkers" json:"minWorkers"`

	// MaxWorkers bounds the number of concurrently running workers
	MaxWorkers int `yaml:"maxWorkers" json:"maxWorkers"`

	// IdleTimeout is how long a worker above MinWorkers waits for work before retiring.
	// Zero keeps extra workers alive until shutdown.
	IdleTimeout time.Duration `yaml:"idleTimeout" json:"idleTimeout"`

	// QueueCapacity is the number of tasks held while all workers are busy.
	// Zero hands tasks directly to idle workers.
	QueueCapacity int `yaml:"queueCapacity" json:"queueCapacity"`

	// Rejection applies when the queue is full and MaxWorkers are running
	Rejection RejectionPolicy `yaml:"rejection" json:"rejection"`
}

// DefaultConfig returns the sizing used when nothing is configured
func DefaultConfig() Config {
	return Config{
		MinWorkers:    4,
		MaxWorkers:    10,
		IdleTimeout:   60 * time.Second,
		QueueCapacity: 100,
		Rejection:     RejectCallerRuns,
	}
}

// Validate reports the first invalid field
func (c Config) Validate() error {
	if c.MinWorkers < 0 {
		return util.NewValidationError("minWorkers", c.MinWorkers, "must not be negative")
	}
	if c.MaxWorkers < 1 {
		return util.NewValidationError("maxWorkers", c.MaxWorkers, "must be at least 1")
	}
	if c.MaxWorkers < c.MinWorkers {
		return util.NewValidationError("maxWorkers", c.MaxWorkers,
			fmt.Sprintf("must be >= minWorkers (%d)", c.MinWorkers))
	}
	if c.IdleTimeout < 0 {
		return util.NewValidationError("idleTimeout", c.IdleTimeout, "must not be negative")
	}
	if c.QueueCapacity < 0 {
		return util.NewValidationError("queueCapacity", c.QueueCapacity, "must not be negative")
	}
	switch c.Rejection {
	case RejectCallerRuns, RejectAbort, RejectBlock:
	default:
		return util.NewValidationError("rejection", c.Rejection, "must be one of caller-runs, abort, block")
	}
	return nil
}

// withDefaults fills zero values so a partially specified config still works
func (c Config) withDefaults() Config {
	if c.MaxWorkers == 0 {
		c.MaxWorkers = c.MinWorkers
		if c.MaxWorkers == 0 {
			c.MaxWorkers = 1
		}
	}
	if c.Rejection == "" {
		c.Rejection = RejectCallerRuns
	}
	return c
}
