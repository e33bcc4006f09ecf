package ingest

import (
	"errors"
	"time"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/util"
)

// Mode names an import strategy
type Mode string

const (
	// ModeOrdered awaits each item in input order with a per-item timeout
	ModeOrdered Mode = "ordered"

	// ModeBarrier fans out every item and waits on a countdown up to one deadline
	ModeBarrier Mode = "barrier"

	// ModeParallel maps creation over the items and drops failures
	ModeParallel Mode = "parallel"
)

// OutcomeKind classifies how one item resolved
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimedOut
	OutcomeCancelled
)

// Failure reasons recorded for outcomes that carry no error message of their own
const (
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

// String returns the outcome kind name
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimedOut:
		return "timeout"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the resolution of one submitted item. Resource is set only for
// OutcomeSuccess.
type Outcome struct {
	Kind     OutcomeKind
	Item     catalog.Item
	Resource *catalog.Resource
	Reason   string
	Err      error
}

func succeeded(item catalog.Item, r *catalog.Resource) Outcome {
	return Outcome{Kind: OutcomeSuccess, Item: item, Resource: r}
}

func failed(item catalog.Item, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Item: item, Reason: reasonOf(err), Err: err}
}

func timedOut(item catalog.Item, err error) Outcome {
	return Outcome{Kind: OutcomeTimedOut, Item: item, Reason: ReasonTimeout, Err: err}
}

func cancelled(item catalog.Item, err error) Outcome {
	return Outcome{Kind: OutcomeCancelled, Item: item, Reason: ReasonCancelled, Err: err}
}

// reasonOf strips task attribution so the reason reads as the creator's own message
func reasonOf(err error) string {
	var taskErr *util.TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Err.Error()
	}
	return err.Error()
}

// Failure pairs an item that did not import with the reason
type Failure struct {
	Item   catalog.Item `json:"item" yaml:"item"`
	Kind   string       `json:"kind" yaml:"kind"`
	Reason string       `json:"reason" yaml:"reason"`
	Err    error        `json:"-" yaml:"-"`
}

// BatchResult folds every outcome of one import call.
// For a complete batch SuccessCount+FailureCount equals Total.
type BatchResult struct {
	ID           string              `json:"id" yaml:"id"`
	Mode         Mode                `json:"mode" yaml:"mode"`
	Total        int                 `json:"total" yaml:"total"`
	SuccessCount int                 `json:"successCount" yaml:"successCount"`
	FailureCount int                 `json:"failureCount" yaml:"failureCount"`
	Pending      int                 `json:"pending" yaml:"pending"`
	Complete     bool                `json:"complete" yaml:"complete"`
	Duration     time.Duration       `json:"duration" yaml:"duration"`
	Succeeded    []*catalog.Resource `json:"succeeded" yaml:"succeeded"`
	Failures     []Failure           `json:"failures" yaml:"failures"`
	Outcomes     []Outcome           `json:"-" yaml:"-"`
}

func newBatchResult(id string, mode Mode, total int) *BatchResult {
	return &BatchResult{
		ID:        id,
		Mode:      mode,
		Total:     total,
		Succeeded: make([]*catalog.Resource, 0, total),
		Failures:  make([]Failure, 0),
		Outcomes:  make([]Outcome, 0, total),
	}
}

// record folds one outcome into the result
func (b *BatchResult) record(o Outcome) {
	b.Outcomes = append(b.Outcomes, o)
	if o.Kind == OutcomeSuccess {
		b.Succeeded = append(b.Succeeded, o.Resource)
		b.SuccessCount++
		return
	}
	b.Failures = append(b.Failures, Failure{
		Item:   o.Item,
		Kind:   o.Kind.String(),
		Reason: o.Reason,
		Err:    o.Err,
	})
	b.FailureCount++
}

// Count returns the number of outcomes of the given kind
func (b *BatchResult) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
