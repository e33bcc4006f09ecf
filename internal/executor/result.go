package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aryankumar/lomsync/internal/util"
)

// Collect waits for every handle until ctx ends and returns results in handle order.
// Handles still pending when ctx ends get a result whose error wraps
// util.ErrTimeout for a deadline or util.ErrCancelled otherwise; they keep running.
func Collect(ctx context.Context, handles []*Handle) []Result {
	results := make([]Result, len(handles))
	for i, h := range handles {
		res, err := h.Wait(ctx)
		if err != nil {
			reason := util.ErrCancelled
			if ctx.Err() == context.DeadlineExceeded {
				reason = util.ErrTimeout
			}
			res = Result{
				Name:  h.Name(),
				Error: fmt.Errorf("task %q not finished: %w", h.Name(), reason),
			}
		}
		results[i] = res
	}
	return results
}

// CountSuccessful returns the number of successful results (no error)
func CountSuccessful(results []Result) int {
	count := 0
	for _, r := range results {
		if r.Error == nil {
			count++
		}
	}
	return count
}

// CountFailed returns the number of failed results (has error)
func CountFailed(results []Result) int {
	return len(results) - CountSuccessful(results)
}

// Summary provides a summary of execution results
type Summary struct {
	Total       int
	Successful  int
	Failed      int
	AvgDuration time.Duration
	MaxDuration time.Duration
}

// Summarize creates a summary of the results
func Summarize(results []Result) Summary {
	s := Summary{
		Total:      len(results),
		Successful: CountSuccessful(results),
		Failed:     CountFailed(results),
	}

	if len(results) == 0 {
		return s
	}

	var total time.Duration
	for _, r := range results {
		total += r.Duration
		if r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
	}
	s.AvgDuration = total / time.Duration(len(results))
	return s
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d, ", s.Total))
	sb.WriteString(fmt.Sprintf("Successful: %d, ", s.Successful))
	sb.WriteString(fmt.Sprintf("Failed: %d", s.Failed))

	if s.Total > 0 {
		sb.WriteString(fmt.Sprintf(", Avg: %s", s.AvgDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
	}

	return sb.String()
}
