// Package ingest turns a list of catalog items into worker pool tasks and
// folds their outcomes into a BatchResult.
//
// Three strategies are available:
//
//   - ImportBatch submits every item, then awaits the handles in input order
//     with a per-item timeout. Each item gets exactly one outcome: success,
//     failure, timeout or cancelled. This is the primary mode.
//   - ImportWithBarrier fans the items out without keeping handles and waits
//     on a countdown up to one overall deadline, returning whatever finished.
//   - ImportParallel maps creation over the items with bounded parallelism and
//     silently drops failures.
//
// Timed-out and cancelled items may still have been created; Reconcile finds
// them with a listing pass.
package ingest
