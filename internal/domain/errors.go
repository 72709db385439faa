package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWorkerCount is wrapped by PartitionError when the requested
	// worker count is outside [MinWorkers, MaxWorkers].
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	// ErrEmptyJob is wrapped by PartitionError when there is nothing to fetch.
	ErrEmptyJob = errors.New("no items to fetch")
	// ErrInterrupted matches any InterruptedError.
	ErrInterrupted = errors.New("job interrupted")
)

const (
	MinWorkers = 1
	MaxWorkers = 5
)

// PartitionError is returned before any worker is spawned.
type PartitionError struct {
	Items   int
	Workers int
	Err     error
}

func (e *PartitionError) Error() string {
	if errors.Is(e.Err, ErrInvalidWorkerCount) {
		return fmt.Sprintf("partition: %v: %d (must be in [%d,%d])", e.Err, e.Workers, MinWorkers, MaxWorkers)
	}
	return fmt.Sprintf("partition: %v", e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// TransferError is the per-item failure reported by a Mirror.
type TransferError struct {
	Item RemoteItem
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Item, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// InterruptedError means the coordinator stopped waiting before all
// results arrived. Seen counts only results drained before the interrupt.
type InterruptedError struct {
	Seen     int
	Expected int
	Cause    error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("job interrupted after %d/%d items: %v", e.Seen, e.Expected, e.Cause)
}

func (e *InterruptedError) Is(target error) bool { return target == ErrInterrupted }

func (e *InterruptedError) Unwrap() error { return e.Cause }
