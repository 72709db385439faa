package engine

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/datallboy/bossfetch/internal/domain"
)

// Dedupe drops repeated items, keeping the first occurrence of each so the
// original order is preserved.
func Dedupe(items []domain.RemoteItem) []domain.RemoteItem {
	seen := mapset.NewThreadUnsafeSet()
	unique := make([]domain.RemoteItem, 0, len(items))
	for _, item := range items {
		if seen.Add(item) {
			unique = append(unique, item)
		}
	}
	return unique
}

// Partition deduplicates items and splits them into min(n, workers)
// contiguous, non-empty chunks. Chunk sizes differ by at most one, with the
// longer chunks first: 10 items over 4 workers gives 3, 3, 2, 2.
func Partition(items []domain.RemoteItem, workers int) ([]domain.JobChunk, error) {
	if workers < domain.MinWorkers || workers > domain.MaxWorkers {
		return nil, &domain.PartitionError{Items: len(items), Workers: workers, Err: domain.ErrInvalidWorkerCount}
	}

	unique := Dedupe(items)
	n := len(unique)
	if n == 0 {
		return nil, &domain.PartitionError{Workers: workers, Err: domain.ErrEmptyJob}
	}

	effective := min(workers, n)
	size, extra := n/effective, n%effective

	chunks := make([]domain.JobChunk, 0, effective)
	start := 0
	for i := 0; i < effective; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, domain.JobChunk{Index: i, Items: unique[start:end:end]})
		start = end
	}

	return chunks, nil
}

func countItems(chunks []domain.JobChunk) int {
	total := 0
	for _, c := range chunks {
		total += c.Len()
	}
	return total
}
