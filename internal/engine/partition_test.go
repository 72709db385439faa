package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/bossfetch/internal/domain"
)

func TestPartitionExamples(t *testing.T) {
	tests := []struct {
		name    string
		items   []domain.RemoteItem
		workers int
		want    [][]domain.RemoteItem
	}{
		{
			name:    "five items two workers",
			items:   items("A", "B", "C", "D", "E"),
			workers: 2,
			want:    [][]domain.RemoteItem{items("A", "B", "C"), items("D", "E")},
		},
		{
			name:    "fewer items than workers",
			items:   items("A", "B", "C"),
			workers: 5,
			want:    [][]domain.RemoteItem{items("A"), items("B"), items("C")},
		},
		{
			name:    "single worker",
			items:   items("A", "B"),
			workers: 1,
			want:    [][]domain.RemoteItem{items("A", "B")},
		},
		{
			name:    "longer chunks first",
			items:   items("A", "B", "C", "D", "E", "F", "G", "H", "I", "J"),
			workers: 4,
			want:    [][]domain.RemoteItem{items("A", "B", "C"), items("D", "E", "F"), items("G", "H"), items("I", "J")},
		},
		{
			name:    "duplicates dropped first",
			items:   items("A", "B", "A", "C", "B"),
			workers: 5,
			want:    [][]domain.RemoteItem{items("A"), items("B"), items("C")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Partition(tt.items, tt.workers)
			require.NoError(t, err)
			require.Len(t, chunks, len(tt.want))
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, tt.want[i], c.Items)
			}
		})
	}
}

func TestPartitionInvalidWorkerCount(t *testing.T) {
	for _, w := range []int{-1, 0, 6} {
		_, err := Partition(items("A", "B"), w)
		require.Error(t, err, "workers=%d", w)

		var perr *domain.PartitionError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, w, perr.Workers)
		assert.ErrorIs(t, err, domain.ErrInvalidWorkerCount)
	}
}

func TestPartitionEmptyJob(t *testing.T) {
	_, err := Partition(nil, 3)
	assert.ErrorIs(t, err, domain.ErrEmptyJob)
}

func TestPartitionCoversEveryItemOnce(t *testing.T) {
	for n := 1; n <= 30; n++ {
		for w := domain.MinWorkers; w <= domain.MaxWorkers; w++ {
			t.Run(fmt.Sprintf("n=%d/w=%d", n, w), func(t *testing.T) {
				in := make([]domain.RemoteItem, n)
				for i := range in {
					in[i] = domain.RemoteItem(fmt.Sprintf("/item/%02d", i))
				}

				chunks, err := Partition(in, w)
				require.NoError(t, err)

				effective := min(n, w)
				require.Len(t, chunks, effective)

				var joined []domain.RemoteItem
				smallest, largest := n, 0
				for _, c := range chunks {
					require.NotZero(t, c.Len(), "empty chunk")
					smallest = min(smallest, c.Len())
					largest = max(largest, c.Len())
					joined = append(joined, c.Items...)
				}

				assert.Equal(t, in, joined)
				assert.LessOrEqual(t, largest-smallest, 1)
				assert.Equal(t, (n+effective-1)/effective, chunks[0].Len())
			})
		}
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, items("B", "A", "C"), Dedupe(items("B", "A", "B", "C", "A")))
	assert.Empty(t, Dedupe(nil))
}
