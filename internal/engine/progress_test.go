package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/bossfetch/internal/domain"
)

func TestProgressBarAdvancesPerResult(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out)

	farm := newFarm(map[domain.RemoteItem]int64{"A": 1024, "B": 1024})
	farm.template.fail = map[domain.RemoteItem]error{"C": assert.AnError}
	c := testCoordinator(farm, Options{Observers: []Observer{bar}})

	_, err := c.Run(context.Background(), &domain.Job{Items: items("A", "B", "C"), Workers: 1})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "0/3 items")
	assert.Contains(t, got, "1/3 items")
	assert.Contains(t, got, "2/3 items")
	assert.Contains(t, got, "3/3 items | 1 failed | 2.0 KiB")
	assert.Contains(t, got, "[====================] 100.0%")
	assert.Contains(t, got, "Time:")
}

func TestProgressBarInterruptedIsNotFinal(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out)

	bar.JobStarted(&domain.Job{}, 4, 2)
	bar.JobFinished(domain.Summary{ItemsTotal: 4, ItemsSeen: 1, Interrupted: true})

	assert.Contains(t, out.String(), "1/4 items")
	assert.NotContains(t, out.String(), "Time:")
}
