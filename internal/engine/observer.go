package engine

import "github.com/datallboy/bossfetch/internal/domain"

// Snapshot is the coordinator's running tally, taken after each result.
type Snapshot struct {
	Total  int   `json:"total"`
	Seen   int   `json:"seen"`
	Failed int   `json:"failed"`
	Bytes  int64 `json:"bytes"`
}

// Observer is notified from the coordinator goroutine. Implementations
// must return quickly since they run inside the receive loop.
type Observer interface {
	JobStarted(job *domain.Job, total, workers int)
	ResultReceived(res domain.FetchResult, snap Snapshot)
	JobFinished(summary domain.Summary)
}

type observers []Observer

func (o observers) started(job *domain.Job, total, workers int) {
	for _, obs := range o {
		obs.JobStarted(job, total, workers)
	}
}

func (o observers) received(res domain.FetchResult, snap Snapshot) {
	for _, obs := range o {
		obs.ResultReceived(res, snap)
	}
}

func (o observers) finished(summary domain.Summary) {
	for _, obs := range o {
		obs.JobFinished(summary)
	}
}
