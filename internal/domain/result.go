package domain

import "time"

type ResultKind int

const (
	KindSuccess ResultKind = iota
	KindFailure
)

func (k ResultKind) String() string {
	if k == KindFailure {
		return "failure"
	}
	return "success"
}

// FetchResult is the single message a worker emits for an item.
// Bytes is only meaningful for KindSuccess, Message only for KindFailure.
type FetchResult struct {
	Kind    ResultKind `json:"-"`
	Item    RemoteItem `json:"item"`
	Bytes   int64      `json:"bytes,omitempty"`
	Message string     `json:"message,omitempty"`
	Worker  int        `json:"worker"`
}

func Success(item RemoteItem, bytes int64) FetchResult {
	return FetchResult{Kind: KindSuccess, Item: item, Bytes: bytes}
}

func Failed(item RemoteItem, err error) FetchResult {
	return FetchResult{Kind: KindFailure, Item: item, Message: err.Error()}
}

func (r FetchResult) OK() bool { return r.Kind == KindSuccess }

// Failure is a recorded (item, message) pair.
type Failure struct {
	Item    RemoteItem `json:"item" yaml:"item"`
	Message string     `json:"message" yaml:"message"`
}

// Summary is the final outcome of one job run.
type Summary struct {
	JobID         string    `json:"job_id" yaml:"job_id"`
	Workers       int       `json:"workers" yaml:"workers"`
	ItemsTotal    int       `json:"items_total" yaml:"items_total"`
	ItemsSeen     int       `json:"items_seen" yaml:"items_seen"`
	BytesTotal    int64     `json:"bytes_total" yaml:"bytes_total"`
	Failures      []Failure `json:"failures" yaml:"failures"`
	Interrupted   bool      `json:"interrupted" yaml:"interrupted"`
	WorkersKilled int       `json:"workers_killed" yaml:"workers_killed"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time `json:"finished_at" yaml:"finished_at"`
}

// Succeeded is the number of items that were transferred without error.
func (s Summary) Succeeded() int {
	return s.ItemsSeen - len(s.Failures)
}

func (s Summary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
