package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/bossfetch/internal/domain"
)

// ProgressBar renders a single-line CLI progress indicator that advances
// one unit per received result.
type ProgressBar struct {
	mu      sync.Mutex
	out     io.Writer
	started time.Time
}

func NewProgressBar(out io.Writer) *ProgressBar {
	return &ProgressBar{out: out}
}

func (p *ProgressBar) JobStarted(job *domain.Job, total, workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = time.Now()
	p.render(Snapshot{Total: total}, false)
}

func (p *ProgressBar) ResultReceived(_ domain.FetchResult, snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render(snap, false)
}

func (p *ProgressBar) JobFinished(s domain.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render(Snapshot{
		Total:  s.ItemsTotal,
		Seen:   s.ItemsSeen,
		Failed: len(s.Failures),
		Bytes:  s.BytesTotal,
	}, !s.Interrupted)
	fmt.Fprintln(p.out)
}

func (p *ProgressBar) render(snap Snapshot, final bool) {
	if snap.Total == 0 {
		return
	}

	elapsed := time.Since(p.started)
	percent := float64(snap.Seen) / float64(snap.Total) * 100

	// Guard against division by zero or sub-millisecond durations
	seconds := elapsed.Seconds()
	if seconds < 0.1 {
		seconds = 0.1
	}
	speed := humanize.IBytes(uint64(float64(snap.Bytes) / seconds))

	etaStr := "calc..."
	if snap.Seen > 0 {
		perItem := elapsed / time.Duration(snap.Seen)
		etaStr = (perItem * time.Duration(snap.Total-snap.Seen)).Truncate(time.Second).String()
	}

	// Progress Bar go brrr [====>   ]
	const barWidth = 20
	completedWidth := int(percent / 100 * barWidth)
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	speedLabel := "Speed"
	timeLabel := "ETA"
	if final {
		speedLabel = "Avg"
		timeLabel = "Time"
		etaStr = elapsed.Truncate(time.Second).String()
	}

	// [Bar] 50% | 5/10 items | 0 failed | 12 MiB | Speed: 3.0 MiB/s | ETA: 2s
	fmt.Fprintf(p.out, "\r[%s] %5.1f%% | %d/%d items | %d failed | %s | %s: %s/s | %s: %-7s   ",
		bar, percent, snap.Seen, snap.Total, snap.Failed, humanize.IBytes(uint64(snap.Bytes)),
		speedLabel, speed, timeLabel, etaStr)
}
