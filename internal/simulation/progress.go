package simulation

import (
	"sync/atomic"
	"time"
)

// Progress counts completed days. It is safe to read from other goroutines
// while a run is in progress.
type Progress struct {
	total  atomic.Int64
	done   atomic.Int64
	last   atomic.Int64
	failed atomic.Bool
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Total  int64  `json:"total_days"`
	Done   int64  `json:"completed_days"`
	Last   string `json:"last_date,omitempty"`
	Failed bool   `json:"failed"`
}

func (p *Progress) start(days int) {
	p.total.Store(int64(days))
	p.done.Store(0)
	p.last.Store(0)
	p.failed.Store(false)
}

func (p *Progress) advance(date time.Time) {
	p.last.Store(date.Unix())
	p.done.Add(1)
}

func (p *Progress) fail() {
	p.failed.Store(true)
}

// Snapshot reads the counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	s := ProgressSnapshot{
		Total:  p.total.Load(),
		Done:   p.done.Load(),
		Failed: p.failed.Load(),
	}
	if s.Done > 0 {
		s.Last = time.Unix(p.last.Load(), 0).UTC().Format(time.DateOnly)
	}
	return s
}
