// Package monitoring keeps a short history of sync cycles and raises
// webhook alerts when they start failing.
package monitoring

import (
	"sync"
	"time"

	"github.com/sells-group/callsync/internal/callsync"
)

// Totals are cumulative counts since process start.
type Totals struct {
	Cycles   int `json:"cycles"`
	New      int `json:"new"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"`
	Panics   int `json:"panics"`
}

// Snapshot is a point-in-time view of sync health.
type Snapshot struct {
	Totals      Totals                 `json:"totals"`
	LastCycle   *callsync.CycleReport  `json:"last_cycle,omitempty"`
	Recent      []callsync.CycleReport `json:"recent"`
	CollectedAt time.Time              `json:"collected_at"`
}

// Recorder keeps the last N cycle reports plus running totals.
type Recorder struct {
	mu     sync.Mutex
	ring   []callsync.CycleReport
	next   int
	full   bool
	totals Totals
	now    func() time.Time
}

// NewRecorder creates a Recorder holding up to size reports.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = 20
	}
	return &Recorder{
		ring: make([]callsync.CycleReport, size),
		now:  time.Now,
	}
}

// Record stores a cycle report. It matches callsync.Scheduler's onCycle hook.
func (r *Recorder) Record(report callsync.CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring[r.next] = report
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}

	r.totals.Cycles++
	r.totals.New += report.New
	r.totals.Created += report.Dispatch.Created
	r.totals.Updated += report.Dispatch.Updated
	r.totals.Skipped += report.Dispatch.Skipped
	r.totals.Failed += report.Dispatch.Failed
	r.totals.Deferred += report.Dispatch.Deferred
	if report.Panic != "" {
		r.totals.Panics++
	}
}

// Snapshot returns the totals and the stored reports, newest first.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.ring)
	}

	recent := make([]callsync.CycleReport, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		recent = append(recent, r.ring[idx])
	}

	snap := Snapshot{
		Totals:      r.totals,
		Recent:      recent,
		CollectedAt: r.now().UTC(),
	}
	if len(recent) > 0 {
		last := recent[0]
		snap.LastCycle = &last
	}
	return snap
}
