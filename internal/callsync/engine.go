// Package callsync reconciles call-center calls against CRM contacts: it pages
// through the day's calls, classifies each outcome and creates or updates the
// matching contact, suppressing duplicates with process-lifetime memory.
package callsync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callsync/internal/config"
	"github.com/sells-group/callsync/internal/store"
	"github.com/sells-group/callsync/pkg/hubspot"
	"github.com/sells-group/callsync/pkg/threec"
)

// CycleReport summarizes one ingest, classify and sync pass.
type CycleReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DurationMs int64         `json:"duration_ms"`
	Ingest     IngestStats   `json:"ingest"`
	New        int           `json:"new"`
	Dispatch   DispatchStats `json:"dispatch"`
	Panic      string        `json:"panic,omitempty"`
}

// Engine owns the sync components and their shared memory.
type Engine struct {
	ingester   *Ingester
	dispatcher *Dispatcher
	classifier *Classifier
	seen       store.SeenSet
	cache      store.IdentityCache
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*engineOpts)

type engineOpts struct {
	now   func() time.Time
	sleep func(context.Context, time.Duration)
	ready func() bool
}

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOpts) {
		o.now = now
	}
}

// WithSleep overrides the pacing pause (for testing).
func WithSleep(sleep func(context.Context, time.Duration)) EngineOption {
	return func(o *engineOpts) {
		o.sleep = sleep
	}
}

// WithCRMReady makes dispatch defer calls while ready reports false,
// typically an open circuit breaker in front of the CRM.
func WithCRMReady(ready func() bool) EngineOption {
	return func(o *engineOpts) {
		o.ready = ready
	}
}

// New creates an Engine. seen and cache are the engine's memory; pass fresh
// stores for an isolated engine.
func New(
	cfg *config.Config,
	source threec.Client,
	crm hubspot.Client,
	seen store.SeenSet,
	cache store.IdentityCache,
	opts ...EngineOption,
) (*Engine, error) {
	o := engineOpts{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Sync.Location()
	if err != nil {
		return nil, eris.Wrap(err, "callsync: new engine")
	}

	times := NewTimeFormatter(loc, o.now)
	classifier := NewClassifier(cfg.Sync.DefaultStatusLabel, cfg.Sync.VoicemailLabels)
	resolver := NewIdentityResolver(cache, crm)
	decider := NewDecider(cfg.CRM.Properties, cfg.Sync, source.RecordingURL, times)
	writer := NewWriter(crm, resolver)

	dispatcher := NewDispatcher(seen, classifier, resolver, decider, writer,
		cfg.Sync.PlaceholderName, cfg.Sync.Pacing(), loc)
	if o.sleep != nil {
		dispatcher.sleep = o.sleep
	}
	dispatcher.ready = o.ready

	return &Engine{
		ingester:   NewIngester(source, seen, cfg.ThreeC.PageSize, cfg.ThreeC.MaxPages, loc, o.now),
		dispatcher: dispatcher,
		classifier: classifier,
		seen:       seen,
		cache:      cache,
		now:        o.now,
	}, nil
}

// RunCycle performs one full pass. It never returns an error: every failure
// is contained and reported in the CycleReport.
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:        uuid.NewString(),
		StartedAt: e.now(),
	}
	log := zap.L().With(zap.String("component", "callsync.engine"), zap.String("cycle_id", report.ID))

	batch, ingest := e.ingester.IngestToday(ctx)
	report.Ingest = ingest
	report.New = len(batch)

	if len(batch) > 0 {
		log.Info("cycle: new calls found", zap.Int("new", len(batch)))
		report.Dispatch = e.dispatcher.Dispatch(ctx, batch)
	}

	report.FinishedAt = e.now()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	log.Info("cycle: complete",
		zap.Int("pages", ingest.Pages),
		zap.Int("new", report.New),
		zap.Int("created", report.Dispatch.Created),
		zap.Int("updated", report.Dispatch.Updated),
		zap.Int("skipped", report.Dispatch.Skipped),
		zap.Int("failed", report.Dispatch.Failed),
		zap.Int("deferred", report.Dispatch.Deferred),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report
}

// Classifier returns the engine's outcome classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// MemoryStats reports the size of the engine's memory.
func (e *Engine) MemoryStats() (seenIDs, cachedPhones int) {
	return e.seen.Len(), e.cache.Len()
}
