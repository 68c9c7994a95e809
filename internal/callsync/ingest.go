package callsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/callsync/internal/store"
	"github.com/sells-group/callsync/pkg/threec"
)

// IngestStats describes one ingestion pass.
type IngestStats struct {
	StartOffset int    `json:"start_offset,omitempty"`
	Pages       int    `json:"pages"`
	Received    int    `json:"received"`
	AlreadySeen int    `json:"already_seen"`
	Duplicates  int    `json:"duplicates"`
	Malformed   int    `json:"malformed"`
	Truncated   bool   `json:"truncated,omitempty"`
	FetchError  string `json:"fetch_error,omitempty"`
}

// Ingester pages through today's calls and keeps the ones not dispatched yet.
// With a page cap, a pass that hits the cap leaves a cursor and the next pass
// resumes from it; the pass after a complete sweep starts again at offset 0.
// Passes must not run concurrently.
type Ingester struct {
	source   threec.Client
	seen     store.SeenSet
	pageSize int
	maxPages int
	loc      *time.Location
	now      func() time.Time

	cursorDay    string
	cursorOffset int
}

// NewIngester creates an Ingester. maxPages <= 0 disables the page cap.
func NewIngester(source threec.Client, seen store.SeenSet, pageSize, maxPages int, loc *time.Location, now func() time.Time) *Ingester {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Ingester{
		source:   source,
		seen:     seen,
		pageSize: pageSize,
		maxPages: maxPages,
		loc:      loc,
		now:      now,
	}
}

// DayRange returns the first and last second of t's calendar day in loc.
func DayRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
	return start, end
}

// IngestToday returns the calls of the current day that are not in the seen
// set, in fetch order, each id at most once. A failed page ends the pass but
// keeps what earlier pages returned, and the cursor stays where the pass began.
func (i *Ingester) IngestToday(ctx context.Context) ([]threec.Call, IngestStats) {
	log := zap.L().With(zap.String("component", "callsync.ingest"))
	start, end := DayRange(i.now(), i.loc)
	day := start.Format("2006-01-02")

	first := 0
	if i.cursorDay == day {
		first = i.cursorOffset
	}

	var (
		stats IngestStats
		batch []threec.Call
	)
	stats.StartOffset = first
	inBatch := make(map[string]struct{})

	for offset := first; ; offset += i.pageSize {
		if i.maxPages > 0 && stats.Pages >= i.maxPages {
			stats.Truncated = true
			i.cursorDay, i.cursorOffset = day, offset
			log.Warn("ingest: page cap reached, next cycle resumes from cursor",
				zap.Int("max_pages", i.maxPages),
				zap.Int("next_offset", offset),
			)
			break
		}

		page, err := i.source.ListCalls(ctx, threec.ListCallsParams{
			Start:       start,
			End:         end,
			PerPage:     i.pageSize,
			Offset:      offset,
			WithMailing: true,
		})
		if err != nil {
			stats.FetchError = err.Error()
			log.Error("ingest: page fetch failed, keeping earlier pages",
				zap.Int("offset", offset),
				zap.Int("kept", len(batch)),
				zap.Error(err),
			)
			break
		}
		stats.Pages++
		stats.Received += len(page)

		for _, call := range page {
			switch {
			case call.ID == "":
				stats.Malformed++
				log.Warn("ingest: call without id dropped", zap.String("number", call.Number))
			case i.seen.Has(call.ID):
				stats.AlreadySeen++
			default:
				if _, dup := inBatch[call.ID]; dup {
					stats.Duplicates++
					continue
				}
				inBatch[call.ID] = struct{}{}
				batch = append(batch, call)
			}
		}

		if len(page) < i.pageSize {
			i.cursorDay, i.cursorOffset = day, 0
			break
		}
	}

	log.Debug("ingest: complete",
		zap.Int("pages", stats.Pages),
		zap.Int("received", stats.Received),
		zap.Int("new", len(batch)),
	)
	return batch, stats
}
