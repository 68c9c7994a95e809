package callsync

import (
	"strings"
	"time"
)

// crmTimeLayout matches the pt-BR display format the CRM fields were set up
// with: day/month/year, 24-hour clock.
const crmTimeLayout = "02/01/2006, 15:04:05"

// callTimeLayouts are tried in order. Layouts without a zone are read in the
// configured location.
var callTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseCallTime parses a call timestamp as sent by the call source.
func ParseCallTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range callTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimeFormatter renders call timestamps for CRM display fields.
type TimeFormatter struct {
	loc *time.Location
	now func() time.Time
}

// NewTimeFormatter creates a formatter for the given location.
func NewTimeFormatter(loc *time.Location, now func() time.Time) *TimeFormatter {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &TimeFormatter{loc: loc, now: now}
}

// Format renders raw in the CRM display format. A missing or unreadable
// timestamp is rendered as the current time.
func (f *TimeFormatter) Format(raw string) string {
	t, ok := ParseCallTime(raw, f.loc)
	if !ok {
		t = f.now()
	}
	return t.In(f.loc).Format(crmTimeLayout)
}

// Location returns the formatter's display location.
func (f *TimeFormatter) Location() *time.Location {
	return f.loc
}
