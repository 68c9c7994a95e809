package callsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestParseCallTime(t *testing.T) {
	loc := saoPaulo(t)

	ts, ok := ParseCallTime("2026-10-19T17:03:00Z", loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 19, 17, 3, 0, 0, time.UTC), ts.UTC())

	ts, ok = ParseCallTime("2026-10-19 14:03:00", loc)
	require.True(t, ok)
	assert.Equal(t, loc, ts.Location())
	assert.Equal(t, 14, ts.Hour())

	_, ok = ParseCallTime("yesterday", loc)
	assert.False(t, ok)
	_, ok = ParseCallTime("", loc)
	assert.False(t, ok)
}

func TestTimeFormatter_Format(t *testing.T) {
	loc := saoPaulo(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, loc)
	f := NewTimeFormatter(loc, func() time.Time { return fixed })

	assert.Equal(t, "19/10/2026, 14:03:00", f.Format("2026-10-19T17:03:00Z"))
	assert.Equal(t, "19/10/2026, 14:03:00", f.Format("2026-10-19 14:03:00"))
	assert.Equal(t, "02/01/2026, 03:04:05", f.Format(""))
	assert.Equal(t, "02/01/2026, 03:04:05", f.Format("not a date"))
}
