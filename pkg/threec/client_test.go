package threec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callsync/internal/resilience"
)

func day() (time.Time, time.Time) {
	loc := time.FixedZone("BRT", -3*60*60)
	start := time.Date(2026, 10, 19, 0, 0, 0, 0, loc)
	return start, start.Add(24*time.Hour - time.Second)
}

func TestListCalls_QueryParameters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calls", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "tok", q.Get("api_token"))
		assert.Equal(t, "2026-10-19 00:00:00", q.Get("start_date"))
		assert.Equal(t, "2026-10-19 23:59:59", q.Get("end_date"))
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "true", q.Get("with_mailing"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"c1","number":"11999990000"}]}`))
	}))
	defer srv.Close()

	start, end := day()
	client := NewClient("tok", WithBaseURL(srv.URL))
	calls, err := client.ListCalls(context.Background(), ListCallsParams{
		Start:       start,
		End:         end,
		PerPage:     100,
		Offset:      200,
		WithMailing: true,
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
}

func TestListCalls_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	start, end := day()
	client := NewClient("tok",
		WithBaseURL(srv.URL),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)
	calls, err := client.ListCalls(context.Background(), ListCallsParams{Start: start, End: end, PerPage: 50})
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Equal(t, int32(2), hits.Load())
}

func TestListCalls_PermanentStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	start, end := day()
	client := NewClient("bad", WithBaseURL(srv.URL))
	_, err := client.ListCalls(context.Background(), ListCallsParams{Start: start, End: end, PerPage: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
	assert.Equal(t, int32(1), hits.Load())
}

func TestListCalls_UnexpectedShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	start, end := day()
	client := NewClient("tok", WithBaseURL(srv.URL))
	_, err := client.ListCalls(context.Background(), ListCallsParams{Start: start, End: end, PerPage: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no call list")
}

func TestListCalls_InvalidPageSize(t *testing.T) {
	client := NewClient("tok")
	_, err := client.ListCalls(context.Background(), ListCallsParams{})
	assert.Error(t, err)
}

func TestRecordingURL(t *testing.T) {
	client := NewClient("a b", WithBaseURL("https://3c.example/api/v1"))
	assert.Equal(t,
		"https://3c.example/api/v1/calls/call-42/recording?api_token=a+b",
		client.RecordingURL("call-42"))
}
