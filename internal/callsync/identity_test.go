package callsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callsync/internal/store"
	"github.com/sells-group/callsync/pkg/hubspot"
)

func TestIdentityResolver_RemoteHitIsCached(t *testing.T) {
	crm := &mockCRM{}
	crm.On("SearchByPhone", mock.Anything, "11999990000").
		Return(&hubspot.Contact{ID: "501"}, nil).Once()

	cache := store.NewMemoryIdentityCache()
	r := NewIdentityResolver(cache, crm)

	for i := 0; i < 3; i++ {
		id, found, err := r.Resolve(context.Background(), "11999990000")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "501", id)
	}

	crm.AssertNumberOfCalls(t, "SearchByPhone", 1)
	cached, ok := cache.Get("11999990000")
	assert.True(t, ok)
	assert.Equal(t, "501", cached)
}

func TestIdentityResolver_MissIsNotCached(t *testing.T) {
	crm := &mockCRM{}
	crm.On("SearchByPhone", mock.Anything, "11999990000").Return(nil, nil)

	cache := store.NewMemoryIdentityCache()
	r := NewIdentityResolver(cache, crm)

	id, found, err := r.Resolve(context.Background(), "11999990000")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)
	assert.Equal(t, 0, cache.Len())
}

func TestIdentityResolver_RememberServesLaterLookups(t *testing.T) {
	crm := &mockCRM{}
	r := NewIdentityResolver(store.NewMemoryIdentityCache(), crm)

	r.Remember("11999990000", "777")
	id, found, err := r.Resolve(context.Background(), "11999990000")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "777", id)
	crm.AssertNotCalled(t, "SearchByPhone", mock.Anything, mock.Anything)
}

func TestIdentityResolver_SearchError(t *testing.T) {
	crm := &mockCRM{}
	crm.On("SearchByPhone", mock.Anything, "1").Return(nil, errors.New("connection reset by peer"))

	r := NewIdentityResolver(store.NewMemoryIdentityCache(), crm)
	_, found, err := r.Resolve(context.Background(), "1")
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "resolve phone 1")
}
