package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginCompleteReplay(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(NewMemoryStore(), time.Hour)
	key := Key("user-1", "POST", "/v1/matches", "abc")

	resp, err := idem.Begin(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = idem.Begin(ctx, key)
	require.ErrorIs(t, err, ErrInProgress)
	require.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, idem.Complete(ctx, key, Response{Status: 201, ContentType: "application/json", Body: []byte(`{"data":{}}`)}))

	resp, err = idem.Begin(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"data":{}}`, string(resp.Body))
}

func TestAbortFreesKey(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(NewMemoryStore(), time.Hour)
	key := Key("user-1", "POST", "/v1/gigs", "k")

	_, err := idem.Begin(ctx, key)
	require.NoError(t, err)
	require.NoError(t, idem.Abort(ctx, key))
	_, err = idem.Begin(ctx, key)
	require.NoError(t, err)
}

func TestExpiredEntriesAreDropped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set(ctx, "k", Response{Status: 200}, time.Minute))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	resp, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestKeyIsScoped(t *testing.T) {
	assert.NotEqual(t, Key("a", "POST", "/v1/gigs", "k"), Key("b", "POST", "/v1/gigs", "k"))
	assert.NotEqual(t, Key("a", "POST", "/v1/gigs", "k"), Key("a", "POST", "/v1/matches", "k"))
	assert.Equal(t, Key("a", "POST", "/v1/gigs", "k"), Key("a", "POST", "/v1/gigs", "k"))
}

// splitStore keeps responses and locks under separate keys and drops the lock when a
// response is stored, the way the redis store does.
type splitStore struct {
	mu        sync.Mutex
	responses map[string]Response
	locks     map[string]bool
	afterMiss func()
}

func newSplitStore() *splitStore {
	return &splitStore{responses: map[string]Response{}, locks: map[string]bool{}}
}

func (s *splitStore) Get(_ context.Context, key string) (*Response, error) {
	s.mu.Lock()
	resp, ok := s.responses[key]
	hook := s.afterMiss
	if !ok {
		s.afterMiss = nil
	}
	s.mu.Unlock()
	if ok {
		return &resp, nil
	}
	if hook != nil {
		hook()
	}
	return nil, nil
}

func (s *splitStore) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *splitStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func (s *splitStore) Set(_ context.Context, key string, resp Response, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = resp
	delete(s.locks, key)
	return nil
}

func TestBeginReplaysResponseCompletedBeforeReserve(t *testing.T) {
	ctx := context.Background()
	store := newSplitStore()
	idem := NewIdempotency(store, time.Hour)
	key := Key("user-1", "POST", "/v1/gigs", "retry-key")

	_, err := idem.Begin(ctx, key)
	require.NoError(t, err)

	// The first request finishes right after the retry saw no stored response.
	store.afterMiss = func() {
		require.NoError(t, idem.Complete(ctx, key, Response{Status: 201, ContentType: "application/json", Body: []byte(`{"data":{"id":"g1"}}`)}))
	}
	resp, err := idem.Begin(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, resp, "completed key must replay, not run again")
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"data":{"id":"g1"}}`, string(resp.Body))

	store.mu.Lock()
	assert.False(t, store.locks[key], "lock taken by the retry is released")
	store.mu.Unlock()
}
