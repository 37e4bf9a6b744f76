package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/requestcontext"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryStore_ListRecentNewestFirst(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Append(ctx, Event{ID: fmt.Sprintf("e%d", i)}))
	}

	events, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3, "oldest event evicted past capacity")
	assert.Equal(t, "e4", events[0].ID)
	assert.Equal(t, "e2", events[2].ID)

	events, err = store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e4", events[0].ID)
}

func TestPublisher_StampsFromContext(t *testing.T) {
	store := NewMemoryStore(10)
	pub := NewPublisher(store, 4, WithClock(func() time.Time { return fixedNow }), WithLogger(discardLogger()))

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithStaff(ctx, requestcontext.StaffPrincipal{Subject: "ops@school.example", Role: "admin"})
	pub.Emit(ctx, Event{Action: ActionCatalogRefreshed})

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Worker().Run(runCtx)
	assert.ErrorIs(t, err, context.Canceled)

	events, err := pub.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixedNow, e.Timestamp)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "ops@school.example", e.ActorID)
	assert.Equal(t, "admin", e.ActorRole)
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	store := NewMemoryStore(10)
	pub := NewPublisher(store, 1, WithLogger(discardLogger()))

	pub.Emit(context.Background(), Event{ID: "kept", Action: ActionRosterExported})
	pub.Emit(context.Background(), Event{ID: "dropped", Action: ActionRosterExported})

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = pub.Worker().Run(runCtx)

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].ID)
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var pub *Publisher
	assert.NotPanics(t, func() { pub.Emit(context.Background(), Event{}) })
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Append(context.Context, Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("disk full")
}

func (s *failingStore) ListRecent(context.Context, int) ([]Event, error) { return nil, nil }

func TestWorker_KeepsGoingAfterStoreFailure(t *testing.T) {
	store := &failingStore{}
	inbox := make(chan Event, 2)
	inbox <- Event{ID: "a"}
	inbox <- Event{ID: "b"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWorker(store, inbox, discardLogger()).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, store.calls)
}
