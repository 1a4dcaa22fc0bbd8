package history

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore returns the configured errors from every call.
type failingStore struct {
	readErr   error
	updateErr error
	queryErr  error

	mu      sync.Mutex
	updates []Entry
}

func (s *failingStore) Read(context.Context, string) (Entry, error) {
	return Entry{}, s.readErr
}

func (s *failingStore) Update(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, e)
	return nil
}

func (s *failingStore) Query(context.Context, string, int) ([]string, error) {
	return nil, s.queryErr
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestTouch_CreatesThenIncrements(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
			second := first.Add(time.Minute)

			e, err := Touch(ctx, store, "ws://echo.websocket.org", first)
			require.NoError(t, err)
			assert.Equal(t, 1, e.Count)

			e, err = Touch(ctx, store, "ws://echo.websocket.org", second)
			require.NoError(t, err)
			assert.Equal(t, 2, e.Count)

			got, err := store.Read(ctx, "ws://echo.websocket.org")
			require.NoError(t, err)
			assert.Equal(t, 2, got.Count)
			assert.True(t, got.LastUsed.Equal(second), "last used %v, want %v", got.LastUsed, second)
		})
	}
}

func TestRead_NotFound(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Read(context.Background(), "ws://missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestQuery_PrefixAndOrdering(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, store.Update(ctx, Entry{URL: "ws://a.example", Count: 5, LastUsed: base}))
			require.NoError(t, store.Update(ctx, Entry{URL: "ws://b.example", Count: 1, LastUsed: base.Add(time.Hour)}))
			require.NoError(t, store.Update(ctx, Entry{URL: "wss://c.example", Count: 9, LastUsed: base.Add(2 * time.Hour)}))
			require.NoError(t, store.Update(ctx, Entry{URL: "ws://d.example", Count: 7, LastUsed: base}))

			urls, err := store.Query(ctx, "ws://", 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"ws://b.example", "ws://d.example", "ws://a.example"}, urls)

			urls, err = store.Query(ctx, "ws", 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"wss://c.example", "ws://b.example"}, urls)

			urls, err = store.Query(ctx, "http", 0)
			require.NoError(t, err)
			assert.Empty(t, urls)
		})
	}
}

func TestSQLiteStore_PrefixIsLiteral(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, Entry{URL: "ws://x_y", Count: 1, LastUsed: time.Now()}))
	require.NoError(t, store.Update(ctx, Entry{URL: "ws://xzy", Count: 1, LastUsed: time.Now()}))

	urls, err := store.Query(ctx, "ws://x_", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws://x_y"}, urls)
}

func TestSQLiteStore_ReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = Touch(ctx, store, "ws://persist", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	e, err := store.Read(ctx, "ws://persist")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Count)
}

func TestTouch_ReadFailureFallsBackToFreshEntry(t *testing.T) {
	store := &failingStore{readErr: errors.New("disk on fire")}
	now := time.Now()

	e, err := Touch(context.Background(), store, "ws://x", now)
	require.NoError(t, err)
	assert.Equal(t, Entry{URL: "ws://x", Count: 1, LastUsed: now}, e)
	assert.Len(t, store.updates, 1)
}

func TestTouch_UpdateFailureIsReturned(t *testing.T) {
	store := &failingStore{readErr: ErrNotFound, updateErr: errors.New("read-only")}
	_, err := Touch(context.Background(), store, "ws://x", time.Now())
	assert.Error(t, err)
}

func TestSuggest_FailureYieldsEmpty(t *testing.T) {
	store := &failingStore{queryErr: errors.New("offline")}
	got := Suggest(context.Background(), store, "ws", 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Suggest(context.Background(), nil, "ws", 10))
}

func TestSuggest_ReturnsMatches(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := Touch(ctx, store, "ws://one", time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"ws://one"}, Suggest(ctx, store, "  ws://o", 10))
}

func TestRecorder_SerializesUpdates(t *testing.T) {
	store := NewMemoryStore()
	var (
		mu       sync.Mutex
		attempts int
	)
	rec := NewRecorder(store, 64, WithRecordHook(func(_ Entry, err error) {
		assert.NoError(t, err)
		mu.Lock()
		attempts++
		mu.Unlock()
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, rec.Record("ws://busy"))
	}
	rec.Close()

	e, err := store.Read(context.Background(), "ws://busy")
	require.NoError(t, err)
	assert.Equal(t, 20, e.Count)
	assert.Equal(t, 20, attempts)
}

func TestRecorder_SwallowsStoreErrors(t *testing.T) {
	store := &failingStore{readErr: ErrNotFound, updateErr: errors.New("locked")}
	errs := make(chan error, 1)
	rec := NewRecorder(store, 1, WithRecordHook(func(_ Entry, err error) { errs <- err }))

	require.NoError(t, rec.Record("ws://x"))
	rec.Close()

	assert.Error(t, <-errs)
}

func TestRecorder_RecordAfterClose(t *testing.T) {
	rec := NewRecorder(NewMemoryStore(), 1)
	rec.Close()
	rec.Close()
	assert.ErrorIs(t, rec.Record("ws://late"), ErrRecorderClosed)
}

func TestRecorder_AcceptedURLsSurviveConcurrentClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		var applied atomic.Int64
		rec := NewRecorder(NewMemoryStore(), 64, WithRecordHook(func(Entry, error) { applied.Add(1) }))

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if rec.Record("ws://race") == nil {
					accepted.Add(1)
				}
			}()
		}
		rec.Close()
		wg.Wait()

		require.Equal(t, accepted.Load(), applied.Load(), "round %d", round)
	}
}

func TestRecorder_UsesClock(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(store, 1, WithClock(func() time.Time { return fixed }), WithStoreTimeout(time.Second))
	require.NoError(t, rec.Record("ws://clock"))
	rec.Close()

	e, err := store.Read(context.Background(), "ws://clock")
	require.NoError(t, err)
	assert.Equal(t, fixed, e.LastUsed)
}
