package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

func newActiveSession(t *testing.T, backend RecordStore, lastSync int64) *RepositorySession {
	t.Helper()
	s := NewRepositorySession("bookmarks", backend, lastSync, nil, logger.Nop())
	require.NoError(t, s.Begin())
	return s
}

// storeOne pushes a single record through the session and waits for its
// per-record callback.
func storeOne(t *testing.T, s *RepositorySession, incoming models.Record) error {
	t.Helper()

	done := make(chan error, 1)
	s.SetStoreDelegate(StoreDelegate{
		OnRecordSucceeded: func(string) { done <- nil },
		OnRecordFailed:    func(_ string, err error) { done <- err },
	})

	require.NoError(t, s.Store(context.Background(), incoming))

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("store callback never arrived")
		return nil
	}
}

func mustGet(t *testing.T, backend RecordStore, guid string) models.Record {
	t.Helper()
	got, err := backend.Get(context.Background(), "bookmarks", guid)
	require.NoError(t, err)
	return got
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func TestSession_Lifecycle(t *testing.T) {
	s := NewRepositorySession("bookmarks", NewMemoryRecordStore(), 0, nil, logger.Nop())
	assert.Equal(t, SessionUnstarted, s.State())

	require.NoError(t, s.Begin())
	assert.Equal(t, SessionActive, s.State())

	// Begin on an active session is an invalid transition, not a no-op.
	assert.ErrorIs(t, s.Begin(), ErrInvalidTransition)

	require.NoError(t, s.Finish())
	assert.Equal(t, SessionFinished, s.State())

	// Finishing twice fails the same way.
	assert.ErrorIs(t, s.Finish(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Begin(), ErrInvalidTransition)
}

func TestSession_OperationsRequireActive(t *testing.T) {
	ctx := context.Background()

	unstarted := NewRepositorySession("bookmarks", NewMemoryRecordStore(), 0, nil, logger.Nop())
	assert.ErrorIs(t, unstarted.FetchAll(ctx, FetchDelegate{}), ErrInactiveSession)
	assert.ErrorIs(t, unstarted.Store(ctx, models.Record{GUID: "g"}), ErrInactiveSession)
	assert.ErrorIs(t, unstarted.Wipe(ctx, WipeDelegate{}), ErrInactiveSession)
	assert.ErrorIs(t, unstarted.StoreDone(ctx), ErrInactiveSession)

	finished := newActiveSession(t, NewMemoryRecordStore(), 0)
	require.NoError(t, finished.Finish())
	assert.ErrorIs(t, finished.FetchSince(ctx, 0, FetchDelegate{}), ErrInactiveSession)
	assert.ErrorIs(t, finished.GUIDsSince(ctx, 0, GUIDsDelegate{}), ErrInactiveSession)
}

func TestSession_FetchWithoutGUIDsIsInvalid(t *testing.T) {
	s := newActiveSession(t, NewMemoryRecordStore(), 0)

	assert.ErrorIs(t, s.Fetch(context.Background(), nil, FetchDelegate{}), ErrNoGUIDs)
	assert.ErrorIs(t, s.Fetch(context.Background(), []string{}, FetchDelegate{}), ErrNoGUIDs)
}

// ── Store / reconciliation ──────────────────────────────────────────────────

func TestSession_StoreInsertsNewRecord(t *testing.T) {
	backend := NewMemoryRecordStore()
	s := newActiveSession(t, backend, 0)

	require.NoError(t, storeOne(t, s, rec("g1", 100, false, `{"title":"a"}`)))

	got := mustGet(t, backend, "g1")
	assert.Equal(t, int64(100), got.LastModified)
	assert.NotZero(t, got.LocalID)
}

func TestSession_TombstoneForUnknownRecordIsSuccess(t *testing.T) {
	backend := NewMemoryRecordStore()
	s := newActiveSession(t, backend, 0)

	require.NoError(t, storeOne(t, s, rec("ghost", 100, true, "")))

	_, err := backend.Get(context.Background(), "bookmarks", "ghost")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSession_LocalWinsWhenNewer(t *testing.T) {
	backend := NewMemoryRecordStore()

	// Device A modified the bookmark at t=100 after the last sync at t=50.
	localID, err := backend.Insert(context.Background(), rec("g", 100, false, `{"title":"device A"}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 50)

	// The remote copy is older and must lose wholesale.
	require.NoError(t, storeOne(t, s, rec("g", 50, false, `{"title":"remote"}`)))

	got := mustGet(t, backend, "g")
	assert.JSONEq(t, `{"title":"device A"}`, string(got.Fields))
	assert.Equal(t, int64(100), got.LastModified)
	assert.Equal(t, localID, got.LocalID)
}

func TestSession_RemoteWinsKeepsLocalIdentity(t *testing.T) {
	backend := NewMemoryRecordStore()

	localID, err := backend.Insert(context.Background(), rec("g", 100, false, `{"title":"local"}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 50)

	require.NoError(t, storeOne(t, s, rec("g", 200, false, `{"title":"remote"}`)))

	got := mustGet(t, backend, "g")
	assert.JSONEq(t, `{"title":"remote"}`, string(got.Fields))
	assert.Equal(t, int64(200), got.LastModified)
	// The winning remote fields land in the existing local row.
	assert.Equal(t, localID, got.LocalID)
}

func TestSession_RemoteReplacesUnmodifiedLocal(t *testing.T) {
	backend := NewMemoryRecordStore()

	// Local copy unchanged since last sync (modified 100 < watermark 500).
	localID, err := backend.Insert(context.Background(), rec("g", 100, false, `{"title":"stale"}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 500)

	// Remote side replaces outright even though its timestamp is lower than
	// some local clocks might suggest.
	require.NoError(t, storeOne(t, s, rec("g", 90, false, `{"title":"server"}`)))

	got := mustGet(t, backend, "g")
	assert.JSONEq(t, `{"title":"server"}`, string(got.Fields))
	assert.Equal(t, localID, got.LocalID)
}

func TestSession_TombstoneRules(t *testing.T) {
	ctx := context.Background()

	t.Run("newer tombstone deletes", func(t *testing.T) {
		backend := NewMemoryRecordStore()
		_, err := backend.Insert(ctx, rec("g", 100, false, `{"title":"a"}`))
		require.NoError(t, err)

		s := newActiveSession(t, backend, 0)
		require.NoError(t, storeOne(t, s, rec("g", 200, true, "")))

		_, err = backend.Get(ctx, "bookmarks", "g")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("older tombstone is dropped", func(t *testing.T) {
		backend := NewMemoryRecordStore()
		_, err := backend.Insert(ctx, rec("g", 100, false, `{"title":"a"}`))
		require.NoError(t, err)

		s := newActiveSession(t, backend, 0)
		require.NoError(t, storeOne(t, s, rec("g", 50, true, "")))

		got := mustGet(t, backend, "g")
		assert.False(t, got.Deleted)
		assert.Equal(t, int64(100), got.LastModified)
	})
}

func TestSession_DuplicateGUIDIsIntegrityError(t *testing.T) {
	backend := NewMemoryRecordStore()
	ctx := context.Background()

	_, err := backend.Insert(ctx, rec("dup", 100, false, `{"title":"one"}`))
	require.NoError(t, err)
	_, err = backend.Insert(ctx, rec("dup", 200, false, `{"title":"two"}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 0)

	err = storeOne(t, s, rec("dup", 300, false, `{"title":"remote"}`))
	assert.ErrorIs(t, err, ErrDuplicateGUID)
}

func TestSession_RecordFailureDoesNotAbortBatch(t *testing.T) {
	backend := NewMemoryRecordStore()
	ctx := context.Background()

	_, err := backend.Insert(ctx, rec("dup", 100, false, `{"a":1}`))
	require.NoError(t, err)
	_, err = backend.Insert(ctx, rec("dup", 200, false, `{"a":2}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 0)

	var (
		mu        sync.Mutex
		succeeded []string
		failed    []string
	)
	batchDone := make(chan int64, 1)

	s.SetStoreDelegate(StoreDelegate{
		OnRecordSucceeded: func(guid string) {
			mu.Lock()
			succeeded = append(succeeded, guid)
			mu.Unlock()
		},
		OnRecordFailed: func(guid string, err error) {
			mu.Lock()
			failed = append(failed, guid)
			mu.Unlock()
		},
		OnBatchComplete: func(ts int64) { batchDone <- ts },
	})

	require.NoError(t, s.Store(ctx, rec("dup", 300, false, `{"a":3}`)))
	require.NoError(t, s.Store(ctx, rec("ok", 300, false, `{"a":4}`)))
	require.NoError(t, s.StoreDone(ctx))

	select {
	case <-batchDone:
	case <-time.After(5 * time.Second):
		t.Fatal("batch completion never arrived")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ok"}, succeeded)
	assert.Equal(t, []string{"dup"}, failed)
}

// ── StoreDone barrier ───────────────────────────────────────────────────────

// blockingStore delays Get until released, so in-flight stores can pile up
// behind the barrier.
type blockingStore struct {
	RecordStore
	release chan struct{}
}

func (b *blockingStore) Get(ctx context.Context, collection, guid string) (models.Record, error) {
	<-b.release
	return b.RecordStore.Get(ctx, collection, guid)
}

func TestSession_StoreDoneWaitsForAllRecordCallbacks(t *testing.T) {
	backend := &blockingStore{RecordStore: NewMemoryRecordStore(), release: make(chan struct{})}
	s := newActiveSession(t, backend, 0)

	var (
		mu    sync.Mutex
		order []string
	)
	done := make(chan struct{})

	s.SetStoreDelegate(StoreDelegate{
		OnRecordSucceeded: func(guid string) {
			mu.Lock()
			order = append(order, guid)
			mu.Unlock()
		},
		OnBatchComplete: func(int64) {
			mu.Lock()
			order = append(order, "batch")
			mu.Unlock()
			close(done)
		},
	})

	ctx := context.Background()
	for _, guid := range []string{"a", "b", "c"} {
		require.NoError(t, s.Store(ctx, rec(guid, 100, false, `{"x":1}`)))
	}
	require.NoError(t, s.StoreDone(ctx))

	// All three stores are still blocked; the batch callback must not have
	// fired yet.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order)
	mu.Unlock()

	close(backend.release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch completion never arrived")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.Equal(t, "batch", order[3], "batch callback must come after every record callback")
}

// ── Fetch ───────────────────────────────────────────────────────────────────

func TestSession_FetchSinceInclusive(t *testing.T) {
	backend := NewMemoryRecordStore()
	ctx := context.Background()

	for _, r := range []models.Record{
		rec("old", 99, false, `{"a":1}`),
		rec("edge", 100, false, `{"a":2}`),
		rec("new", 101, false, `{"a":3}`),
	} {
		_, err := backend.Insert(ctx, r)
		require.NoError(t, err)
	}

	s := newActiveSession(t, backend, 0)

	var got []string
	done := make(chan struct{})
	require.NoError(t, s.FetchSince(ctx, 100, FetchDelegate{
		OnFetched:  func(r models.Record) { got = append(got, r.GUID) },
		OnComplete: func(int64) { close(done) },
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch completion never arrived")
	}

	// The lower bound is inclusive.
	assert.ElementsMatch(t, []string{"edge", "new"}, got)
}

func TestSession_GUIDsSince(t *testing.T) {
	backend := NewMemoryRecordStore()
	ctx := context.Background()

	_, err := backend.Insert(ctx, rec("a", 50, false, `{"x":1}`))
	require.NoError(t, err)
	_, err = backend.Insert(ctx, rec("b", 150, false, `{"x":2}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 0)

	done := make(chan []string, 1)
	require.NoError(t, s.GUIDsSince(ctx, 100, GUIDsDelegate{
		OnComplete: func(guids []string) { done <- guids },
	}))

	select {
	case guids := <-done:
		assert.Equal(t, []string{"b"}, guids)
	case <-time.After(5 * time.Second):
		t.Fatal("guidsSince completion never arrived")
	}
}

func TestSession_Wipe(t *testing.T) {
	backend := NewMemoryRecordStore()
	ctx := context.Background()

	_, err := backend.Insert(ctx, rec("a", 50, false, `{"x":1}`))
	require.NoError(t, err)

	s := newActiveSession(t, backend, 0)

	done := make(chan struct{})
	require.NoError(t, s.Wipe(ctx, WipeDelegate{OnComplete: func() { close(done) }}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("wipe completion never arrived")
	}

	all, err := backend.All(ctx, "bookmarks")
	require.NoError(t, err)
	assert.Empty(t, all)
}

// ── Deferred delivery ───────────────────────────────────────────────────────

func TestSerialExecutor_PreservesSubmissionOrder(t *testing.T) {
	e := NewSerialExecutor()
	defer e.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		e.Submit(func() {
			mu.Lock()
			order = append(order, i)
			if len(order) == 100 {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("executor never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		require.Equal(t, i, v, "callbacks delivered out of order")
	}
}

func TestSession_CallbacksViaExecutor(t *testing.T) {
	backend := NewMemoryRecordStore()
	exec := NewSerialExecutor()
	defer exec.Close()

	s := NewRepositorySession("bookmarks", backend, 0, exec, logger.Nop())
	require.NoError(t, s.Begin())

	done := make(chan string, 1)
	s.SetStoreDelegate(StoreDelegate{
		OnRecordSucceeded: func(guid string) { done <- guid },
	})

	require.NoError(t, s.Store(context.Background(), rec("g", 1, false, `{"x":1}`)))

	select {
	case guid := <-done:
		assert.Equal(t, "g", guid)
	case <-time.After(5 * time.Second):
		t.Fatal("executor-delivered callback never arrived")
	}
}
