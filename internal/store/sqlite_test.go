package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

func openTestStore(t *testing.T) RecordStore {
	t.Helper()

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "records.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLiteRecordStore(db)
}

func TestSQLiteStore_InsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := rec("g1", 1500, false, `{"title":"a","url":"https://example.com"}`)
	want.SortIndex = 42
	want.TTL = 3600

	localID, err := s.Insert(ctx, want)
	require.NoError(t, err)
	assert.NotZero(t, localID)

	got, err := s.Get(ctx, "bookmarks", "g1")
	require.NoError(t, err)
	assert.Equal(t, localID, got.LocalID)
	assert.Equal(t, "g1", got.GUID)
	assert.Equal(t, "bookmarks", got.Collection)
	assert.Equal(t, int64(1500), got.LastModified)
	assert.Equal(t, int64(42), got.SortIndex)
	assert.Equal(t, int64(3600), got.TTL)
	assert.JSONEq(t, string(want.Fields), string(got.Fields))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "bookmarks", "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSQLiteStore_GetDuplicateGUID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// The schema carries no unique (collection, guid) constraint on purpose:
	// duplicates must surface as an integrity error, not be silently masked.
	_, err := s.Insert(ctx, rec("dup", 100, false, `{"a":1}`))
	require.NoError(t, err)
	_, err = s.Insert(ctx, rec("dup", 200, false, `{"a":2}`))
	require.NoError(t, err)

	_, err = s.Get(ctx, "bookmarks", "dup")
	assert.ErrorIs(t, err, ErrDuplicateGUID)
}

func TestSQLiteStore_Update(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	localID, err := s.Insert(ctx, rec("g", 100, false, `{"title":"old"}`))
	require.NoError(t, err)

	updated := rec("g", 300, false, `{"title":"new"}`)
	updated.LocalID = localID
	require.NoError(t, s.Update(ctx, updated))

	got, err := s.Get(ctx, "bookmarks", "g")
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.LastModified)
	assert.JSONEq(t, `{"title":"new"}`, string(got.Fields))

	missing := rec("ghost", 1, false, `{"a":1}`)
	missing.LocalID = 99999
	assert.ErrorIs(t, s.Update(ctx, missing), ErrRecordNotFound)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, rec("g", 100, false, `{"a":1}`))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "bookmarks", "g"))
	_, err = s.Get(ctx, "bookmarks", "g")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "bookmarks", "g"), ErrRecordNotFound)
}

func TestSQLiteStore_SinceIsInclusive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []models.Record{
		rec("old", 99, false, `{"a":1}`),
		rec("edge", 100, false, `{"a":2}`),
		rec("new", 101, false, `{"a":3}`),
	} {
		_, err := s.Insert(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.Since(ctx, "bookmarks", 100)
	require.NoError(t, err)

	guids := make([]string, 0, len(got))
	for _, r := range got {
		guids = append(guids, r.GUID)
	}
	assert.ElementsMatch(t, []string{"edge", "new"}, guids)

	onlyGUIDs, err := s.GUIDsSince(ctx, "bookmarks", 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"edge", "new"}, onlyGUIDs)
}

func TestSQLiteStore_ByGUIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []models.Record{
		rec("a", 1, false, `{"n":1}`),
		rec("b", 2, false, `{"n":2}`),
		rec("c", 3, false, `{"n":3}`),
	} {
		_, err := s.Insert(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.ByGUIDs(ctx, "bookmarks", []string{"a", "c", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// A duplicated guid within the requested set is an integrity error.
	_, err = s.Insert(ctx, rec("a", 4, false, `{"n":4}`))
	require.NoError(t, err)
	_, err = s.ByGUIDs(ctx, "bookmarks", []string{"a"})
	assert.ErrorIs(t, err, ErrDuplicateGUID)
}

func TestSQLiteStore_CollectionsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bookmark := rec("same-guid", 100, false, `{"kind":"bookmark"}`)
	history := rec("same-guid", 200, false, `{"kind":"history"}`)
	history.Collection = "history"

	_, err := s.Insert(ctx, bookmark)
	require.NoError(t, err)
	_, err = s.Insert(ctx, history)
	require.NoError(t, err)

	got, err := s.Get(ctx, "history", "same-guid")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.LastModified)

	require.NoError(t, s.Wipe(ctx, "history"))

	_, err = s.Get(ctx, "history", "same-guid")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = s.Get(ctx, "bookmarks", "same-guid")
	assert.NoError(t, err)
}

func TestSQLiteStore_TombstonePersists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tomb := rec("gone", 500, true, "")
	_, err := s.Insert(ctx, tomb)
	require.NoError(t, err)

	got, err := s.Get(ctx, "bookmarks", "gone")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Empty(t, got.Fields)
}
