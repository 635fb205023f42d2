package gdbm_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm"
)

func openFresh(t *testing.T) (*gdbm.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.gdbm")

	db, err := gdbm.Open(path, gdbm.OpenOptions{Flags: gdbm.NewDB})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db, path
}

func TestStoreFetchRoundTrip(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.Store([]byte("alpha"), []byte("one"), gdbm.Replace))

	got, err := db.Fetch([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)
}

func TestFetchMissingReturnsItemNotFound(t *testing.T) {
	db, _ := openFresh(t)

	_, err := db.Fetch([]byte("missing"))
	require.Error(t, err)

	var gerr *gdbm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gdbm.ItemNotFound, gerr.Code)
}

func TestStoreInsertRejectsExisting(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.Store([]byte("k"), []byte("v1"), gdbm.Insert))

	err := db.Store([]byte("k"), []byte("v2"), gdbm.Insert)
	require.Error(t, err)

	var gerr *gdbm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gdbm.CannotReplace, gerr.Code)

	got, err := db.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
}

func TestStoreReplaceOverwrites(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.Store([]byte("k"), []byte("v1"), gdbm.Replace))
	require.NoError(t, db.Store([]byte("k"), []byte("v2-longer-value"), gdbm.Replace))

	got, err := db.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2-longer-value"), got)
}

func TestExistsAndDelete(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.Store([]byte("k"), []byte("v"), gdbm.Replace))

	ok, err := db.Exists([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("k")))

	ok, err = db.Exists([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)

	err = db.Delete([]byte("k"))
	require.Error(t, err)

	var gerr *gdbm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gdbm.ItemNotFound, gerr.Code)
}

func TestIterationVisitsEveryKey(t *testing.T) {
	db, _ := openFresh(t)

	want := map[string]string{
		"k1": "v1",
		"k2": "v2",
		"k3": "v3",
		"k4": "v4",
	}

	for k, v := range want {
		require.NoError(t, db.Store([]byte(k), []byte(v), gdbm.Replace))
	}

	got := map[string]string{}

	key, err := db.FirstKey()
	for err == nil {
		data, ferr := db.Fetch(key)
		require.NoError(t, ferr)

		got[string(key)] = string(data)

		key, err = db.NextKey(key)
	}

	var gerr *gdbm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gdbm.ItemNotFound, gerr.Code)

	require.Equal(t, want, got)
}

func TestCount(t *testing.T) {
	db, _ := openFresh(t)

	n, err := db.Count()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	for i := 0; i < 50; i++ {
		require.NoError(t, db.Store([]byte{byte(i)}, []byte("v"), gdbm.Replace))
	}

	n, err = db.Count()
	require.NoError(t, err)
	require.Equal(t, int64(50), n)
}

func TestManyKeysSurviveDirectorySplits(t *testing.T) {
	db, _ := openFresh(t)

	const n = 500

	for i := 0; i < n; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		require.NoError(t, db.Store(k, bytes.Repeat([]byte{byte(i)}, 37), gdbm.Replace))
	}

	for i := 0; i < n; i++ {
		k := []byte{byte(i), byte(i >> 8)}

		got, err := db.Fetch(k)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{byte(i)}, 37), got)
	}

	count, err := db.Count()
	require.NoError(t, err)
	require.Equal(t, int64(n), count)
}

func TestReaderCannotWrite(t *testing.T) {
	_, path := openFresh(t)

	db, err := gdbm.Open(path, gdbm.OpenOptions{Flags: gdbm.Reader})
	require.NoError(t, err)
	defer db.Close()

	err = db.Store([]byte("k"), []byte("v"), gdbm.Replace)
	require.Error(t, err)
}

func TestCloseAndReopenPreservesData(t *testing.T) {
	db, path := openFresh(t)

	require.NoError(t, db.Store([]byte("persist"), []byte("me"), gdbm.Replace))
	require.NoError(t, db.Close())

	reopened, err := gdbm.Open(path, gdbm.OpenOptions{Flags: gdbm.Writer})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Fetch([]byte("persist"))
	require.NoError(t, err)
	require.Equal(t, []byte("me"), got)
}
