package gdbm_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm"
)

func TestSetOptCachesize(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.SetOpt(gdbm.OptCachesize, 64))

	n, err := db.GetOpt(gdbm.OptCachesize)
	require.NoError(t, err)
	require.Equal(t, 0, n) // nothing loaded into the cache yet

	require.NoError(t, db.Store([]byte("k"), []byte("v"), gdbm.Replace))

	_, err = db.Fetch([]byte("k"))
	require.NoError(t, err)
}

func TestSetOptCachesizeRejectsNonPositive(t *testing.T) {
	db, _ := openFresh(t)

	err := db.SetOpt(gdbm.OptCachesize, 0)
	require.Error(t, err)

	var gerr *gdbm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gdbm.OptBadVal, gerr.Code)
}

func TestSetOptCoalesceAndCentralFree(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.SetOpt(gdbm.OptCoalesceBlocks, 1))

	n, err := db.GetOpt(gdbm.OptCoalesceBlocks)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, db.SetOpt(gdbm.OptCentralFreeBlocks, 1))

	n, err = db.GetOpt(gdbm.OptCentralFreeBlocks)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestGetOptReadOnlyGeometryCodes(t *testing.T) {
	db, _ := openFresh(t)

	blockSize, err := db.GetOpt(gdbm.OptBlockSize)
	require.NoError(t, err)
	require.Positive(t, blockSize)

	dirDepth, err := db.GetOpt(gdbm.OptDirDepth)
	require.NoError(t, err)
	require.GreaterOrEqual(t, dirDepth, 0)

	bucketSize, err := db.GetOpt(gdbm.OptBucketSize)
	require.NoError(t, err)
	require.Positive(t, bucketSize)

	flags, err := db.GetOpt(gdbm.OptOpenFlags)
	require.NoError(t, err)
	require.Equal(t, int(gdbm.NewDB), flags)

	format, err := db.GetOpt(gdbm.OptDBFormat)
	require.NoError(t, err)
	require.Equal(t, 1, format) // standard format, not old and not numsync

	// read-only codes reject SetOpt
	require.Error(t, db.SetOpt(gdbm.OptBlockSize, 4096))
}

func TestGetOptDBFormatReportsNumsync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numsync.gdbm")

	db, err := gdbm.Open(path, gdbm.OpenOptions{Flags: gdbm.NewDB | gdbm.Numsync})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	format, err := db.GetOpt(gdbm.OptDBFormat)
	require.NoError(t, err)
	require.Equal(t, 2, format)
}

func TestGetOptStringDBName(t *testing.T) {
	db, path := openFresh(t)

	name, err := db.GetOptString(gdbm.OptDBName)
	require.NoError(t, err)
	require.Equal(t, path, name)

	_, err = db.GetOptString(gdbm.OptCachesize)
	require.Error(t, err)
}

func TestSetOptAutoCacheAndMmapEnable(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.SetOpt(gdbm.OptAutoCache, 1))

	n, err := db.GetOpt(gdbm.OptAutoCache)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, db.SetOpt(gdbm.OptMmapEnable, 0))

	n, err = db.GetOpt(gdbm.OptMmapEnable)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSetOptUnknownCodeRejected(t *testing.T) {
	db, _ := openFresh(t)

	err := db.SetOpt(gdbm.OptCode(999), 1)
	require.Error(t, err)

	var gerr *gdbm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gdbm.OptBadVal, gerr.Code)
}

func TestSetOptCachesizeShrinkKeepsMostRecentlyUsedBucket(t *testing.T) {
	db, _ := openFresh(t)

	require.NoError(t, db.SetOpt(gdbm.OptCachesize, 8))

	// force several buckets into the cache via splits, then touch one
	// key last so its bucket is most-recently-used
	for i := 0; i < 200; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		require.NoError(t, db.Store(key, []byte("v"), gdbm.Replace))
	}

	lastKey := []byte{199, 0}
	_, err := db.Fetch(lastKey)
	require.NoError(t, err)

	require.NoError(t, db.SetOpt(gdbm.OptCachesize, 1))

	// the most-recently-fetched key's bucket must still be reachable and
	// correct after shrinking the cache down to one slot
	got, err := db.Fetch(lastKey)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}
