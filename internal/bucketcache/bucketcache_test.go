package bucketcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm/internal/bucketcache"
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

func bucket(depth int32) *wire.Bucket {
	return wire.NewBucket(8, depth)
}

func TestPutAndGet(t *testing.T) {
	c := bucketcache.New(4)

	b := bucket(1)
	_, evicted := c.Put(100, b, true)
	require.False(t, evicted)

	got, ok := c.Get(100)
	require.True(t, ok)
	require.Same(t, b, got)
}

func TestGetMissing(t *testing.T) {
	c := bucketcache.New(4)

	_, ok := c.Get(999)
	require.False(t, ok)
}

func TestPutEvictsLeastRecentlyUsed(t *testing.T) {
	c := bucketcache.New(2)

	c.Put(1, bucket(0), false)
	c.Put(2, bucket(0), false)

	// touch 1 so 2 becomes the LRU victim
	_, _ = c.Get(1)

	ev, evicted := c.Put(3, bucket(0), false)
	require.True(t, evicted)
	require.Equal(t, int64(2), ev.Offset)

	_, ok := c.Get(2)
	require.False(t, ok)

	_, ok = c.Get(1)
	require.True(t, ok)

	_, ok = c.Get(3)
	require.True(t, ok)
}

func TestMarkDirtyAndFlush(t *testing.T) {
	c := bucketcache.New(4)

	c.Put(10, bucket(0), false)
	c.MarkDirty(10)

	var flushed []int64

	err := c.Flush(func(offset int64, b *wire.Bucket) error {
		flushed = append(flushed, offset)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{10}, flushed)

	// second flush writes nothing: dirty flag was cleared
	flushed = nil
	err = c.Flush(func(offset int64, b *wire.Bucket) error {
		flushed = append(flushed, offset)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, flushed)
}

func TestDeleteDropsEntryWithoutFlush(t *testing.T) {
	c := bucketcache.New(4)

	c.Put(5, bucket(0), true)
	c.Delete(5)

	_, ok := c.Get(5)
	require.False(t, ok)

	require.Equal(t, 0, c.Len())
}

func TestPutReplacesExistingEntryInPlace(t *testing.T) {
	c := bucketcache.New(4)

	b1 := bucket(0)
	b2 := bucket(1)

	c.Put(1, b1, false)
	_, evicted := c.Put(1, b2, true)
	require.False(t, evicted)

	got, ok := c.Get(1)
	require.True(t, ok)
	require.Same(t, b2, got)
	require.Equal(t, 1, c.Len())
}

func TestResizeShrinkEvictsLeastRecentlyUsedFirst(t *testing.T) {
	c := bucketcache.New(4)

	c.Put(1, bucket(0), true)
	c.Put(2, bucket(0), true)
	c.Put(3, bucket(0), true)
	c.Put(4, bucket(0), true)

	// touch 1 so it's most-recently-used and must survive the shrink
	_, _ = c.Get(1)

	evicted := c.Resize(2)
	require.Len(t, evicted, 2)

	var offsets []int64
	for _, e := range evicted {
		offsets = append(offsets, e.Offset)
	}

	require.ElementsMatch(t, []int64{2, 3}, offsets)

	_, ok := c.Get(1)
	require.True(t, ok, "most-recently-used entry must survive a shrink")

	_, ok = c.Get(4)
	require.True(t, ok)

	require.Equal(t, 2, c.Len())
}

func TestResizeGrowKeepsAllEntries(t *testing.T) {
	c := bucketcache.New(2)

	c.Put(1, bucket(0), false)
	c.Put(2, bucket(0), false)

	evicted := c.Resize(10)
	require.Empty(t, evicted)
	require.Equal(t, 2, c.Len())

	// the larger capacity should now admit more entries without eviction
	_, wasEvicted := c.Put(3, bucket(0), false)
	require.False(t, wasEvicted)
	require.Equal(t, 3, c.Len())
}

func TestFlushOrderIsLRUToMRU(t *testing.T) {
	c := bucketcache.New(10)

	c.Put(1, bucket(0), true)
	c.Put(2, bucket(0), true)
	c.Put(3, bucket(0), true)

	var order []int64

	err := c.Flush(func(offset int64, b *wire.Bucket) error {
		order = append(order, offset)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, order)
}
