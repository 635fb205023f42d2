package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

func TestBucketEncodeDecodeRoundTrip(t *testing.T) {
	for _, offWidth := range []int{4, 8} {
		b := wire.NewBucket(8, 2)
		b.Count = 1
		b.Table[0] = wire.BucketElem{
			HashValue:   12345,
			DataPointer: 4096,
			KeySize:     3,
			DataSize:    5,
		}
		copy(b.Table[0].KeyStart[:], "key")

		buf, err := wire.EncodeBucket(b, offWidth, 1024)
		require.NoError(t, err)

		got, err := wire.DecodeBucket(buf, offWidth, 8)
		require.NoError(t, err)

		require.Equal(t, b.BucketBits, got.BucketBits)
		require.Equal(t, b.Count, got.Count)
		require.Equal(t, b.Table[0].HashValue, got.Table[0].HashValue)
		require.Equal(t, b.Table[0].DataPointer, got.Table[0].DataPointer)
		require.Equal(t, b.Table[0].KeySize, got.Table[0].KeySize)
		require.Equal(t, b.Table[0].DataSize, got.Table[0].DataSize)
		require.True(t, got.Table[1].Empty())
	}
}

func TestEncodeBucketRejectsTooSmallBucketSize(t *testing.T) {
	b := wire.NewBucket(64, 0)

	_, err := wire.EncodeBucket(b, 8, 16)
	require.Error(t, err)
}

func TestOffsetWidth(t *testing.T) {
	require.Equal(t, 4, wire.OffsetWidth(wire.MagicOld))
	require.Equal(t, 4, wire.OffsetWidth(wire.MagicStd32))
	require.Equal(t, 8, wire.OffsetWidth(wire.MagicStd64))
	require.Equal(t, 4, wire.OffsetWidth(wire.MagicNumsync32))
	require.Equal(t, 8, wire.OffsetWidth(wire.MagicNumsync64))
	require.Equal(t, 0, wire.OffsetWidth(0xdeadbeef))
}

func TestIsNumsync(t *testing.T) {
	require.True(t, wire.IsNumsync(wire.MagicNumsync32))
	require.True(t, wire.IsNumsync(wire.MagicNumsync64))
	require.False(t, wire.IsNumsync(wire.MagicStd64))
}

func TestIsKnownMagic(t *testing.T) {
	require.True(t, wire.IsKnownMagic(wire.MagicStd64))
	require.False(t, wire.IsKnownMagic(0x12345678))
}

func TestHashIsDeterministic(t *testing.T) {
	h1 := wire.Hash([]byte("same key"))
	h2 := wire.Hash([]byte("same key"))
	require.Equal(t, h1, h2)

	h3 := wire.Hash([]byte("different key"))
	require.NotEqual(t, h1, h3)
}
