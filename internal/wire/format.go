// Package wire encodes and decodes the on-disk GDBM layout: the file
// header (standard and numsync variants, 32- or 64-bit offsets), the
// embedded and overflow avail blocks, and bucket records. All integers are
// little-endian native; nothing here ever byte-swaps a foreign-endian
// file, it only recognizes the magic and rejects what it cannot read.
package wire

import "fmt"

// Magic numbers, unchanged from the original engine's on-disk contract.
const (
	MagicOld      uint32 = 0x13579ace
	MagicStd32    uint32 = 0x13579acd
	MagicStd64    uint32 = 0x13579acf
	MagicNumsync32 uint32 = 0x13579ad0
	MagicNumsync64 uint32 = 0x13579ad1

	// swapped variants: a file written on a foreign-endian host. These are
	// recognized only so Open can report BadMagicNumber with a clear
	// "byte-swapped" classification instead of a generic parse failure.
	magicOldSwapped      uint32 = 0xce7a5713
	magicStd32Swapped    uint32 = 0xcd7a5713
	magicStd64Swapped    uint32 = 0xcf7a5713
	magicNumsync32Swapped uint32 = 0xd07a5713
	magicNumsync64Swapped uint32 = 0xd17a5713
)

// HashBits is the width of the mixing hash; only the top bits are ever
// used to index the directory.
const HashBits = 31

// MinBlockSize is the smallest block size a new database is created with;
// createFresh raises smaller requested sizes to it.
const MinBlockSize = 512

// IgnoreSize is the largest extent Free treats as not worth tracking.
const IgnoreSize = 4

// BucketAvail is the number of distributed avail slots carried in every
// bucket header.
const BucketAvail = 6

// keyStartBytes is how many leading key bytes are cached inline in a
// bucket slot for the probe fast path (the original SMALL constant).
const keyStartBytes = 4

// OffsetWidth returns 4 or 8, the width of on-disk offset fields for the
// given magic, or 0 if magic is not recognized at all.
func OffsetWidth(magic uint32) int {
	switch magic {
	case MagicOld, MagicStd32, MagicNumsync32:
		return 4
	case MagicStd64, MagicNumsync64:
		return 8
	default:
		return 0
	}
}

// IsNumsync reports whether magic selects the numsync format.
func IsNumsync(magic uint32) bool {
	return magic == MagicNumsync32 || magic == MagicNumsync64
}

// IsSwapped reports whether magic is a recognized value written by a
// foreign-endian host.
func IsSwapped(magic uint32) bool {
	switch magic {
	case magicOldSwapped, magicStd32Swapped, magicStd64Swapped, magicNumsync32Swapped, magicNumsync64Swapped:
		return true
	default:
		return false
	}
}

// IsKnownMagic reports whether magic is any recognized native-endian value.
func IsKnownMagic(magic uint32) bool {
	return OffsetWidth(magic) != 0
}

// DefaultMagic picks the magic for a freshly created database: 64-bit
// offsets always, numsync format only if requested.
func DefaultMagic(numsync bool) uint32 {
	if numsync {
		return MagicNumsync64
	}

	return MagicStd64
}

// AvailElemSize returns the on-disk size of one avail table entry.
func AvailElemSize(offWidth int) int { return 4 + offWidth }

// AvailBlockHeaderSize returns the fixed portion of an avail block/table:
// size, count, next_block.
func AvailBlockHeaderSize(offWidth int) int { return 4 + 4 + offWidth }

// HeaderFixedSize returns the size, in bytes, of the header fields before
// the (optional) numsync extension and the embedded avail block:
// magic, block_size, dir_offset, dir_size, dir_bits, bucket_size,
// bucket_elems, next_block.
func HeaderFixedSize(offWidth int) int {
	return 4 + 4 + offWidth + 4 + 4 + 4 + 4 + offWidth
}

// NumsyncExtSize is the fixed size of the numsync extension header:
// version(4) + numsync(4) + 24 bytes reserved padding.
const NumsyncExtSize = 4 + 4 + 24

// BucketElemSize returns the on-disk size of one hash-table slot in a
// bucket: hash(4) + key_start(4) + data_pointer(offWidth) + key_size(4) +
// data_size(4).
func BucketElemSize(offWidth int) int { return 4 + keyStartBytes + offWidth + 4 + 4 }

// BucketFixedSize returns the size of a bucket's fixed header as
// EncodeBucket writes it: the bucket's avail table as a full avail block
// (size, count, next_block, then BucketAvail entries), followed by
// bucket_bits(4) and count(4).
func BucketFixedSize(offWidth int) int {
	return AvailBlockHeaderSize(offWidth) + BucketAvail*AvailElemSize(offWidth) + 4 + 4
}

// BucketElems derives how many hash-table slots fit in bucketSize bytes.
func BucketElems(bucketSize, offWidth int) (int, error) {
	avail := bucketSize - BucketFixedSize(offWidth)
	if avail <= 0 {
		return 0, fmt.Errorf("wire: bucket_size %d too small for offset width %d", bucketSize, offWidth)
	}

	n := avail / BucketElemSize(offWidth)
	if n < 1 {
		return 0, fmt.Errorf("wire: bucket_size %d yields zero bucket_elems", bucketSize)
	}

	return n, nil
}

// HeaderAvailCapacity derives how many avail entries fit in the header's
// embedded avail block, after the fixed header fields (and, for numsync,
// the extension header) are accounted for within one block.
func HeaderAvailCapacity(blockSize, offWidth int, numsync bool) (int, error) {
	used := HeaderFixedSize(offWidth)
	if numsync {
		used += NumsyncExtSize
	}

	used += AvailBlockHeaderSize(offWidth)

	remain := blockSize - used
	if remain <= 0 {
		return 0, fmt.Errorf("wire: block_size %d too small to hold a header", blockSize)
	}

	n := remain / AvailElemSize(offWidth)
	if n < 1 {
		return 0, fmt.Errorf("wire: block_size %d yields zero header avail capacity", blockSize)
	}

	return n, nil
}

func align(size, block int64) int64 {
	if block <= 0 {
		return size
	}

	rem := size % block
	if rem == 0 {
		return size
	}

	return size + (block - rem)
}

// NextPow2 returns the smallest power of two >= x.
func NextPow2(x uint64) uint64 {
	if x == 0 {
		return 1
	}

	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32

	return x + 1
}

// RoundUpBlock rounds size up to the next multiple of blockSize.
func RoundUpBlock(size, blockSize int64) int64 { return align(size, blockSize) }
