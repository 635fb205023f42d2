package wire

import (
	"encoding/binary"
	"fmt"
)

// EmptyHash marks an unoccupied bucket slot.
const EmptyHash int32 = -1

// BucketElem is one slot in a bucket's hash table.
type BucketElem struct {
	HashValue   int32 // -1 when empty
	KeyStart    [keyStartBytes]byte
	DataPointer int64
	KeySize     int32
	DataSize    int32
}

// Empty reports whether the slot is unoccupied.
func (e *BucketElem) Empty() bool { return e.HashValue == EmptyHash }

// Bucket is the in-memory image of one hash bucket: its local depth, the
// occupied-slot count, the fixed-size hash table, and its small
// distributed avail table.
type Bucket struct {
	BucketBits int32
	Count      int32
	Table      []BucketElem
	Avail      AvailTable // Capacity is always BucketAvail
}

// NewBucket allocates a fresh, all-empty bucket with elems slots and the
// given local depth.
func NewBucket(elems int, bucketBits int32) *Bucket {
	b := &Bucket{
		BucketBits: bucketBits,
		Table:      make([]BucketElem, elems),
		Avail:      AvailTable{Capacity: BucketAvail},
	}

	for i := range b.Table {
		b.Table[i].HashValue = EmptyHash
	}

	return b
}

// EncodeBucket serializes b to a fixed-size buffer of exactly bucketSize
// bytes (the trailing bytes beyond the used slots are zero-padding,
// matching the original fixed-record-size bucket layout).
func EncodeBucket(b *Bucket, offWidth, bucketSize int) ([]byte, error) {
	need := BucketFixedSize(offWidth) + len(b.Table)*BucketElemSize(offWidth)
	if need > bucketSize {
		return nil, fmt.Errorf("wire: bucket with %d elems needs %d bytes, exceeds bucket_size %d", len(b.Table), need, bucketSize)
	}

	buf := make([]byte, bucketSize)
	off := 0

	off += encodeAvailBlock(buf[off:], offWidth, b.Avail)

	binary.LittleEndian.PutUint32(buf[off:], uint32(b.BucketBits))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(b.Count))
	off += 4

	for _, e := range b.Table {
		binary.LittleEndian.PutUint32(buf[off:], uint32(e.HashValue))
		off += 4
		copy(buf[off:off+keyStartBytes], e.KeyStart[:])
		off += keyStartBytes
		off += putOff(buf[off:], offWidth, e.DataPointer)
		binary.LittleEndian.PutUint32(buf[off:], uint32(e.KeySize))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(e.DataSize))
		off += 4
	}

	return buf, nil
}

// DecodeBucket parses a bucket image of bucketSize bytes into elems slots.
func DecodeBucket(buf []byte, offWidth, elems int) (*Bucket, error) {
	avail, consumed, err := decodeAvailBlock(buf, offWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: bucket avail: %w", err)
	}

	if avail.Capacity != BucketAvail {
		return nil, fmt.Errorf("wire: bucket avail capacity %d != %d", avail.Capacity, BucketAvail)
	}

	off := consumed

	need := off + 8 + elems*BucketElemSize(offWidth)
	if len(buf) < need {
		return nil, fmt.Errorf("wire: bucket buffer too short: have %d need %d", len(buf), need)
	}

	b := &Bucket{Avail: avail}

	b.BucketBits = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	b.Count = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	b.Table = make([]BucketElem, elems)

	for i := 0; i < elems; i++ {
		var e BucketElem

		e.HashValue = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		copy(e.KeyStart[:], buf[off:off+keyStartBytes])
		off += keyStartBytes
		e.DataPointer = getOff(buf[off:], offWidth)
		off += offWidth
		e.KeySize = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		e.DataSize = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4

		b.Table[i] = e
	}

	return b, nil
}
