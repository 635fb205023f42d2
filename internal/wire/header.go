package wire

import (
	"encoding/binary"
	"fmt"
)

// AvailElem is one (size, offset) free-space descriptor.
type AvailElem struct {
	Size   int32
	Offset int64
}

// AvailTable is a sorted-by-size-ascending collection of AvailElem, either
// the header-resident table or an overflow block's table. Capacity is how
// many entries the on-disk block reserves room for; Elems holds the live
// ones, len(Elems) <= Capacity.
type AvailTable struct {
	Capacity  int32
	NextBlock int64 // 0 means "no further overflow block"
	Elems     []AvailElem
}

// Header is the in-memory, offset-width-independent representation of the
// file header plus its embedded avail table.
type Header struct {
	Magic       uint32
	BlockSize   int32
	DirOffset   int64
	DirSize     int32
	DirBits     int32
	BucketSize  int32
	BucketElems int32
	NextBlock   int64
	Avail       AvailTable

	Numsync   bool
	Version   int32
	SyncCount int32
}

// OffWidth reports the on-disk offset width implied by the header's magic.
func (h *Header) OffWidth() int { return OffsetWidth(h.Magic) }

// EncodedSize returns the number of bytes EncodeHeader writes, which is
// always <= BlockSize (validated by the caller at open/create time).
func (h *Header) EncodedSize() int {
	w := h.OffWidth()
	size := HeaderFixedSize(w)

	if h.Numsync {
		size += NumsyncExtSize
	}

	size += AvailBlockHeaderSize(w) + len(h.Avail.Elems)*AvailElemSize(w)

	return size
}

// EncodeHeader serializes h. The embedded avail table is written with
// capacity h.Avail.Capacity entries worth of room reserved (the trailing
// unused entries are left zeroed), matching the original fixed-size
// in-block avail layout.
func EncodeHeader(h *Header) ([]byte, error) {
	w := h.OffWidth()
	if w == 0 {
		return nil, fmt.Errorf("wire: unknown magic 0x%x", h.Magic)
	}

	total := HeaderFixedSize(w)
	if h.Numsync {
		total += NumsyncExtSize
	}

	total += AvailBlockHeaderSize(w) + int(h.Avail.Capacity)*AvailElemSize(w)

	buf := make([]byte, total)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], h.Magic)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.BlockSize))
	off += 4
	off += putOff(buf[off:], w, h.DirOffset)
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.DirSize))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.DirBits))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.BucketSize))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.BucketElems))
	off += 4
	off += putOff(buf[off:], w, h.NextBlock)

	if h.Numsync {
		binary.LittleEndian.PutUint32(buf[off:], uint32(h.Version))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(h.SyncCount))
		off += 4
		off += 24 // reserved padding, left zero
	}

	off += encodeAvailBlock(buf[off:], w, h.Avail)

	return buf, nil
}

// DecodeHeader parses buf (which must be at least HeaderFixedSize(w)+4
// bytes, enough to read the magic and determine w) into a Header. It does
// not validate field values beyond what is needed to decode; semantic
// validation (bounds, consistency) is the open path's job.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("wire: header buffer too short to read magic")
	}

	magic := binary.LittleEndian.Uint32(buf)

	w := OffsetWidth(magic)
	if w == 0 {
		return nil, fmt.Errorf("wire: unrecognized magic 0x%x", magic)
	}

	fixed := HeaderFixedSize(w)
	if len(buf) < fixed {
		return nil, fmt.Errorf("wire: header buffer shorter than fixed header (%d < %d)", len(buf), fixed)
	}

	h := &Header{Magic: magic, Numsync: IsNumsync(magic)}

	off := 4
	h.BlockSize = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.DirOffset = getOff(buf[off:], w)
	off += w
	h.DirSize = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.DirBits = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.BucketSize = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.BucketElems = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.NextBlock = getOff(buf[off:], w)
	off += w

	if h.Numsync {
		if len(buf) < off+NumsyncExtSize {
			return nil, fmt.Errorf("wire: header buffer too short for numsync extension")
		}

		h.Version = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		h.SyncCount = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		off += 24
	}

	avail, n, err := decodeAvailBlock(buf[off:], w)
	if err != nil {
		return nil, err
	}

	h.Avail = avail
	_ = n

	return h, nil
}

func encodeAvailBlock(buf []byte, w int, t AvailTable) int {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(t.Capacity))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(t.Elems)))
	off += 4
	off += putOff(buf[off:], w, t.NextBlock)

	for _, e := range t.Elems {
		binary.LittleEndian.PutUint32(buf[off:], uint32(e.Size))
		off += 4
		off += putOff(buf[off:], w, e.Offset)
	}

	return int(t.Capacity)*AvailElemSize(w) + AvailBlockHeaderSize(w)
}

func decodeAvailBlock(buf []byte, w int) (AvailTable, int, error) {
	hdr := AvailBlockHeaderSize(w)
	if len(buf) < hdr {
		return AvailTable{}, 0, fmt.Errorf("wire: avail block buffer too short")
	}

	off := 0
	capacity := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	count := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	next := getOff(buf[off:], w)
	off += w

	if count < 0 || int(count) > int(capacity) {
		return AvailTable{}, 0, fmt.Errorf("wire: avail count %d exceeds capacity %d", count, capacity)
	}

	need := hdr + int(capacity)*AvailElemSize(w)
	if len(buf) < need {
		return AvailTable{}, 0, fmt.Errorf("wire: avail block buffer shorter than capacity requires")
	}

	elems := make([]AvailElem, 0, count)

	for i := int32(0); i < count; i++ {
		size := int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		offset := getOff(buf[off:], w)
		off += w

		elems = append(elems, AvailElem{Size: size, Offset: offset})
	}

	return AvailTable{Capacity: capacity, NextBlock: next, Elems: elems}, need, nil
}

// EncodeAvailBlock serializes a standalone overflow avail block (same wire
// shape as the header-embedded one, used for push/pop_avail_block).
func EncodeAvailBlock(w int, t AvailTable) []byte {
	buf := make([]byte, AvailBlockHeaderSize(w)+int(t.Capacity)*AvailElemSize(w))
	encodeAvailBlock(buf, w, t)

	return buf
}

// DecodeAvailBlock parses a standalone overflow avail block.
func DecodeAvailBlock(buf []byte, w int) (AvailTable, error) {
	t, _, err := decodeAvailBlock(buf, w)
	return t, err
}

func putOff(buf []byte, w int, v int64) int {
	if w == 4 {
		binary.LittleEndian.PutUint32(buf, uint32(v))
	} else {
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}

	return w
}

func getOff(buf []byte, w int) int64 {
	if w == 4 {
		return int64(binary.LittleEndian.Uint32(buf))
	}

	return int64(binary.LittleEndian.Uint64(buf))
}
