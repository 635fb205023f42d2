package wire

import (
	"fmt"
)

// EncodeDirectory serializes a packed array of bucket offsets.
func EncodeDirectory(offWidth int, entries []int64) []byte {
	buf := make([]byte, len(entries)*offWidth)

	for i, e := range entries {
		putOff(buf[i*offWidth:], offWidth, e)
	}

	return buf
}

// DecodeDirectory parses a packed array of n bucket offsets.
func DecodeDirectory(buf []byte, offWidth, n int) ([]int64, error) {
	need := n * offWidth
	if len(buf) < need {
		return nil, fmt.Errorf("wire: directory buffer too short: have %d need %d", len(buf), need)
	}

	entries := make([]int64, n)
	for i := range entries {
		entries[i] = getOff(buf[i*offWidth:], offWidth)
	}

	return entries, nil
}

// DirSizeBytes is the on-disk size of a directory with 2^dirBits entries.
func DirSizeBytes(dirBits, offWidth int) int64 {
	return int64(1<<uint(dirBits)) * int64(offWidth)
}
