package wire

// Hash mixes key into a fixed 31-bit non-negative value. hash.c (the
// original engine's bucket hash) was not part of the retrieved reference
// sources for this rewrite; FNV-1a is used instead and masked to 31 bits,
// which satisfies every invariant the rest of the engine depends on (a
// fixed, deterministic, roughly-uniform mixing function whose top bits
// index the directory) without guessing at undocumented bit-twiddling.
func Hash(key []byte) int32 {
	var h uint64 = 0xcbf29ce484222325

	for _, b := range key {
		h ^= uint64(b)
		h *= 0x100000001b3
	}

	// Fold the 64-bit digest down to 31 bits rather than simply masking,
	// so high-order entropy still influences the low bits that dir_bits
	// selects from first during small directories.
	folded := uint32(h) ^ uint32(h>>32)

	return int32(folded & 0x7fffffff)
}

// DirIndex returns the directory slot for hash h at depth dirBits: the
// top dirBits bits of the 31-bit hash.
func DirIndex(h int32, dirBits int32) int64 {
	if dirBits == 0 {
		return 0
	}

	return int64(uint32(h) >> uint(HashBits-int(dirBits)))
}

// BucketBitPrefix returns the bit of h at position (HashBits - bucketBits),
// the bit the split partitions entries on.
func BucketBitPrefix(h int32, bucketBits int32) uint32 {
	if bucketBits == 0 {
		return 0
	}

	return (uint32(h) >> uint(HashBits-int(bucketBits))) & 1
}
