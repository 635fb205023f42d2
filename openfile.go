package gdbm

import (
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

// openExisting reads and validates the header of an already-existing
// database file, then loads its directory into memory.
func (db *DB) openExisting() error {
	size, err := db.file.Size()
	if err != nil {
		return newErr(FileStatError, db.path, err)
	}

	if size == 0 {
		return newErr(EmptyDatabase, db.path, nil)
	}

	// A magic number plus the largest fixed header we support always fits
	// in the smallest legal block; read that much up front; DecodeHeader
	// reports if more is needed for the numsync extension and avail table,
	// so fall back to a second, larger read when it does.
	probe := make([]byte, wire.MinBlockSize)
	if _, err := db.file.ReadAt(probe, 0); err != nil {
		return newErr(FileReadError, db.path, err)
	}

	if !wire.IsKnownMagic(leUint32(probe)) {
		if wire.IsSwapped(leUint32(probe)) {
			return newErr(ByteSwapped, db.path, nil)
		}

		return newErr(BadMagicNumber, db.path, nil)
	}

	hdr, err := decodeHeaderGrowing(db, probe)
	if err != nil {
		return newErr(BadHeader, db.path, err)
	}

	if hdr.BlockSize <= 0 || int64(hdr.BlockSize) > size {
		return newErr(BadHeader, db.path, nil)
	}

	if hdr.DirOffset < 0 || hdr.DirOffset+int64(hdr.DirSize) > size {
		return newErr(BadFileOffset, db.path, nil)
	}

	db.header = *hdr

	dirEntries := int64(1) << uint(hdr.DirBits)

	dirBuf := make([]byte, hdr.DirSize)
	if _, err := db.file.ReadAt(dirBuf, hdr.DirOffset); err != nil {
		return newErr(FileReadError, db.path, err)
	}

	dir, err := wire.DecodeDirectory(dirBuf, hdr.OffWidth(), int(dirEntries))
	if err != nil {
		return newErr(BadDirEntry, db.path, err)
	}

	db.dir = dir

	return nil
}

// decodeHeaderGrowing decodes the header from probe, re-reading a larger
// prefix of the file if the header's embedded avail table extends past
// what probe covers (possible once BlockSize or the avail capacity is
// larger than wire.MinBlockSize).
func decodeHeaderGrowing(db *DB, probe []byte) (*wire.Header, error) {
	hdr, err := wire.DecodeHeader(probe)
	if err == nil {
		return hdr, nil
	}

	bigger := make([]byte, defaultBlockSize*4)
	if _, rerr := db.file.ReadAt(bigger, 0); rerr != nil {
		return nil, err
	}

	return wire.DecodeHeader(bigger)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
