package gdbm

import (
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

const defaultBlockSize = 4096

// createFresh lays out a brand-new, empty database: a header block, the
// directory immediately following it, and one empty bucket following the
// directory. Any existing contents at db.path were already truncated away
// by the O_TRUNC/O_CREATE flags Open chose.
func (db *DB) createFresh(opts OpenOptions) error {
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}

	if blockSize < wire.MinBlockSize {
		blockSize = wire.MinBlockSize
	}

	magic := wire.DefaultMagic(opts.Flags.has(Numsync))
	offWidth := wire.OffsetWidth(magic)

	availCap, err := wire.HeaderAvailCapacity(blockSize, offWidth, opts.Flags.has(Numsync))
	if err != nil {
		return db.fatal(newErr(BlockSizeError, db.path, err))
	}

	bucketElems, err := wire.BucketElems(blockSize, offWidth)
	if err != nil {
		return db.fatal(newErr(BlockSizeError, db.path, err))
	}

	dirBits := int32(0)
	dirEntries := int64(1)
	dirSize := wire.DirSizeBytes(int(dirBits), offWidth)
	dirOffset := int64(blockSize)
	bucketOffset := wire.RoundUpBlock(dirOffset+dirSize, int64(blockSize))

	db.header = wire.Header{
		Magic:       magic,
		BlockSize:   int32(blockSize),
		DirOffset:   dirOffset,
		DirSize:     int32(dirSize),
		DirBits:     dirBits,
		BucketSize:  int32(blockSize),
		BucketElems: int32(bucketElems),
		NextBlock:   bucketOffset + int64(blockSize),
		Avail:       wire.AvailTable{Capacity: int32(availCap)},
		Numsync:     opts.Flags.has(Numsync),
	}

	db.dir = make([]int64, dirEntries)
	for i := range db.dir {
		db.dir[i] = bucketOffset
	}

	if err := db.file.Truncate(db.header.NextBlock); err != nil {
		return db.fatal(newErr(FileTruncateError, db.path, err))
	}

	if err := db.writeHeader(); err != nil {
		return err
	}

	if err := db.writeDirectory(); err != nil {
		return err
	}

	root := wire.NewBucket(bucketElems, 0)
	if err := db.writeBucketAt(bucketOffset, root); err != nil {
		return err
	}

	db.headerDirty = false
	db.dirDirty = false

	return nil
}
