package gdbm

import (
	"github.com/sailfishos-mirror/gdbm/internal/bucketcache"
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

// RecoveryReport summarizes what Recover found and repaired.
type RecoveryReport struct {
	BucketsChecked int
	BucketsRepaired int
	KeysLost        int
}

// Recover attempts to bring a database back to a consistent, usable state
// after NeedsRecovery reports true (typically following a fatal I/O error
// or a process crash mid-write). It re-validates the header and
// directory, then walks every bucket the directory reaches, discarding
// (and reporting) any bucket it cannot decode rather than leaving the
// handle unusable. It does not recover individual corrupted records
// within an otherwise-decodable bucket; a corrupt bucket is replaced
// wholesale with an empty one of local depth 0 at the same offset.
func (db *DB) Recover() (RecoveryReport, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var report RecoveryReport

	if err := db.openExisting(); err != nil {
		return report, err
	}

	db.cache = bucketcache.New(defaultCacheSize) // discard stale cache

	seen := make(map[int64]bool)

	for i, offset := range db.dir {
		if offset < 0 || offset+int64(db.header.BucketSize) > mustSize(db) {
			db.logger.Warningf("recover: directory entry %d points outside file bounds, resetting to empty bucket", i)

			newOff, err := db.growFile(db.header.BucketSize)
			if err != nil {
				return report, err
			}

			fresh := wire.NewBucket(int(db.header.BucketElems), 0)
			if err := db.writeBucketAt(newOff, fresh); err != nil {
				return report, err
			}

			db.dir[i] = newOff
			db.dirDirty = true

			continue
		}

		if seen[offset] {
			continue
		}

		seen[offset] = true
		report.BucketsChecked++

		buf := make([]byte, db.header.BucketSize)
		if _, err := db.file.ReadAt(buf, offset); err != nil {
			return report, newErr(FileReadError, db.path, err)
		}

		b, err := wire.DecodeBucket(buf, db.header.OffWidth(), int(db.header.BucketElems))
		if err != nil {
			db.logger.Warningf("recover: bucket at offset %d is corrupt, replacing with an empty bucket: %v", offset, err)

			fresh := wire.NewBucket(int(db.header.BucketElems), 0)
			if err := db.writeBucketAt(offset, fresh); err != nil {
				return report, err
			}

			report.BucketsRepaired++

			continue
		}

		for _, e := range b.Table {
			if e.Empty() {
				continue
			}

			if e.DataPointer < 0 || e.DataPointer+int64(e.KeySize)+int64(e.DataSize) > mustSize(db) {
				report.KeysLost++
			}
		}
	}

	db.needsRecovery = false
	db.lastErr = nil

	if err := db.flushLocked(); err != nil {
		return report, err
	}

	return report, nil
}

func mustSize(db *DB) int64 {
	size, err := db.file.Size()
	if err != nil {
		return 0
	}

	return size
}
