package gdbm

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/natefinch/atomic"
)

// DumpFormat selects Dump/Load's on-wire representation.
type DumpFormat int

const (
	// FormatBinary is a compact, self-describing sequence of
	// length-prefixed key/value records.
	FormatBinary DumpFormat = iota
	// FormatASCII is a human-diffable text format: two comment header
	// lines per record giving the key and data sizes, followed by their
	// base64-encoded bytes on one line each.
	FormatASCII
)

var dumpMagic = [4]byte{'G', 'D', 'B', '1'}

// Dump writes every key/value pair to w in the requested format, in the
// same order FirstKey/NextKey would visit them.
func (db *DB) Dump(w io.Writer, format DumpFormat) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	bw := bufio.NewWriter(w)

	if format == FormatBinary {
		if _, err := bw.Write(dumpMagic[:]); err != nil {
			return newErr(FileWriteError, "dump", err)
		}
	}

	key, err := db.keyFrom(0, -1, 0)

	for err == nil {
		data, ferr := db.fetchLocked(key)
		if ferr != nil {
			return ferr
		}

		if werr := writeRecord(bw, format, key, data); werr != nil {
			return newErr(FileWriteError, "dump", werr)
		}

		key, err = db.nextKeyFrom(key)
	}

	if code, ok := errCodeOf(err); !ok || code != ItemNotFound {
		return err
	}

	if format == FormatASCII {
		if _, werr := bw.WriteString("#:end\n"); werr != nil {
			return newErr(FileWriteError, "dump", werr)
		}
	}

	if err := bw.Flush(); err != nil {
		return newErr(FileWriteError, "dump", err)
	}

	return nil
}

// DumpFile renders the database to path in the requested format using an
// atomic rename so a reader never observes a partial file.
func (db *DB) DumpFile(path string, format DumpFormat) error {
	var buf bytes.Buffer
	if err := db.Dump(&buf, format); err != nil {
		return err
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return newErr(FileWriteError, path, err)
	}

	return nil
}

func writeRecord(w *bufio.Writer, format DumpFormat, key, data []byte) error {
	if format == FormatBinary {
		return writeBinaryRecord(w, key, data)
	}

	return writeASCIIRecord(w, key, data)
}

func writeBinaryRecord(w *bufio.Writer, key, data []byte) error {
	var lenBuf [8]byte

	binary.LittleEndian.PutUint32(lenBuf[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(lenBuf[4:8], uint32(len(data)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}

	if _, err := w.Write(key); err != nil {
		return err
	}

	_, err := w.Write(data)

	return err
}

func writeASCIIRecord(w *bufio.Writer, key, data []byte) error {
	if _, err := fmt.Fprintf(w, "#:key_size:%d\n#:data_size:%d\n", len(key), len(data)); err != nil {
		return err
	}

	enc := base64.StdEncoding

	if _, err := w.WriteString(enc.EncodeToString(key)); err != nil {
		return err
	}

	if err := w.WriteByte('\n'); err != nil {
		return err
	}

	if _, err := w.WriteString(enc.EncodeToString(data)); err != nil {
		return err
	}

	return w.WriteByte('\n')
}

// Load reads records written by Dump and stores each one, replacing any
// existing value for keys it encounters. The format is auto-detected from
// the stream's leading bytes.
func (db *DB) Load(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	br := bufio.NewReader(r)

	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return newErr(FileReadError, "load", err)
	}

	if len(magic) == 4 && bytes.Equal(magic, dumpMagic[:]) {
		if _, err := br.Discard(4); err != nil {
			return newErr(FileReadError, "load", err)
		}

		return db.loadBinary(br)
	}

	return db.loadASCII(br)
}

func (db *DB) loadBinary(r *bufio.Reader) error {
	for {
		var lenBuf [8]byte

		_, err := io.ReadFull(r, lenBuf[:])
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return newErr(MalformedData, "load: record header", err)
		}

		keySize := binary.LittleEndian.Uint32(lenBuf[0:4])
		dataSize := binary.LittleEndian.Uint32(lenBuf[4:8])

		key := make([]byte, keySize)
		if _, err := io.ReadFull(r, key); err != nil {
			return newErr(MalformedData, "load: key", err)
		}

		data := make([]byte, dataSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return newErr(MalformedData, "load: data", err)
		}

		if err := db.storeLocked(key, data, Replace); err != nil {
			return err
		}
	}
}

func (db *DB) loadASCII(r *bufio.Reader) error {
	var keySize, dataSize int64
	haveKeySize, haveDataSize := false, false

	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil
		}

		switch {
		case line == "#:end\n" || line == "#:end":
			return nil
		case bytes.HasPrefix([]byte(line), []byte("#:key_size:")):
			if _, serr := fmt.Sscanf(line, "#:key_size:%d", &keySize); serr != nil {
				return newErr(MalformedData, "load: key_size header", serr)
			}

			haveKeySize = true
		case bytes.HasPrefix([]byte(line), []byte("#:data_size:")):
			if _, serr := fmt.Sscanf(line, "#:data_size:%d", &dataSize); serr != nil {
				return newErr(MalformedData, "load: data_size header", serr)
			}

			haveDataSize = true
		case bytes.HasPrefix([]byte(line), []byte("#:")):
			// unrecognized comment header; ignore for forward compatibility
		default:
			if !haveKeySize || !haveDataSize {
				return newErr(MalformedData, "load: record body before size headers", nil)
			}

			key, err := base64.StdEncoding.DecodeString(trimNL(line))
			if err != nil {
				return newErr(MalformedData, "load: key body", err)
			}

			dataLine, err := r.ReadString('\n')
			if err != nil && dataLine == "" {
				return newErr(MalformedData, "load: missing data body", err)
			}

			data, err := base64.StdEncoding.DecodeString(trimNL(dataLine))
			if err != nil {
				return newErr(MalformedData, "load: data body", err)
			}

			if int64(len(key)) != keySize || int64(len(data)) != dataSize {
				return newErr(MalformedData, "load: decoded size mismatch", nil)
			}

			if err := db.storeLocked(key, data, Replace); err != nil {
				return err
			}

			haveKeySize, haveDataSize = false, false
		}

		if err != nil {
			return nil
		}
	}
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}

	return s
}
