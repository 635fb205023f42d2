package gdbm

import "fmt"

// Code is the engine's error taxonomy. It mirrors the original library's
// flat gdbm_error enum so callers that know the C API recognize the
// names; Go callers use errors.Is/errors.As against sentinel *Error
// values instead of comparing codes directly.
type Code int

const (
	NoError Code = iota
	MallocError
	BlockSizeError
	FileOpenError
	FileWriteError
	FileSeekError
	FileReadError
	BadMagicNumber
	EmptyDatabase
	CantBeReader
	CantBeWriter
	BadAvail
	BadHashTable
	BadFileOffset
	BadOpenFlags
	FileStatError
	FileEOF
	NoDBName
	ErrFileOwner
	ErrFileMode
	NeedRecovery
	BackupFailed
	DirOverflow
	BadBucket
	MalformedData
	OptAlreadySet
	OptBadVal
	ByteSwapped
	BadHeader
	BadDirEntry
	FileCloseError
	FileSyncError
	FileTruncateError
	BucketCacheCorrupted
	ItemNotFound
	CannotReplace
)

var codeNames = map[Code]string{
	NoError:              "NO_ERROR",
	MallocError:          "MALLOC_ERROR",
	BlockSizeError:       "BLOCK_SIZE_ERROR",
	FileOpenError:        "FILE_OPEN_ERROR",
	FileWriteError:       "FILE_WRITE_ERROR",
	FileSeekError:        "FILE_SEEK_ERROR",
	FileReadError:        "FILE_READ_ERROR",
	BadMagicNumber:       "BAD_MAGIC_NUMBER",
	EmptyDatabase:        "EMPTY_DATABASE",
	CantBeReader:         "CANT_BE_READER",
	CantBeWriter:         "CANT_BE_WRITER",
	BadAvail:             "BAD_AVAIL",
	BadHashTable:         "BAD_HASH_TABLE",
	BadFileOffset:        "BAD_FILE_OFFSET",
	BadOpenFlags:         "BAD_OPEN_FLAGS",
	FileStatError:        "FILE_STAT_ERROR",
	FileEOF:              "FILE_EOF",
	NoDBName:             "NO_DBNAME",
	ErrFileOwner:         "ERR_FILE_OWNER",
	ErrFileMode:          "ERR_FILE_MODE",
	NeedRecovery:         "NEED_RECOVERY",
	BackupFailed:         "BACKUP_FAILED",
	DirOverflow:          "DIR_OVERFLOW",
	BadBucket:            "BAD_BUCKET",
	MalformedData:        "MALFORMED_DATA",
	OptAlreadySet:        "OPT_ALREADY_SET",
	OptBadVal:            "OPT_BADVAL",
	ByteSwapped:          "BYTE_SWAPPED",
	BadHeader:            "BAD_HEADER",
	BadDirEntry:          "BAD_DIR_ENTRY",
	FileCloseError:       "FILE_CLOSE_ERROR",
	FileSyncError:        "FILE_SYNC_ERROR",
	FileTruncateError:    "FILE_TRUNCATE_ERROR",
	BucketCacheCorrupted: "BUCKET_CACHE_CORRUPTED",
	ItemNotFound:         "ITEM_NOT_FOUND",
	CannotReplace:        "CANNOT_REPLACE",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}

	return fmt.Sprintf("UNKNOWN_CODE(%d)", int(c))
}

// fatalCodes are errors that latch the handle's needs-recovery flag.
var fatalCodes = map[Code]bool{
	FileWriteError:       true,
	FileReadError:        true,
	FileSeekError:        true,
	FileSyncError:        true,
	FileTruncateError:    true,
	BadAvail:             true,
	BadHashTable:         true,
	BadFileOffset:        true,
	BadBucket:            true,
	MalformedData:        true,
	BadHeader:            true,
	BadDirEntry:          true,
	BucketCacheCorrupted: true,
	NeedRecovery:         true,
}

// Error is the concrete error type every engine operation returns on
// failure. Wrap with %w when constructing so errors.Is/errors.As reach
// the underlying OS error.
type Error struct {
	Code Code
	Msg  string
	Err  error // wrapped OS error, or nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdbm: %s: %s: %v", e.Code, e.Msg, e.Err)
	}

	return fmt.Sprintf("gdbm: %s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is a *Error with the same Code, so callers can
// write errors.Is(err, gdbm.ErrCode(gdbm.ItemNotFound)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Err == nil && t.Msg == "" && t.Code == e.Code
}

// ErrCode builds a bare sentinel for use with errors.Is, e.g.
// errors.Is(err, gdbm.ErrCode(gdbm.ItemNotFound)).
func ErrCode(c Code) *Error { return &Error{Code: c} }

// newErr builds an *Error. It marks nothing itself: DB.fatal records the
// error on the handle and latches needs-recovery when the code is in
// fatalCodes.
func newErr(code Code, msg string, wrapped error) *Error {
	return &Error{Code: code, Msg: msg, Err: wrapped}
}

func isFatal(code Code) bool { return fatalCodes[code] }
