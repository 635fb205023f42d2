package gdbm_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm"
)

func seedDB(t *testing.T, db *gdbm.DB, n int) map[string]string {
	t.Helper()

	want := map[string]string{}

	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%03d", i)
		v := fmt.Sprintf("value-%03d", i)

		require.NoError(t, db.Store([]byte(k), []byte(v), gdbm.Replace))

		want[k] = v
	}

	return want
}

func readBack(t *testing.T, db *gdbm.DB) map[string]string {
	t.Helper()

	got := map[string]string{}

	key, err := db.FirstKey()
	for err == nil {
		data, ferr := db.Fetch(key)
		require.NoError(t, ferr)

		got[string(key)] = string(data)

		key, err = db.NextKey(key)
	}

	return got
}

func TestDumpLoadBinaryRoundTrip(t *testing.T) {
	db, _ := openFresh(t)

	want := seedDB(t, db, 30)

	var buf bytes.Buffer
	require.NoError(t, db.Dump(&buf, gdbm.FormatBinary))

	fresh, _ := openFresh(t)
	require.NoError(t, fresh.Load(&buf))

	require.Equal(t, want, readBack(t, fresh))
}

func TestDumpLoadASCIIRoundTrip(t *testing.T) {
	db, _ := openFresh(t)

	want := seedDB(t, db, 30)

	var buf bytes.Buffer
	require.NoError(t, db.Dump(&buf, gdbm.FormatASCII))

	fresh, _ := openFresh(t)
	require.NoError(t, fresh.Load(&buf))

	require.Equal(t, want, readBack(t, fresh))
}

func TestDumpFileAtomicWrite(t *testing.T) {
	db, _ := openFresh(t)
	want := seedDB(t, db, 10)

	dumpPath := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, db.DumpFile(dumpPath, gdbm.FormatBinary))

	f, err := os.Open(dumpPath)
	require.NoError(t, err)
	defer f.Close()

	fresh, _ := openFresh(t)
	require.NoError(t, fresh.Load(f))

	require.Equal(t, want, readBack(t, fresh))
}
