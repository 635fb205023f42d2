package gdbm_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm"
)

func TestReorganizePreservesData(t *testing.T) {
	db, _ := openFresh(t)

	want := seedDB(t, db, 200)

	for i := 0; i < 100; i += 2 {
		key := fmt.Sprintf("key-%03d", i)
		require.NoError(t, db.Delete([]byte(key)))
		delete(want, key)
	}

	require.NoError(t, db.Reorganize())

	require.Equal(t, want, readBack(t, db))

	n, err := db.Count()
	require.NoError(t, err)
	require.Equal(t, int64(len(want)), n)
}

func TestReorganizeOnReadOnlyFails(t *testing.T) {
	_, path := openFresh(t)

	db, err := gdbm.Open(path, gdbm.OpenOptions{Flags: gdbm.Reader})
	require.NoError(t, err)
	defer db.Close()

	require.Error(t, db.Reorganize())
}
