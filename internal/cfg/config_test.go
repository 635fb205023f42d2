package cfg_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm/internal/cfg"
)

func TestDefault(t *testing.T) {
	d := cfg.Default()

	require.Equal(t, 4096, d.BlockSize)
	require.Equal(t, 100, d.CacheSize)
	require.Equal(t, "none", d.LockWait)
}

func TestLoadWithNoFilesReturnsDefault(t *testing.T) {
	dir := t.TempDir()

	got, err := cfg.Load(dir, []string{"XDG_CONFIG_HOME=" + filepath.Join(dir, "xdg-missing")})
	require.NoError(t, err)
	require.Equal(t, cfg.Default(), got)
}

func TestLoadProjectOverlayWinsOverDefault(t *testing.T) {
	dir := t.TempDir()

	writeJSONC(t, filepath.Join(dir, cfg.FileName), `{
		// project override
		"block_size": 8192,
		"numsync": true,
	}`)

	got, err := cfg.Load(dir, []string{"XDG_CONFIG_HOME=" + filepath.Join(dir, "xdg-missing")})
	require.NoError(t, err)

	require.Equal(t, 8192, got.BlockSize)
	require.True(t, got.Numsync)
	require.Equal(t, 100, got.CacheSize) // untouched fields keep the default
}

func TestLoadGlobalThenProjectPrecedence(t *testing.T) {
	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "gdbm"), 0o755))
	writeJSONC(t, filepath.Join(xdg, "gdbm", "config.json"), `{"block_size": 2048, "cache_size": 50}`)
	writeJSONC(t, filepath.Join(dir, cfg.FileName), `{"block_size": 4096}`)

	got, err := cfg.Load(dir, []string{"XDG_CONFIG_HOME=" + xdg})
	require.NoError(t, err)

	require.Equal(t, 4096, got.BlockSize) // project wins over global
	require.Equal(t, 50, got.CacheSize)   // global-only field survives
}

func TestLoadRejectsInvalidJSONC(t *testing.T) {
	dir := t.TempDir()
	writeJSONC(t, filepath.Join(dir, cfg.FileName), `{ this is not json `)

	_, err := cfg.Load(dir, []string{"XDG_CONFIG_HOME=" + filepath.Join(dir, "xdg-missing")})
	require.Error(t, err)
}

func TestSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.json")

	want := cfg.Config{BlockSize: 1024, CacheSize: 7, LockWait: "retry"}
	require.NoError(t, cfg.Save(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"block_size": 1024`)

	var got cfg.Config
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want, got)
}

func writeJSONC(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
