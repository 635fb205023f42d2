// Package cfg loads a configuration for the CLI tools' settings: JSONC
// config files merged under a global -> project precedence chain, the
// same shape and library the ticket-tracker tool this engine's CLI layer
// is grounded on uses. Load reads files only; it does not overlay
// command-line flags, and no command under cmd/ calls it.
package cfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Config holds the settings gdbmtool and friends read at startup.
type Config struct {
	BlockSize  int    `json:"block_size,omitempty"`  //nolint:tagliatelle
	CacheSize  int    `json:"cache_size,omitempty"`  //nolint:tagliatelle
	Numsync    bool   `json:"numsync,omitempty"`
	SyncMode   bool   `json:"sync_mode,omitempty"`    //nolint:tagliatelle
	LockWait   string `json:"lock_wait,omitempty"`    //nolint:tagliatelle
}

// FileName is the default project-local config file name.
const FileName = ".gdbmrc.json"

// Default returns the built-in configuration used before any file or
// flag overlays it.
func Default() Config {
	return Config{BlockSize: 4096, CacheSize: 100, LockWait: "none"}
}

// Load reads the global config (~/.config/gdbm/config.json or
// $XDG_CONFIG_HOME/gdbm/config.json), then a project config at
// filepath.Join(workDir, FileName) if present, each overlaying the
// previous only for fields it sets explicitly non-zero.
func Load(workDir string, env []string) (Config, error) {
	cfg := Default()

	if path := globalConfigPath(env); path != "" {
		overlay, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}

		cfg = merge(cfg, overlay)
	}

	projectPath := filepath.Join(workDir, FileName)

	overlay, err := loadFile(projectPath)
	if err != nil {
		return Config{}, err
	}

	return merge(cfg, overlay), nil
}

func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "gdbm", "config.json")
		}
	}

	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "gdbm", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "gdbm", "config.json")
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("cfg: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("cfg: %s is not valid JSONC: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("cfg: %s: %w", path, err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.BlockSize != 0 {
		base.BlockSize = overlay.BlockSize
	}

	if overlay.CacheSize != 0 {
		base.CacheSize = overlay.CacheSize
	}

	if overlay.Numsync {
		base.Numsync = true
	}

	if overlay.SyncMode {
		base.SyncMode = true
	}

	if overlay.LockWait != "" {
		base.LockWait = overlay.LockWait
	}

	return base
}

// Save writes cfg to path as indented JSON via an atomic rename, so a
// concurrent reader never observes a half-written config file.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cfg: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cfg: mkdir %s: %w", filepath.Dir(path), err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("cfg: write %s: %w", path, err)
	}

	return nil
}
