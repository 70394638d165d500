// Package testutil provides helpers for testing lastgood in isolation:
// a sandboxed environment and builders for channel manifests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
)

// SetupTestEnv points every lastgood path at a per-test temp directory so
// tests never read the user's config or touch the user's manifest cache.
// An empty config file is created so the configured path always resolves.
// Returns the temp root.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	homedir.DisableCache = true
	homedir.Reset()

	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmpDir, "cache"))
	t.Setenv("LASTGOOD_CONFIG", filepath.Join(tmpDir, "config", "lastgood", "config.toml"))
	t.Setenv("LASTGOOD_CACHE_PATH", filepath.Join(tmpDir, "cache", "lastgood", "manifests.db"))

	for _, dir := range []string{
		filepath.Join(tmpDir, "config", "lastgood"),
		filepath.Join(tmpDir, "cache", "lastgood"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	configPath := filepath.Join(tmpDir, "config", "lastgood", "config.toml")
	if err := os.WriteFile(configPath, nil, 0o600); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	return tmpDir
}
