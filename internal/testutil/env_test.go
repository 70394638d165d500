package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	root := testutil.SetupTestEnv(t)

	if got := os.Getenv("HOME"); got != root {
		t.Errorf("HOME = %q, want %q", got, root)
	}

	for _, key := range []string{"LASTGOOD_CONFIG", "LASTGOOD_CACHE_PATH"} {
		path := os.Getenv(key)
		if path == "" {
			t.Errorf("%s not set", key)
			continue
		}
		if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
			t.Errorf("parent directory of %s = %q does not exist", key, path)
		}
	}
}

func TestManifestTOML_RoundTripShape(t *testing.T) {
	m := testutil.NewManifest("nightly", "2025-09-07", "").
		WithComponents(testutil.Tier1, "rustc", "cargo").
		Unavailable("cargo", "x86_64-pc-windows-gnu").
		Build()

	doc := string(testutil.ManifestTOML(m))
	for _, want := range []string{
		`manifest-version = "2"`,
		`date = "2025-09-07"`,
		`[pkg."cargo".target."x86_64-pc-windows-gnu"]`,
		`available = false`,
		`[profiles]`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("ManifestTOML() missing %q:\n%s", want, doc)
		}
	}
}
