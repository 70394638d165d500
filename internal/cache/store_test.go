package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "manifests.db"), opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutGet(t *testing.T) {
	fixed := time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, WithClock(FixedClock{Time: fixed}))
	ctx := context.Background()
	date := release.MustParseDate("2025-09-06")

	entry, err := store.Get(ctx, release.Nightly, date)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Fatalf("Get() on empty store = %+v, want nil", entry)
	}

	body := []byte("manifest-version = \"2\"\n")
	if err := store.Put(ctx, release.Nightly, date, body, "sha256"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entry, err = store.Get(ctx, release.Nightly, date)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil {
		t.Fatal("Get() = nil after Put")
	}
	if string(entry.Body) != string(body) {
		t.Errorf("Body = %q, want %q", entry.Body, body)
	}
	if entry.Missing {
		t.Error("Missing = true, want false")
	}
	if entry.Verified != "sha256" {
		t.Errorf("Verified = %q, want sha256", entry.Verified)
	}
	if !entry.FetchedAt.Equal(fixed) {
		t.Errorf("FetchedAt = %v, want %v", entry.FetchedAt, fixed)
	}

	// Other channels are keyed separately.
	if other, _ := store.Get(ctx, release.Beta, date); other != nil {
		t.Errorf("Get(beta) = %+v, want nil", other)
	}
}

func TestStore_PutMissing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	gap := release.MustParseDate("2025-09-05")
	published := release.MustParseDate("2025-09-06")

	if err := store.PutMissing(ctx, release.Nightly, gap); err != nil {
		t.Fatalf("PutMissing() error = %v", err)
	}
	entry, err := store.Get(ctx, release.Nightly, gap)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil || !entry.Missing || entry.Body != nil {
		t.Errorf("Get() = %+v, want a miss", entry)
	}

	// A miss never shadows a stored body.
	if err := store.Put(ctx, release.Nightly, published, []byte("body"), "none"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.PutMissing(ctx, release.Nightly, published); err != nil {
		t.Fatalf("PutMissing() error = %v", err)
	}
	entry, err = store.Get(ctx, release.Nightly, published)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Missing || string(entry.Body) != "body" {
		t.Errorf("Get() = %+v, want stored body", entry)
	}

	// A body replaces a miss.
	if err := store.Put(ctx, release.Nightly, gap, []byte("late"), "none"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	entry, _ = store.Get(ctx, release.Nightly, gap)
	if entry.Missing || string(entry.Body) != "late" {
		t.Errorf("Get() = %+v, want body to replace the miss", entry)
	}

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifests.db")
	ctx := context.Background()
	date := release.MustParseDate("2025-08-07")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Put(ctx, release.Stable, date, []byte("stable"), "none"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()

	entry, err := store.Get(ctx, release.Stable, date)
	if err != nil || entry == nil {
		t.Fatalf("Get() after reopen = %v, %v", entry, err)
	}
	if string(entry.Body) != "stable" {
		t.Errorf("Body = %q, want stable", entry.Body)
	}
}

func TestStore_Errors(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}

	store := openTestStore(t)
	if err := store.Put(context.Background(), release.Nightly, release.MustParseDate("2025-09-01"), nil, "none"); err == nil {
		t.Error("Put() with empty body should fail")
	}

	var nilStore *Store
	if err := nilStore.Close(); err != nil {
		t.Errorf("Close() on nil store = %v", err)
	}
}
