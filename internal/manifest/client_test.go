package manifest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/ZebulonRouseFrantzich/lastgood/internal/cache"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/testutil"
)

// fakeDist is an in-memory dist server.
type fakeDist struct {
	mu       sync.Mutex
	files    map[string][]byte
	status   map[string]int
	requests []string
	agents   []string
}

func newFakeDist(t *testing.T) (*fakeDist, *httptest.Server) {
	t.Helper()
	d := &fakeDist{files: make(map[string][]byte), status: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.requests = append(d.requests, r.URL.Path)
		d.agents = append(d.agents, r.Header.Get("User-Agent"))
		status, hasStatus := d.status[r.URL.Path]
		body, hasBody := d.files[r.URL.Path]
		d.mu.Unlock()

		switch {
		case hasStatus:
			w.WriteHeader(status)
		case hasBody:
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return d, server
}

func (d *fakeDist) put(path string, body []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = body
}

func (d *fakeDist) fail(path string, status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[path] = status
}

func (d *fakeDist) count(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, p := range d.requests {
		if p == path {
			n++
		}
	}
	return n
}

func nightlyTOML(date string) []byte {
	return testutil.ManifestTOML(testutil.NewManifest("nightly", date, "").
		WithComponents(testutil.Tier1, "rustc", "cargo").
		Build())
}

func TestClient_URLs(t *testing.T) {
	c := NewClient()
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if got, want := c.LatestURL(release.Nightly), "https://static.rust-lang.org/dist/channel-rust-nightly.toml"; got != want {
		t.Errorf("LatestURL() = %q, want %q", got, want)
	}
	got := c.DatedURL(release.Stable, release.MustParseDate("2025-08-07"))
	if want := "https://static.rust-lang.org/dist/2025-08-07/channel-rust-stable.toml"; got != want {
		t.Errorf("DatedURL() = %q, want %q", got, want)
	}

	c = NewClient(WithBaseURL("http://mirror.test/dist/"))
	if got := c.LatestURL(release.Beta); got != "http://mirror.test/dist/channel-rust-beta.toml" {
		t.Errorf("LatestURL() with trailing slash base = %q", got)
	}
}

func TestClient_FetchLatest(t *testing.T) {
	dist, server := newFakeDist(t)
	dist.put("/channel-rust-nightly.toml", nightlyTOML("2025-09-07"))
	dist.fail("/channel-rust-beta.toml", http.StatusInternalServerError)

	c := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	m, err := c.FetchLatest(ctx, release.Nightly)
	if err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if m.Date.String() != "2025-09-07" {
		t.Errorf("Date = %v, want 2025-09-07", m.Date)
	}

	again, err := c.FetchLatest(ctx, release.Nightly)
	if err != nil {
		t.Fatalf("FetchLatest() second call error = %v", err)
	}
	if again != m {
		t.Error("second FetchLatest() should return the cached manifest")
	}
	if n := dist.count("/channel-rust-nightly.toml"); n != 1 {
		t.Errorf("latest fetched %d times, want 1", n)
	}

	var netErr *release.NetworkError
	_, err = c.FetchLatest(ctx, release.Stable)
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusNotFound {
		t.Fatalf("FetchLatest(stable) error = %v, want 404 NetworkError", err)
	}
	if !strings.Contains(err.Error(), "no manifest found for release channel stable") {
		t.Errorf("error = %q", err)
	}
	if release.IsSkippable(err) {
		t.Error("a missing latest manifest must not be skippable")
	}

	_, err = c.FetchLatest(ctx, release.Beta)
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("FetchLatest(beta) error = %v, want 500 NetworkError", err)
	}
}

func TestClient_FetchForDate(t *testing.T) {
	dist, server := newFakeDist(t)
	dist.put("/2025-09-06/channel-rust-nightly.toml", nightlyTOML("2025-09-06"))
	dist.put("/2025-09-04/channel-rust-nightly.toml", []byte("garbage ]["))
	dist.fail("/2025-09-03/channel-rust-nightly.toml", http.StatusBadGateway)

	c := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		check   func(error) bool
		wantErr bool
	}{
		{name: "published", date: "2025-09-06"},
		{name: "gap", date: "2025-09-05", wantErr: true, check: release.IsSkippable},
		{name: "malformed", date: "2025-09-04", wantErr: true, check: func(err error) bool {
			var malformed *release.MalformedManifestError
			return errors.As(err, &malformed)
		}},
		{name: "server error", date: "2025-09-03", wantErr: true, check: func(err error) bool {
			var netErr *release.NetworkError
			return errors.As(err, &netErr) && !release.IsSkippable(err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate(tt.date))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("FetchForDate() error = %v", err)
				}
				if m.Date.String() != tt.date {
					t.Errorf("Date = %v, want %s", m.Date, tt.date)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !tt.check(err) {
				t.Errorf("FetchForDate() error = %v has the wrong class", err)
			}
		})
	}
}

func TestClient_UserAgent(t *testing.T) {
	dist, server := newFakeDist(t)
	dist.put("/channel-rust-nightly.toml", nightlyTOML("2025-09-07"))

	c := NewClient(WithBaseURL(server.URL), WithUserAgent("lastgood/test"))
	if _, err := c.FetchLatest(context.Background(), release.Nightly); err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if len(dist.agents) != 1 || dist.agents[0] != "lastgood/test" {
		t.Errorf("User-Agent = %v, want lastgood/test", dist.agents)
	}
}

func TestClient_Retries(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(nightlyTOML("2025-09-07"))
	}))
	defer server.Close()

	// No retries by default: the first 503 is final.
	c := NewClient(WithBaseURL(server.URL))
	var netErr *release.NetworkError
	if _, err := c.FetchLatest(context.Background(), release.Nightly); !errors.As(err, &netErr) {
		t.Fatalf("FetchLatest() error = %v, want NetworkError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	mu.Lock()
	attempts = 0
	mu.Unlock()

	c = NewClient(WithBaseURL(server.URL), WithRetries(2))
	if _, err := c.FetchLatest(context.Background(), release.Nightly); err != nil {
		t.Fatalf("FetchLatest() with retries error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	_, err := c.FetchForDate(context.Background(), release.Nightly, release.MustParseDate("2025-09-07"))
	var netErr *release.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("FetchForDate() error = %v, want NetworkError", err)
	}
	if release.IsSkippable(err) {
		t.Error("a timeout must not be skippable")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	dist, server := newFakeDist(t)
	dist.put("/channel-rust-nightly.toml", nightlyTOML("2025-09-07"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(WithBaseURL(server.URL))
	if _, err := c.FetchLatest(ctx, release.Nightly); !errors.Is(err, context.Canceled) {
		t.Errorf("FetchLatest() error = %v, want context.Canceled", err)
	}
}

func TestClient_Cache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "manifests.db"))
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer store.Close()

	dist, server := newFakeDist(t)
	dist.put("/channel-rust-nightly.toml", nightlyTOML("2025-09-07"))
	dist.put("/2025-09-06/channel-rust-nightly.toml", nightlyTOML("2025-09-06"))

	ctx := context.Background()
	c := NewClient(WithBaseURL(server.URL), WithCache(store))
	if _, err := c.FetchLatest(ctx, release.Nightly); err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-06")); err != nil {
		t.Fatalf("FetchForDate() error = %v", err)
	}
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-05")); !release.IsSkippable(err) {
		t.Fatalf("FetchForDate(gap) error = %v, want ErrNoRelease", err)
	}
	// Not older than the latest release, so the 404 must not be remembered.
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-08")); !release.IsSkippable(err) {
		t.Fatalf("FetchForDate(future) error = %v, want ErrNoRelease", err)
	}

	entry, err := store.Get(ctx, release.Nightly, release.MustParseDate("2025-09-08"))
	if err != nil || entry != nil {
		t.Errorf("future miss cached: %+v, %v", entry, err)
	}

	// A fresh client answers from the cache without touching the server.
	before := len(dist.requests)
	c = NewClient(WithBaseURL(server.URL), WithCache(store))
	m, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-06"))
	if err != nil {
		t.Fatalf("cached FetchForDate() error = %v", err)
	}
	if m.Date.String() != "2025-09-06" {
		t.Errorf("cached Date = %v", m.Date)
	}
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-05")); !release.IsSkippable(err) {
		t.Errorf("cached gap error = %v, want ErrNoRelease", err)
	}
	if after := len(dist.requests); after != before {
		t.Errorf("cache hits made %d requests", after-before)
	}
}

func TestClient_CacheRespectsVerification(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "manifests.db"))
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer store.Close()

	body := nightlyTOML("2025-09-06")
	date := release.MustParseDate("2025-09-06")
	if err := store.Put(context.Background(), release.Nightly, date, body, string(MethodNone)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	dist, server := newFakeDist(t)
	path := "/2025-09-06/channel-rust-nightly.toml"
	dist.put(path, body)
	dist.put(path+".sha256", []byte(sha256Line(body, "channel-rust-nightly.toml")))

	verifier, err := NewVerifier(MethodSHA256, "")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	c := NewClient(WithBaseURL(server.URL), WithCache(store), WithVerifier(verifier))
	if _, err := c.FetchForDate(context.Background(), release.Nightly, date); err != nil {
		t.Fatalf("FetchForDate() error = %v", err)
	}
	if dist.count(path) != 1 {
		t.Error("an unverified cache entry must be refetched when verification is on")
	}

	entry, _ := store.Get(context.Background(), release.Nightly, date)
	if entry == nil || entry.Verified != string(MethodSHA256) {
		t.Errorf("cache entry = %+v, want it upgraded to sha256", entry)
	}
}

func sha256Line(body []byte, name string) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]) + "  " + name + "\n"
}

func TestClient_SHA256(t *testing.T) {
	good := nightlyTOML("2025-09-06")
	dist, server := newFakeDist(t)
	dist.put("/2025-09-06/channel-rust-nightly.toml", good)
	dist.put("/2025-09-06/channel-rust-nightly.toml.sha256", []byte(sha256Line(good, "channel-rust-nightly.toml")))
	dist.put("/2025-09-05/channel-rust-nightly.toml", good)
	dist.put("/2025-09-05/channel-rust-nightly.toml.sha256", []byte(sha256Line([]byte("other"), "channel-rust-nightly.toml")))
	dist.put("/2025-09-04/channel-rust-nightly.toml", good)

	verifier, err := NewVerifier(MethodSHA256, "")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	c := NewClient(WithBaseURL(server.URL), WithVerifier(verifier))
	ctx := context.Background()

	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-06")); err != nil {
		t.Errorf("matching checksum: error = %v", err)
	}

	var verr *release.VerificationError
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-05")); !errors.As(err, &verr) {
		t.Errorf("mismatched checksum: error = %v, want VerificationError", err)
	}
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-04")); !errors.As(err, &verr) {
		t.Errorf("missing checksum: error = %v, want VerificationError", err)
	}
	// Neither document nor checksum exist: still an ordinary gap.
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-03")); !release.IsSkippable(err) {
		t.Errorf("missing date: error = %v, want ErrNoRelease", err)
	}
}

func newTestKeyring(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("lastgood test", "", "test@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}
	var buf bytes.Buffer
	if err := entity.Serialize(&buf); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "rust-key.gpg")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write keyring: %v", err)
	}
	return entity, path
}

func signDetached(t *testing.T, signer *openpgp.Entity, doc []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, signer, bytes.NewReader(doc), nil); err != nil {
		t.Fatalf("ArmoredDetachSign() error = %v", err)
	}
	return buf.Bytes()
}

func TestClient_GPG(t *testing.T) {
	signer, keyringPath := newTestKeyring(t)
	doc := nightlyTOML("2025-09-06")

	dist, server := newFakeDist(t)
	dist.put("/2025-09-06/channel-rust-nightly.toml", doc)
	dist.put("/2025-09-06/channel-rust-nightly.toml.asc", signDetached(t, signer, doc))
	dist.put("/2025-09-05/channel-rust-nightly.toml", doc)
	dist.put("/2025-09-05/channel-rust-nightly.toml.asc", signDetached(t, signer, []byte("tampered")))

	verifier, err := NewVerifier(MethodGPG, keyringPath)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	c := NewClient(WithBaseURL(server.URL), WithVerifier(verifier))
	ctx := context.Background()

	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-06")); err != nil {
		t.Errorf("valid signature: error = %v", err)
	}
	var verr *release.VerificationError
	if _, err := c.FetchForDate(ctx, release.Nightly, release.MustParseDate("2025-09-05")); !errors.As(err, &verr) {
		t.Errorf("bad signature: error = %v, want VerificationError", err)
	} else if verr.Method != "gpg" {
		t.Errorf("Method = %q, want gpg", verr.Method)
	}
}
