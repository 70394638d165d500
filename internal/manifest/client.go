// Package manifest fetches and decodes Rust channel manifests from a dist
// server.
//
// Two documents matter: the channel's latest manifest and the manifest
// archived under a release date. A 404 on a dated URL is a normal gap in
// the release cadence and surfaces as release.ErrNoRelease; every other
// failure is fatal to the caller.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/cache"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/logging"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

const (
	// DefaultBaseURL is the official Rust dist server.
	DefaultBaseURL = "https://static.rust-lang.org/dist"
	// DefaultTimeout bounds each individual fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "lastgood"

	// maxDocumentSize caps how much of a response body is read.
	maxDocumentSize = 64 << 20
)

// Cache stores dated manifests between runs. *cache.Store implements it.
type Cache interface {
	Get(ctx context.Context, channel release.Channel, date release.Date) (*cache.Entry, error)
	Put(ctx context.Context, channel release.Channel, date release.Date, body []byte, verified string) error
	PutMissing(ctx context.Context, channel release.Channel, date release.Date) error
}

// Client retrieves channel manifests.
type Client struct {
	baseURL   string
	http      *retryablehttp.Client
	timeout   time.Duration
	userAgent string
	verifier  *Verifier
	cache     Cache
	logger    logging.Logger

	// Latest manifests keyed by channel, fetched at most once per client.
	latest sync.Map
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another dist server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http.HTTPClient = client
		}
	}
}

// WithTimeout sets the per-fetch timeout.
// Zero or negative values fall back to DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		} else {
			c.timeout = DefaultTimeout
		}
	}
}

// WithRetries sets how many times a failed request is retried by the
// transport. The default is zero.
func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.http.RetryMax = retries
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithVerifier enables checksum or signature verification.
func WithVerifier(v *Verifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

// WithCache enables the on-disk cache for dated manifests.
func WithCache(store Cache) Option {
	return func(c *Client) {
		c.cache = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the official dist server unless
// WithBaseURL says otherwise.
func NewClient(opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 0
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL:   DefaultBaseURL,
		http:      retryClient,
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		verifier:  &Verifier{method: MethodNone},
		logger:    logging.Noop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.http.HTTPClient.Timeout = c.timeout
	return c
}

// LatestURL returns the URL of the channel's latest manifest.
func (c *Client) LatestURL(channel release.Channel) string {
	return fmt.Sprintf("%s/channel-rust-%s.toml", c.baseURL, channel)
}

// DatedURL returns the URL of the manifest archived for date.
func (c *Client) DatedURL(channel release.Channel, date release.Date) string {
	return fmt.Sprintf("%s/%s/channel-rust-%s.toml", c.baseURL, date, channel)
}

// FetchLatest returns the channel's current manifest. The result is kept
// for the lifetime of the client.
func (c *Client) FetchLatest(ctx context.Context, channel release.Channel) (*release.Manifest, error) {
	if cached, ok := c.latest.Load(channel); ok {
		return cached.(*release.Manifest), nil
	}

	url := c.LatestURL(channel)
	c.logger.Debug("fetching latest manifest", "channel", channel, "url", url)

	body, err := c.retrieve(ctx, url)
	if err != nil {
		if isNotFound(err) {
			return nil, &release.NetworkError{
				URL:        url,
				StatusCode: http.StatusNotFound,
				Err:        fmt.Errorf("no manifest found for release channel %s", channel),
			}
		}
		return nil, err
	}

	m, err := Decode(channel, url, body)
	if err != nil {
		return nil, err
	}

	c.latest.Store(channel, m)
	return m, nil
}

// FetchForDate returns the manifest published on date. When nothing was
// published that day the error wraps release.ErrNoRelease.
func (c *Client) FetchForDate(ctx context.Context, channel release.Channel, date release.Date) (*release.Manifest, error) {
	url := c.DatedURL(channel, date)

	if m, ok, err := c.fromCache(ctx, channel, date, url); ok {
		return m, err
	}

	c.logger.Debug("fetching dated manifest", "channel", channel, "date", date, "url", url)
	body, err := c.retrieve(ctx, url)
	if err != nil {
		if isNotFound(err) {
			c.rememberMissing(ctx, channel, date)
			return nil, fmt.Errorf("%s %s: %w", channel, date, release.ErrNoRelease)
		}
		return nil, err
	}

	m, err := Decode(channel, url, body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, channel, date, body, string(c.verifier.Method())); err != nil {
			c.logger.Warn("failed to cache manifest", "date", date, "error", err)
		}
	}
	return m, nil
}

// fromCache serves a dated request from the on-disk cache. ok is false
// when the caller must go to the network.
func (c *Client) fromCache(ctx context.Context, channel release.Channel, date release.Date, url string) (*release.Manifest, bool, error) {
	if c.cache == nil {
		return nil, false, nil
	}

	entry, err := c.cache.Get(ctx, channel, date)
	if err != nil {
		c.logger.Warn("manifest cache lookup failed", "date", date, "error", err)
		return nil, false, nil
	}
	if entry == nil {
		return nil, false, nil
	}
	if entry.Missing {
		c.logger.Debug("cached miss", "channel", channel, "date", date)
		return nil, true, fmt.Errorf("%s %s: %w", channel, date, release.ErrNoRelease)
	}
	if !c.verifier.Accepts(entry.Verified) {
		return nil, false, nil
	}

	m, err := Decode(channel, url, entry.Body)
	if err != nil {
		c.logger.Warn("discarding unreadable cache entry", "date", date, "error", err)
		return nil, false, nil
	}
	c.logger.Debug("cache hit", "channel", channel, "date", date)
	return m, true, nil
}

// rememberMissing caches a 404 only for dates strictly before the channel's
// known latest release; later dates may still be published.
func (c *Client) rememberMissing(ctx context.Context, channel release.Channel, date release.Date) {
	if c.cache == nil {
		return
	}
	cached, ok := c.latest.Load(channel)
	if !ok || !date.Before(cached.(*release.Manifest).Date) {
		return
	}
	if err := c.cache.PutMissing(ctx, channel, date); err != nil {
		c.logger.Warn("failed to cache miss", "date", date, "error", err)
	}
}

// retrieve fetches the document at url and, when verification is on, its
// companion file. Both requests run concurrently; the document's own
// status is classified first so a missing date stays a skippable miss.
func (c *Client) retrieve(ctx context.Context, url string) ([]byte, error) {
	method := c.verifier.Method()
	if method == MethodNone {
		return c.get(ctx, url)
	}

	var (
		doc, companion       []byte
		docErr, companionErr error
	)
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		doc, docErr = c.get(ctx, url)
		return docErr
	})
	p.Go(func(ctx context.Context) error {
		companion, companionErr = c.get(ctx, url+method.suffix())
		return companionErr
	})
	if err := p.Wait(); err != nil {
		if docErr != nil {
			return nil, docErr
		}
		if isNotFound(companionErr) {
			return nil, &release.VerificationError{
				URL:    url,
				Method: string(method),
				Err:    fmt.Errorf("%s not published", url+method.suffix()),
			}
		}
		return nil, companionErr
	}

	if err := c.verifier.Verify(url, doc, companion); err != nil {
		return nil, &release.VerificationError{URL: url, Method: string(method), Err: err}
	}
	return doc, nil
}

// get performs one GET, retried by the transport when configured.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &release.NetworkError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &release.NetworkError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &release.NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &release.NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func isNotFound(err error) bool {
	var netErr *release.NetworkError
	return errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound
}
