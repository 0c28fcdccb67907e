// Package jwks caches the JSON Web Key Sets used to verify session tokens.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/networking"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

// Common errors
var (
	// ErrUnavailable means no key material could be produced at all: the
	// upstream fetch failed and no previously cached document exists.
	ErrUnavailable = errors.New("JWKS unavailable")

	// ErrKeyNotFound means the requested key ID is absent even after a
	// forced refresh of the document.
	ErrKeyNotFound = errors.New("key not found in JWKS")
)

const (
	// DefaultValidity is how long a fetched JWKS document is served
	// without re-fetching.
	DefaultValidity = 24 * time.Hour

	// fetchTimeout bounds a single JWKS fetch.
	fetchTimeout = 10 * time.Second

	wellKnownPath = "/.well-known/jwks.json"
)

// EndpointURL returns the conventional JWKS location for an issuer.
// Trailing slashes on the issuer are ignored.
func EndpointURL(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + wellKnownPath
}

// Cache holds the most recently fetched JWKS document for an issuer and
// serves it until it expires. A document that outlives its validity is
// still retained: when a refresh fails, the stale copy is served rather
// than failing requests outright.
//
// A Cache is safe for concurrent use. Concurrent callers may race to
// refresh the same document; the operation is idempotent and last writer
// wins.
type Cache struct {
	validity time.Duration
	client   networking.HTTPClient
	now      func() time.Time
	metrics  *telemetry.Metrics

	mu        sync.RWMutex
	set       jwk.Set
	url       string
	fetchedAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the HTTP client used for JWKS fetches.
func WithHTTPClient(client networking.HTTPClient) Option {
	return func(c *Cache) { c.client = client }
}

// WithClock sets the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithValidity sets how long a fetched document is served without
// re-fetching.
func WithValidity(validity time.Duration) Option {
	return func(c *Cache) { c.validity = validity }
}

// WithMetrics attaches pipeline metrics to the cache.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a JWKS cache. Without options it fetches with a default
// HTTP client and serves documents for DefaultValidity.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		validity: DefaultValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		client, err := networking.NewClientBuilder().
			WithTimeout(fetchTimeout).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		c.client = client
	}

	return c, nil
}

// Get returns the JWKS document for the issuer. A cached document is
// returned without I/O while it is fresh and was fetched from the same
// derived URL; changing the issuer invalidates the cache regardless of
// age. On a failed refresh the previous document, for any URL, is served
// stale with a logged warning; with no previous document the fetch error
// surfaces as ErrUnavailable.
func (c *Cache) Get(ctx context.Context, issuer string) (jwk.Set, error) {
	url := EndpointURL(issuer)

	c.mu.RLock()
	if c.set != nil && c.url == url && c.now().Sub(c.fetchedAt) < c.validity {
		set := c.set
		c.mu.RUnlock()
		return set, nil
	}
	c.mu.RUnlock()

	logger.Debugf("Fetching JWKS document from %s", url)
	set, err := c.fetch(ctx, url)
	if err != nil {
		c.metrics.JWKSRefresh(telemetry.OutcomeFailure)

		c.mu.RLock()
		stale := c.set
		c.mu.RUnlock()

		if stale != nil {
			logger.Warnf("JWKS refresh from %s failed, serving stale document: %v", url, err)
			c.metrics.JWKSStaleServe()
			return stale, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.metrics.JWKSRefresh(telemetry.OutcomeSuccess)

	// Document, URL and timestamp are replaced as a unit
	c.mu.Lock()
	c.set = set
	c.url = url
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return set, nil
}

// SigningKey resolves the raw public key for the given key ID. A key ID
// absent from the cached document triggers one forced refresh before the
// lookup is retried; a second miss returns ErrKeyNotFound.
func (c *Cache) SigningKey(ctx context.Context, issuer, kid string) (any, error) {
	set, err := c.Get(ctx, issuer)
	if err != nil {
		return nil, err
	}

	key, found := set.LookupKeyID(kid)
	if !found {
		// The kid may belong to a key rotated in after the cached fetch
		c.Invalidate()
		set, err = c.Get(ctx, issuer)
		if err != nil {
			return nil, err
		}
		key, found = set.LookupKeyID(kid)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export raw key: %w", err)
	}
	return raw, nil
}

// Invalidate clears the cache's last-updated marker so the next Get
// re-fetches unconditionally. The cached document itself is retained for
// the stale-on-failure path.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) fetch(ctx context.Context, url string) (jwk.Set, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	// JWKS endpoints commonly respond with application/jwk-set+json
	raw, err := networking.FetchJSON[json.RawMessage](fetchCtx, c.client, url,
		networking.WithoutContentTypeValidation())
	if err != nil {
		return nil, err
	}

	set, err := jwk.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS document: %w", err)
	}
	return set, nil
}
