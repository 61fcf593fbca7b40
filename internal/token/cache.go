package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"airtel-gateway/internal/airtel"
	"github.com/VictoriaMetrics/metrics"
)

const (
	// refresh slightly before the provider-reported expiry
	expirySkew = 30 * time.Second

	defaultTTL = 180 * time.Second
)

var (
	tokenFetchedCounter    = metrics.GetOrCreateCounter(`token_cache_total{result="fetched"}`)
	tokenHitCounter        = metrics.GetOrCreateCounter(`token_cache_total{result="hit"}`)
	tokenFetchFailCounter  = metrics.GetOrCreateCounter(`token_cache_total{result="fetch_failed"}`)
	tokenInvalidateCounter = metrics.GetOrCreateCounter(`token_cache_total{result="invalidated"}`)
)

type Fetcher interface {
	FetchToken(ctx context.Context) (*airtel.Token, error)
}

// Cache holds the current access token for the configured credential pair.
// Empty on startup, refreshed on expiry. The mutex is held across the
// upstream fetch so concurrent refreshes collapse to a single provider call.
// Fetch failures are never cached; the next caller retries unconditionally.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewCache(fetcher Fetcher, logger *slog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached access token, fetching a fresh one if none is
// held or the held one has expired.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		tokenHitCounter.Inc()
		return c.token, nil
	}

	c.logger.InfoContext(ctx, "Fetching access token")

	fetched, err := c.fetcher.FetchToken(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Error fetching access token", "error", err)
		tokenFetchFailCounter.Inc()
		return "", err
	}

	ttl := defaultTTL
	if fetched.ExpiresIn > 0 {
		ttl = time.Duration(fetched.ExpiresIn) * time.Second
	}
	if ttl > expirySkew {
		ttl -= expirySkew
	}

	c.token = fetched.AccessToken
	c.expiry = c.now().Add(ttl)
	tokenFetchedCounter.Inc()

	return c.token, nil
}

// Invalidate drops the cached token. Called when the provider rejects a
// request with an authentication failure.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		tokenInvalidateCounter.Inc()
	}
	c.token = ""
	c.expiry = time.Time{}
}
