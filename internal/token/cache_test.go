package token

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"airtel-gateway/internal/airtel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls int64
	err   error
	delay time.Duration
}

func (f *countingFetcher) FetchToken(ctx context.Context) (*airtel.Token, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &airtel.Token{AccessToken: "tok", ExpiresIn: 180}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCache_ReusesTokenWithinExpiry(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher, discardLogger())

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fetcher.calls))
}

func TestCache_RefreshesAfterExpiry(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher, discardLogger())

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	// past the 180s TTL minus skew
	now = now.Add(200 * time.Second)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&fetcher.calls))
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("upstream down")}
	cache := NewCache(fetcher, discardLogger())

	_, err := cache.Get(context.Background())
	require.Error(t, err)

	_, err = cache.Get(context.Background())
	require.Error(t, err)

	// every call retried upstream, nothing negative was cached
	assert.Equal(t, int64(2), atomic.LoadInt64(&fetcher.calls))

	fetcher.err = nil
	tok, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestCache_ConcurrentRefreshCollapses(t *testing.T) {
	fetcher := &countingFetcher{delay: 20 * time.Millisecond}
	cache := NewCache(fetcher, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := cache.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&fetcher.calls))
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher, discardLogger())

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&fetcher.calls))
}
