package api

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
)

// CachedFetcher memoizes FetchAggregate results. Failed fetches are not cached.
type CachedFetcher struct {
	*Fetcher
	cache *lru.Cache
}

// NewCachedFetcher wraps f with an LRU cache holding up to size results.
func NewCachedFetcher(f *Fetcher, size int) (*CachedFetcher, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedFetcher{Fetcher: f, cache: cache}, nil
}

// FetchAggregate returns a cached result when the same query was fetched
// before. Returned results are shared and must not be modified.
func (c *CachedFetcher) FetchAggregate(
	ctx context.Context,
	metric Metric,
	baseURL string,
	from, to time.Time,
	apiKey string,
) (*models.AggregateResult, error) {
	key := generateCacheKey(metric, baseURL, from, to, apiKey)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(*models.AggregateResult), nil
	}

	result, err := c.Fetcher.FetchAggregate(ctx, metric, baseURL, from, to, apiKey)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, result)
	return result, nil
}

// Len returns the number of cached results.
func (c *CachedFetcher) Len() int {
	return c.cache.Len()
}

func generateCacheKey(metric Metric, baseURL string, from, to time.Time, apiKey string) string {
	ds := metric.Datasource()
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%x",
		DeriveEndpoint(baseURL),
		ds.Type,
		ds.UID,
		metric.Name(),
		from.UnixNano(),
		to.UnixNano(),
		xxhash.Sum64String(apiKey),
	)
}
