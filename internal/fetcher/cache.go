package fetcher

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/wavecut/internal/log"
)

// FailureCache remembers days whose fetch failed and answers further
// requests for them with the same error until the entry expires. Successful
// fetches are never cached since the staging directory is purged after every
// event.
type FailureCache struct {
	next  ArchiveFetcher
	cache *gocache.Cache
	ttl   time.Duration
}

// NewFailureCache wraps next. ttl must be positive.
func NewFailureCache(next ArchiveFetcher, ttl time.Duration) *FailureCache {
	return &FailureCache{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func cacheKey(day string, year int) string {
	return fmt.Sprintf("%d/%s", year, day)
}

// Fetch returns the remembered failure for (day, year) or delegates.
func (c *FailureCache) Fetch(ctx context.Context, day string, year int) error {
	key := cacheKey(day, year)
	if v, found := c.cache.Get(key); found {
		if err, ok := v.(error); ok {
			log.Debug(log.CatFetch, "Cached fetch failure", "key", key)
			return fmt.Errorf("%w (cached)", err)
		}
		log.Error(log.CatFetch, "wrong type in failure cache", "key", key)
	}

	err := c.next.Fetch(ctx, day, year)
	if err != nil {
		c.cache.Set(key, err, c.ttl)
	}
	return err
}
