package waitlist

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	countCacheKey = "waitlist:count"
	// countGenerationKey is bumped by every registration. Cached counts are
	// stored as "<generation>:<count>" and only served while the generation
	// still matches, so a read that raced a registration cannot be cached.
	countGenerationKey = "waitlist:count:gen"
)

// CountCache is the subset of the application cache used for the count.
type CountCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type countCache struct {
	cache CountCache
	ttl   time.Duration
}

func newCountCache(cache CountCache, ttl time.Duration) *countCache {
	if cache == nil || ttl <= 0 {
		return nil
	}
	return &countCache{cache: cache, ttl: ttl}
}

// get reports a hit only for a well-formed value of the current generation.
// On a miss it returns the generation a fill must be tagged with; it is read
// before the caller goes to the store.
func (cc *countCache) get(ctx context.Context) (count int64, hit bool, gen int64, err error) {
	raw, err := cc.cache.Get(ctx, countCacheKey)
	if err != nil {
		return 0, false, 0, err
	}

	gen, err = cc.generation(ctx)
	if err != nil {
		return 0, false, 0, err
	}

	cachedGen, n, ok := parseCountEntry(raw)
	if !ok || cachedGen != gen {
		return 0, false, gen, nil
	}
	return n, true, gen, nil
}

func (cc *countCache) generation(ctx context.Context) (int64, error) {
	raw, err := cc.cache.Get(ctx, countGenerationKey)
	if err != nil || raw == "" {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (cc *countCache) set(ctx context.Context, gen, count int64) error {
	return cc.cache.Set(ctx, countCacheKey, strconv.FormatInt(gen, 10)+":"+strconv.FormatInt(count, 10), cc.ttl)
}

// invalidate bumps the generation before deleting, which also voids fills
// still in flight.
func (cc *countCache) invalidate(ctx context.Context) error {
	_, incrErr := cc.cache.Incr(ctx, countGenerationKey)
	return errors.Join(incrErr, cc.cache.Delete(ctx, countCacheKey))
}

func parseCountEntry(raw string) (gen, count int64, ok bool) {
	genPart, countPart, found := strings.Cut(raw, ":")
	if !found {
		return 0, 0, false
	}

	gen, err := strconv.ParseInt(genPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	count, err = strconv.ParseInt(countPart, 10, 64)
	if err != nil || count < 0 {
		return 0, 0, false
	}
	return gen, count, true
}
