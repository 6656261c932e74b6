package profanity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// VerdictCache stores verdicts by key
type VerdictCache interface {
	Get(ctx context.Context, key string) (verdict bool, found bool, err error)
	Set(ctx context.Context, key string, verdict bool) error
}

type MemVerdictCache struct {
	data *expirable.LRU[string, bool]
}

var _ VerdictCache = MemVerdictCache{}

func NewMemVerdictCache(capacity int, ttl time.Duration) MemVerdictCache {
	return MemVerdictCache{
		data: expirable.NewLRU[string, bool](capacity, nil, ttl),
	}
}

func (c MemVerdictCache) Get(ctx context.Context, key string) (bool, bool, error) {
	v, ok := c.data.Get(key)
	return v, ok, nil
}

func (c MemVerdictCache) Set(ctx context.Context, key string, verdict bool) error {
	c.data.Add(key, verdict)
	return nil
}

// RedisVerdictCache shares verdicts between instances, with a small local
// TinyLFU in front of redis
type RedisVerdictCache struct {
	data *cache.Cache
	rdb  *redis.Client
	ttl  time.Duration
}

var _ VerdictCache = (*RedisVerdictCache)(nil)

func NewRedisVerdictCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisVerdictCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisVerdictCache{
		data: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(10_000, ttl),
		}),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *RedisVerdictCache) Get(ctx context.Context, key string) (bool, bool, error) {
	var verdict bool
	err := c.data.Get(ctx, key, &verdict)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return verdict, true, nil
}

func (c *RedisVerdictCache) Set(ctx context.Context, key string, verdict bool) error {
	return c.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: verdict,
		TTL:   c.ttl,
	})
}

func (c *RedisVerdictCache) Close() error {
	return c.rdb.Close()
}

// CachedClassifier memoizes verdicts of another classifier. Fallback
// verdicts produced by a failed lookup are never stored.
type CachedClassifier struct {
	inner  Classifier
	cache  VerdictCache
	logger *slog.Logger
}

func NewCachedClassifier(inner Classifier, c VerdictCache, logger *slog.Logger) *CachedClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClassifier{
		inner:  inner,
		cache:  c,
		logger: logger.With("component", "profanity-cache"),
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "profanity/" + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) bool {
	key := cacheKey(text)
	verdict, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("verdict cache read failed", "err", err)
	}
	if found {
		cacheLookupCount.WithLabelValues("hit").Inc()
		return verdict
	}
	cacheLookupCount.WithLabelValues("miss").Inc()

	definitive := true
	if src, ok := c.inner.(verdictSource); ok {
		verdict, definitive = src.verdict(ctx, text)
	} else {
		verdict = c.inner.Classify(ctx, text)
	}
	if !definitive {
		return verdict
	}
	if err := c.cache.Set(ctx, key, verdict); err != nil {
		c.logger.Warn("verdict cache write failed", "err", err)
	}
	return verdict
}
