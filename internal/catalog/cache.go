package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-ecom-orders/internal/redisx"
)

// RedisCache is a cache-aside product reader. Concurrent misses on the same
// product collapse into one store load.
//
// Every eviction bumps a per-product generation. A loaded value is stored only
// if the generation is unchanged since the load began, so a read that raced
// an order cannot park the old stock in the cache.
type RedisCache struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	group singleflight.Group
}

// storeIfCurrent sets KEYS[1] to ARGV[2] when KEYS[2] still reads ARGV[1].
const storeIfCurrent = `
local gen = redis.call('GET', KEYS[2]) or ''
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = redisx.TTLProductCache
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Fetch(ctx context.Context, id int64, load func(context.Context) (Product, error)) (Product, error) {
	key := redisx.ProductKey(id)

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var p Product
		if jerr := json.Unmarshal([]byte(raw), &p); jerr == nil {
			return p, nil
		}
		logger.Warn().Int64("product_id", id).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		// redis down is not fatal for reads
		logger.Warn().Err(err).Int64("product_id", id).Msg("product cache read failed")
	}

	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		genKey := redisx.ProductGenKey(id)
		gen, gerr := c.rdb.Get(ctx, genKey).Result()
		if errors.Is(gerr, redis.Nil) {
			gen, gerr = "", nil
		}

		p, err := load(ctx)
		if err != nil {
			return Product{}, err
		}
		if gerr != nil {
			logger.Warn().Err(gerr).Int64("product_id", id).Msg("product cache generation read failed")
			return p, nil
		}
		b, err := json.Marshal(p)
		if err != nil {
			return p, nil
		}
		err = c.rdb.Eval(ctx, storeIfCurrent, []string{key, genKey}, gen, string(b), c.ttl.Milliseconds()).Err()
		if err != nil {
			logger.Warn().Err(err).Int64("product_id", id).Msg("product cache write failed")
		}
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return v.(Product), nil
}

// Evict bumps each product's generation before deleting its entry.
func (c *RedisCache) Evict(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := c.rdb.Incr(ctx, redisx.ProductGenKey(id)).Err(); err != nil {
			return err
		}
		keys = append(keys, redisx.ProductKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
