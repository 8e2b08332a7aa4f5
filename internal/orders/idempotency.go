package orders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-ecom-orders/internal/redisx"
)

var (
	ErrIdempotencyInProgress = errors.New("a request with this idempotency key is in progress")
	ErrIdempotencyKeyReused  = errors.New("idempotency key reused with a different request")
)

// IdempotencyRecord is what an Idempotency-Key holds. OrderCode stays empty
// while the first request is still placing its order.
type IdempotencyRecord struct {
	Fingerprint string `json:"fp"`
	OrderCode   string `json:"code,omitempty"`
}

func (r IdempotencyRecord) Pending() bool { return r.OrderCode == "" }

// IdempotencyStore binds an Idempotency-Key to one request and its order.
type IdempotencyStore interface {
	// Claim stores rec unless key is taken, in which case the current record
	// is returned with claimed false.
	Claim(ctx context.Context, key string, rec IdempotencyRecord) (current IdempotencyRecord, claimed bool, err error)
	// Reclaim swaps old for next only if key still holds old.
	Reclaim(ctx context.Context, key string, old, next IdempotencyRecord) (bool, error)
	Complete(ctx context.Context, key string, rec IdempotencyRecord) error
	// Release drops key only if it still holds rec.
	Release(ctx context.Context, key string, rec IdempotencyRecord) error
}

// Fingerprint hashes the normalized request a key is bound to.
func Fingerprint(req Request) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// compareAndSet replaces KEYS[1] with ARGV[2] when it equals ARGV[1].
// An empty ARGV[2] deletes it.
const compareAndSet = `
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == '' then
	redis.call('DEL', KEYS[1])
else
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return 1
`

type RedisIdempotency struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	pending time.Duration
}

func NewRedisIdempotency(rdb redis.Cmdable, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = redisx.TTLIdempotency
	}
	return &RedisIdempotency{rdb: rdb, ttl: ttl, pending: redisx.TTLIdemPending}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string, rec IdempotencyRecord) (IdempotencyRecord, bool, error) {
	rkey := redisx.IdemOrderKey(key)
	val := encodeRecord(rec)
	// a record can expire between SETNX and GET; try again once
	for attempt := 0; attempt < 2; attempt++ {
		won, err := redisx.ClaimValue(ctx, r.rdb, rkey, val, r.pending)
		if err != nil {
			return IdempotencyRecord{}, false, err
		}
		if won {
			return rec, true, nil
		}
		raw, err := r.rdb.Get(ctx, rkey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return IdempotencyRecord{}, false, err
		}
		var cur IdempotencyRecord
		if err := json.Unmarshal([]byte(raw), &cur); err != nil {
			return IdempotencyRecord{}, false, err
		}
		return cur, false, nil
	}
	return IdempotencyRecord{}, false, errors.New("idempotency key churned during claim")
}

func (r *RedisIdempotency) Reclaim(ctx context.Context, key string, old, next IdempotencyRecord) (bool, error) {
	n, err := r.rdb.Eval(ctx, compareAndSet, []string{redisx.IdemOrderKey(key)},
		encodeRecord(old), encodeRecord(next), r.pending.Milliseconds()).Int()
	return n == 1, err
}

func (r *RedisIdempotency) Complete(ctx context.Context, key string, rec IdempotencyRecord) error {
	return r.rdb.Set(ctx, redisx.IdemOrderKey(key), encodeRecord(rec), r.ttl).Err()
}

func (r *RedisIdempotency) Release(ctx context.Context, key string, rec IdempotencyRecord) error {
	return r.rdb.Eval(ctx, compareAndSet, []string{redisx.IdemOrderKey(key)},
		encodeRecord(rec), "", int64(0)).Err()
}

func encodeRecord(rec IdempotencyRecord) string {
	b, _ := json.Marshal(rec)
	return string(b)
}
