package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotent order placement: idem:order:place:{idempotency_key} -> {"fp":..,"code":..}
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Product read cache: product:{id} -> product JSON (no image bytes)
	KeyProduct = "product:%d"

	// Product cache generation, bumped on every eviction: product:{id}:gen
	KeyProductGen = "product:%d:gen"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLIdemPending  = time.Minute
	TTLProductCache = 10 * time.Minute
	TTLDedup        = 48 * time.Hour
)

func ProductKey(id int64) string { return fmt.Sprintf(KeyProduct, id) }

func ProductGenKey(id int64) string { return fmt.Sprintf(KeyProductGen, id) }

func IdemOrderKey(key string) string { return fmt.Sprintf(KeyIdemOrderPlace, key) }

func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
