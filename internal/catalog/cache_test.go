package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyboard() Product {
	return Product{
		ID:            1,
		Name:          "Keyboard",
		Price:         decimal.RequireFromString("9.99"),
		ReleaseDate:   NewDate(2023, time.May, 1),
		Available:     true,
		StockQuantity: 5,
	}
}

var productKeys = []string{"product:1", "product:1:gen"}

func TestRedisCacheMissLoadsAndStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)
	p := keyboard()
	b, err := json.Marshal(p)
	require.NoError(t, err)

	mock.ExpectGet("product:1").RedisNil()
	mock.ExpectGet("product:1:gen").SetVal("4")
	mock.ExpectEval(storeIfCurrent, productKeys, "4", string(b), time.Minute.Milliseconds()).SetVal(int64(1))

	var loads atomic.Int32
	got, err := c.Fetch(context.Background(), 1, func(context.Context) (Product, error) {
		loads.Add(1)
		return p, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", got.Name)
	assert.Equal(t, int32(1), loads.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheStoreIsGuardedByGeneration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)
	p := keyboard()
	b, _ := json.Marshal(p)

	// no generation yet; an eviction during the load makes the guarded set a no-op
	mock.ExpectGet("product:1").RedisNil()
	mock.ExpectGet("product:1:gen").RedisNil()
	mock.ExpectEval(storeIfCurrent, productKeys, "", string(b), time.Minute.Milliseconds()).SetVal(int64(0))

	got, err := c.Fetch(context.Background(), 1, func(context.Context) (Product, error) { return p, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)
	b, err := json.Marshal(keyboard())
	require.NoError(t, err)

	mock.ExpectGet("product:1").SetVal(string(b))

	got, err := c.Fetch(context.Background(), 1, func(context.Context) (Product, error) {
		t.Fatal("load must not run on a hit")
		return Product{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, "2023-05-01", got.ReleaseDate.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheReadErrorFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)
	p := keyboard()

	mock.ExpectGet("product:1").SetErr(errors.New("connection refused"))
	mock.ExpectGet("product:1:gen").SetErr(errors.New("connection refused"))

	got, err := c.Fetch(context.Background(), 1, func(context.Context) (Product, error) { return p, nil })
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheDoesNotStoreMisses(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)

	mock.ExpectGet("product:9").RedisNil()
	mock.ExpectGet("product:9:gen").RedisNil()

	_, err := c.Fetch(context.Background(), 9, func(context.Context) (Product, error) {
		return Product{}, &ProductNotFoundError{ProductID: 9}
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheEvictBumpsGeneration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)

	mock.ExpectIncr("product:1:gen").SetVal(5)
	mock.ExpectIncr("product:3:gen").SetVal(1)
	mock.ExpectDel("product:1", "product:3").SetVal(1)

	require.NoError(t, c.Evict(context.Background(), 1, 3))
	require.NoError(t, c.Evict(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheEvictStopsOnGenerationError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Minute)

	mock.ExpectIncr("product:1:gen").SetErr(errors.New("redis down"))

	assert.Error(t, c.Evict(context.Background(), 1, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
