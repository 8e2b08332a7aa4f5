package cachesync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-ecom-orders/internal/kafka"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
	"github.com/ariefcatur/go-ecom-orders/internal/redisx"
)

func placedMessage(t *testing.T, eventID string, productIDs ...int64) kafkago.Message {
	t.Helper()
	items := make([]orders.PlacedItem, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, orders.PlacedItem{ProductID: id, Quantity: 1, TotalPrice: decimal.NewFromInt(1)})
	}
	payload, err := json.Marshal(orders.OrderPlacedPayload{OrderCode: "ORD12345678", Items: items})
	require.NoError(t, err)
	env, err := json.Marshal(orders.Envelope{
		EventID:      eventID,
		EventType:    orders.EventOrderPlaced,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	})
	require.NoError(t, err)
	return kafkago.Message{
		Value:   env,
		Headers: []kafkago.Header{{Key: kafkax.HeaderEventType, Value: []byte(orders.EventOrderPlaced)}},
	}
}

func TestHandleOrderPlacedEvicts(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := &Service{Cache: catalog.NewRedisCache(db, time.Minute), Redis: db, ServiceName: "cachesync"}

	mock.ExpectSetNX(redisx.DedupKey("cachesync", "ev-1"), "1", redisx.TTLDedup).SetVal(true)
	mock.ExpectIncr("product:1:gen").SetVal(1)
	mock.ExpectIncr("product:2:gen").SetVal(1)
	mock.ExpectDel("product:1", "product:2").SetVal(2)

	err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, "ev-1", 1, 2, 1))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleOrderPlacedSkipsDuplicates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := &Service{Cache: catalog.NewRedisCache(db, time.Minute), Redis: db, ServiceName: "cachesync"}

	mock.ExpectSetNX(redisx.DedupKey("cachesync", "ev-1"), "1", redisx.TTLDedup).SetVal(false)

	err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, "ev-1", 1))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleOrderPlacedReleasesClaimOnFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := &Service{Cache: catalog.NewRedisCache(db, time.Minute), Redis: db, ServiceName: "cachesync"}
	dkey := redisx.DedupKey("cachesync", "ev-2")

	mock.ExpectSetNX(dkey, "1", redisx.TTLDedup).SetVal(true)
	mock.ExpectIncr("product:7:gen").SetVal(3)
	mock.ExpectDel("product:7").SetErr(errors.New("redis down"))
	mock.ExpectDel(dkey).SetVal(1)

	err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, "ev-2", 7))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleOrderPlacedIgnoresOtherEvents(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := &Service{Cache: catalog.NewRedisCache(db, time.Minute), Redis: db, ServiceName: "cachesync"}

	other := kafkago.Message{
		Value:   []byte(`{}`),
		Headers: []kafkago.Header{{Key: kafkax.HeaderEventType, Value: []byte("OrderCancelled")}},
	}
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), other))
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
