package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventOrderPlaced = "OrderPlaced"

// EventPublisher ships an encoded event; key keeps one order's events ordered.
type EventPublisher interface {
	Publish(ctx context.Context, key []byte, eventType string, value []byte) error
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order code
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderPlacedPayload struct {
	OrderCode    string          `json:"order_code"`
	CustomerName string          `json:"customer_name"`
	Email        string          `json:"email"`
	OrderDate    string          `json:"order_date"`
	Items        []PlacedItem    `json:"items"`
	Total        decimal.Decimal `json:"total"`
}

// ProductIDs lists the distinct products touched by the order.
func (p OrderPlacedPayload) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(p.Items))
	out := make([]int64, 0, len(p.Items))
	for _, it := range p.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		out = append(out, it.ProductID)
	}
	return out
}

func newOrderPlacedEnvelope(o Order, producer string, at time.Time) (Envelope, error) {
	resp := ToResponse(o)
	items := make([]PlacedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, PlacedItem{ProductID: it.ProductID, Quantity: it.Quantity, TotalPrice: it.TotalPrice})
	}
	payload, err := json.Marshal(OrderPlacedPayload{
		OrderCode:    o.Code,
		CustomerName: o.CustomerName,
		Email:        o.Email,
		OrderDate:    resp.OrderDate,
		Items:        items,
		Total:        resp.Total,
	})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: o.Code,
		Payload:       payload,
	}, nil
}
