package orders

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/logging"
	"github.com/ariefcatur/go-ecom-orders/internal/validation"
)

var logger = logging.New("orders")

const defaultCodeAttempts = 5

type Service struct {
	repo         Repository
	events       EventPublisher
	producer     string
	idem         IdempotencyStore
	cache        catalog.Cache
	validate     *validatorv10.Validate
	newCode      func() string
	nowFunc      func() time.Time
	codeAttempts int
}

type Option func(*Service)

// WithEvents publishes OrderPlaced after each commit, stamped with producer.
func WithEvents(p EventPublisher, producer string) Option {
	return func(s *Service) { s.events, s.producer = p, producer }
}

func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) { s.idem = store }
}

// WithProductCache evicts cached products whose stock an order changed.
func WithProductCache(c catalog.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithCodeGenerator(gen func() string) Option {
	return func(s *Service) { s.newCode = gen }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

func WithCodeAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.codeAttempts = n
		}
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		validate:     validation.New(),
		newCode:      NewCode,
		nowFunc:      time.Now,
		codeAttempts: defaultCodeAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder decrements stock for every line and persists the order in one
// transaction. Nothing is left behind when any line fails.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (Response, error) {
	req = normalize(req)
	if err := validation.Check(s.validate, req); err != nil {
		return Response{}, err
	}

	var order Order
	for attempt := 1; ; attempt++ {
		order = s.newOrder(req)
		err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return s.fill(ctx, tx, &order, req.Items)
		})
		if err == nil {
			break
		}
		if errors.Is(err, ErrOrderCodeCollision) && attempt < s.codeAttempts {
			logger.Warn().Str("order_code", order.Code).Int("attempt", attempt).Msg("order code collision, retrying")
			continue
		}
		return Response{}, s.placementError(err)
	}

	logger.Info().
		Str("order_code", order.Code).
		Int("lines", len(order.Items)).
		Msg("order placed")

	s.evictProducts(ctx, order)
	s.publishPlaced(ctx, order)
	return ToResponse(order), nil
}

// PlaceOrderWithKey places at most one order per key. The key is claimed
// before placement; a repeat of the same request replays the stored order,
// and replayed reports that. A different request under a used key fails with
// ErrIdempotencyKeyReused, and one racing the first gets ErrIdempotencyInProgress.
func (s *Service) PlaceOrderWithKey(ctx context.Context, key string, req Request) (resp Response, replayed bool, err error) {
	if key == "" || s.idem == nil {
		resp, err = s.PlaceOrder(ctx, req)
		return resp, false, err
	}

	req = normalize(req)
	claim := IdempotencyRecord{Fingerprint: Fingerprint(req)}
	cur, claimed, err := s.idem.Claim(ctx, key, claim)
	if err != nil {
		logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency claim failed")
		resp, err = s.PlaceOrder(ctx, req)
		return resp, false, err
	}
	if !claimed {
		resp, err = s.replay(ctx, key, cur, claim)
		if !errors.Is(err, errKeyReclaimed) {
			return resp, err == nil, err
		}
	}

	resp, err = s.PlaceOrder(ctx, req)
	// the claim must settle even when the caller has gone away
	settle := context.WithoutCancel(ctx)
	if err != nil {
		if rerr := s.idem.Release(settle, key, claim); rerr != nil {
			logger.Warn().Err(rerr).Str("idempotency_key", key).Msg("idempotency release failed")
		}
		return Response{}, false, err
	}
	done := IdempotencyRecord{Fingerprint: claim.Fingerprint, OrderCode: resp.OrderCode}
	if err := s.idem.Complete(settle, key, done); err != nil {
		logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency complete failed")
	}
	return resp, false, nil
}

var errKeyReclaimed = errors.New("idempotency key reclaimed")

func (s *Service) replay(ctx context.Context, key string, cur, claim IdempotencyRecord) (Response, error) {
	switch {
	case cur.Fingerprint != claim.Fingerprint:
		return Response{}, ErrIdempotencyKeyReused
	case cur.Pending():
		return Response{}, ErrIdempotencyInProgress
	}
	prev, err := s.GetOrder(ctx, cur.OrderCode)
	if !errors.Is(err, ErrOrderNotFound) {
		return prev, err
	}

	// the order was deleted since; the key may place a new one
	ok, err := s.idem.Reclaim(ctx, key, cur, claim)
	if err != nil {
		logger.Error().Err(err).Str("idempotency_key", key).Msg("idempotency reclaim failed")
		return Response{}, &PersistenceError{Op: "reclaim idempotency key", Err: err}
	}
	if !ok {
		return Response{}, ErrIdempotencyInProgress
	}
	return Response{}, errKeyReclaimed
}

func (s *Service) ListOrders(ctx context.Context) ([]Response, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list orders")
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	out := make([]Response, 0, len(list))
	for _, o := range list {
		out = append(out, ToResponse(o))
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, code string) (Response, error) {
	o, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Response{}, err
		}
		logger.Error().Err(err).Str("order_code", code).Msg("get order")
		return Response{}, &PersistenceError{Op: "get order", Err: err}
	}
	return ToResponse(o), nil
}

// DeleteOrder removes an order with its items. Stock is not restored.
func (s *Service) DeleteOrder(ctx context.Context, code string) error {
	if err := s.repo.DeleteByCode(ctx, code); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return err
		}
		logger.Error().Err(err).Str("order_code", code).Msg("delete order")
		return &PersistenceError{Op: "delete order", Err: err}
	}
	logger.Info().Str("order_code", code).Msg("order deleted")
	return nil
}

func (s *Service) newOrder(req Request) Order {
	now := s.nowFunc()
	return Order{
		Code:         s.newCode(),
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Status:       StatusPlaced,
		OrderDate:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		Items:        make([]OrderItem, 0, len(req.Items)),
	}
}

// fill row-locks every distinct product in ascending id order before touching
// stock, so placements sharing products cannot deadlock. Lines are then
// applied in request order and the first failing line is the one reported.
func (s *Service) fill(ctx context.Context, tx Tx, order *Order, lines []LineRequest) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	locked := make(map[int64]catalog.Product, len(ids))
	missing := make(map[int64]error)
	for _, id := range ids {
		p, err := tx.FindByID(ctx, id)
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			missing[id] = err
		case err != nil:
			return err
		default:
			p.ImageData = nil
			locked[id] = p
		}
	}

	for _, line := range lines {
		if err, ok := missing[line.ProductID]; ok {
			return err
		}
		p := locked[line.ProductID]
		if err := tx.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
			return err
		}
		order.Items = append(order.Items, OrderItem{
			ProductID:  p.ID,
			Product:    p,
			Quantity:   line.Quantity,
			TotalPrice: LineTotal(p.Price, line.Quantity),
		})
	}
	return tx.CreateOrder(ctx, order)
}

func normalize(req Request) Request {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Email = strings.TrimSpace(req.Email)
	return req
}

func (s *Service) placementError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, catalog.ErrInsufficientStock):
		logger.Info().Err(err).Msg("order rejected")
		return err
	case errors.Is(err, validation.ErrInvalidInput):
		return err
	}
	logger.Error().Err(err).Msg("place order")
	return &PersistenceError{Op: "place order", Err: err}
}

func (s *Service) evictProducts(ctx context.Context, o Order) {
	if s.cache == nil {
		return
	}
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	if err := s.cache.Evict(ctx, ids...); err != nil {
		logger.Warn().Err(err).Str("order_code", o.Code).Msg("product cache eviction failed")
	}
}

func (s *Service) publishPlaced(ctx context.Context, o Order) {
	if s.events == nil {
		return
	}
	env, err := newOrderPlacedEnvelope(o, s.producer, s.nowFunc())
	if err != nil {
		logger.Error().Err(err).Str("order_code", o.Code).Msg("build order placed event")
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		logger.Error().Err(err).Str("order_code", o.Code).Msg("encode order placed event")
		return
	}
	// the order is committed; a lost event must not fail the request
	if err := s.events.Publish(ctx, PartitionKey(o.Code), EventOrderPlaced, b); err != nil {
		logger.Error().Err(err).Str("order_code", o.Code).Msg("publish order placed event")
	}
}
