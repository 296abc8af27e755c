package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/cart-keeper/internal/domain/product"
)

const instrumentationName = "github.com/xenking/cart-keeper/internal/domain/cart"

// UpdateAmount is the input of Engine.UpdateProductAmount.
type UpdateAmount struct {
	ProductID int64
	Amount    int
}

type options struct {
	key string
	lg  *zap.Logger
	tp  trace.TracerProvider
	mp  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*options)

// WithKey sets the store key holding the serialized cart.
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithLogger sets the engine logger.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.lg = lg }
}

// WithTracerProvider sets the provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider sets the provider used for operation counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// Engine owns the in-memory cart. Every accepted mutation is persisted to
// the Store before it becomes visible to readers and commit hooks.
//
// Operations are serialized: opMu is held across the whole
// check-then-commit span, including inventory calls, so an operation
// always computes its next state from the latest committed cart. Readers
// only take mu and never wait on the inventory.
type Engine struct {
	store     Store
	inventory product.Inventory
	key       string
	lg        *zap.Logger
	tracer    trace.Tracer
	ops       metric.Int64Counter

	opMu sync.Mutex

	mu    sync.RWMutex
	items Cart
	hooks []func(Cart)
}

// Open creates the Engine and hydrates it from the store. An absent or
// unreadable stored cart yields an empty cart; only a failing store is
// reported as an error.
func Open(ctx context.Context, store Store, inventory product.Inventory, opts ...Option) (*Engine, error) {
	o := options{
		key: DefaultKey,
		lg:  zap.NewNop(),
		tp:  tracenoop.NewTracerProvider(),
		mp:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ops, err := o.mp.Meter(instrumentationName).Int64Counter("cart.operations",
		metric.WithDescription("Cart mutations by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create operations counter")
	}

	e := &Engine{
		store:     store,
		inventory: inventory,
		key:       o.key,
		lg:        o.lg,
		tracer:    o.tp.Tracer(instrumentationName),
		ops:       ops,
	}

	items, err := e.hydrate(ctx)
	if err != nil {
		return nil, err
	}
	e.items = items

	return e, nil
}

func (e *Engine) hydrate(ctx context.Context) (Cart, error) {
	data, err := e.store.Get(ctx, e.key)
	if errors.Is(err, ErrNoValue) {
		return Cart{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read stored cart")
	}

	c, err := Unmarshal(data)
	if err != nil {
		e.lg.Warn("Discarding unreadable stored cart",
			zap.String("key", e.key),
			zap.Error(err),
		)
		return Cart{}, nil
	}

	e.lg.Debug("Cart hydrated", zap.String("key", e.key), zap.Int("items", len(c)))
	return c, nil
}

// Cart returns a snapshot of the latest committed cart.
func (e *Engine) Cart() Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Clone()
}

// OnCommit registers fn to receive every committed cart. Hooks run in
// commit order on the committing goroutine.
func (e *Engine) OnCommit(fn func(Cart)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// AddProduct adds one unit of the product. A product entering the cart is
// inserted with amount 1 using fresh inventory metadata; an existing line is
// incremented only when stock covers the new amount.
func (e *Engine) AddProduct(ctx context.Context, id int64) error {
	return e.run(ctx, OpAdd, id, func(ctx context.Context) (bool, error) {
		stock, err := e.inventory.Stock(ctx, id)
		if err != nil {
			return false, &UpstreamError{Op: OpAdd, Err: errors.Wrap(err, "get stock")}
		}

		current := e.Cart()
		item, ok := current.Find(id)
		if !ok {
			p, err := e.inventory.Product(ctx, id)
			if err != nil {
				return false, &UpstreamError{Op: OpAdd, Err: errors.Wrap(err, "get product")}
			}
			it := newItem(p)
			it.ID = id
			return true, e.commit(ctx, OpAdd, current.appendItem(it))
		}

		want := item.Amount + 1
		if stock.Amount < want {
			return false, &OutOfStockError{ProductID: id, Requested: want, Available: stock.Amount}
		}
		return true, e.commit(ctx, OpAdd, current.withAmount(id, want))
	})
}

// RemoveProduct deletes the product line. It returns ErrNotInCart when the
// cart does not hold the product.
func (e *Engine) RemoveProduct(ctx context.Context, id int64) error {
	return e.run(ctx, OpRemove, id, func(ctx context.Context) (bool, error) {
		current := e.Cart()
		if current.Index(id) < 0 {
			return false, ErrNotInCart
		}
		return true, e.commit(ctx, OpRemove, current.without(id))
	})
}

// UpdateProductAmount sets the amount of a product line when stock covers
// it. Non-positive amounts are ignored without contacting the inventory.
//
// The stock gate runs before the cart lookup. An id the cart does not hold
// therefore still costs an inventory call and can fail with *UpstreamError
// or *OutOfStockError; when stock covers the amount it leaves the cart
// unchanged and returns nil.
func (e *Engine) UpdateProductAmount(ctx context.Context, req UpdateAmount) error {
	return e.run(ctx, OpUpdateAmount, req.ProductID, func(ctx context.Context) (bool, error) {
		if req.Amount <= 0 {
			return false, nil
		}

		stock, err := e.inventory.Stock(ctx, req.ProductID)
		if err != nil {
			return false, &UpstreamError{Op: OpUpdateAmount, Err: errors.Wrap(err, "get stock")}
		}
		if stock.Amount < req.Amount {
			return false, &OutOfStockError{ProductID: req.ProductID, Requested: req.Amount, Available: stock.Amount}
		}

		current := e.Cart()
		if current.Index(req.ProductID) < 0 {
			return false, nil
		}
		return true, e.commit(ctx, OpUpdateAmount, current.withAmount(req.ProductID, req.Amount))
	})
}

// run executes one operation under opMu and records its span and outcome.
// fn reports whether it committed a new cart.
func (e *Engine) run(ctx context.Context, op Op, id int64, fn func(ctx context.Context) (bool, error)) error {
	ctx, span := e.tracer.Start(ctx, "cart."+string(op),
		trace.WithAttributes(attribute.Int64("product.id", id)),
	)
	defer span.End()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	committed, err := fn(ctx)

	outcome := "committed"
	switch {
	case err != nil:
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	case !committed:
		outcome = "noop"
	}
	span.SetAttributes(attribute.String("cart.outcome", outcome))
	e.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("outcome", outcome),
	))

	return err
}

// commit persists next and then publishes it. On a store failure the
// in-memory cart is left untouched.
func (e *Engine) commit(ctx context.Context, op Op, next Cart) error {
	if err := e.store.Set(ctx, e.key, Marshal(next)); err != nil {
		return &StoreError{Op: op, Err: err}
	}

	e.mu.Lock()
	e.items = next
	hooks := e.hooks
	e.mu.Unlock()

	for _, h := range hooks {
		h(next.Clone())
	}

	e.lg.Debug("Cart committed",
		zap.String("op", string(op)),
		zap.Int("items", len(next)),
		zap.Int("units", next.Units()),
	)
	return nil
}
