package cart

import (
	"context"
	"sync"
)

// Accessor is the caller-facing surface of a single Engine: snapshot reads,
// subscriptions and the three mutations. Failed mutations are reported to
// the Notifier and also returned, so callers may ignore or inspect them.
type Accessor struct {
	engine   *Engine
	notifier Notifier

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	ch     chan Cart
	closed bool
}

// NewAccessor wraps engine. A nil notifier discards notices.
func NewAccessor(engine *Engine, notifier Notifier) *Accessor {
	if notifier == nil {
		notifier = Discard
	}
	a := &Accessor{
		engine:   engine,
		notifier: notifier,
		subs:     make(map[*subscription]struct{}),
	}
	engine.OnCommit(a.broadcast)
	return a
}

// Cart returns the latest committed cart.
func (a *Accessor) Cart() Cart {
	return a.engine.Cart()
}

// AddProduct adds one unit of the product.
func (a *Accessor) AddProduct(ctx context.Context, id int64) error {
	return a.report(ctx, OpAdd, id, a.engine.AddProduct(ctx, id))
}

// RemoveProduct removes the product line.
func (a *Accessor) RemoveProduct(ctx context.Context, id int64) error {
	return a.report(ctx, OpRemove, id, a.engine.RemoveProduct(ctx, id))
}

// UpdateProductAmount sets the amount of a product line.
func (a *Accessor) UpdateProductAmount(ctx context.Context, req UpdateAmount) error {
	return a.report(ctx, OpUpdateAmount, req.ProductID, a.engine.UpdateProductAmount(ctx, req))
}

func (a *Accessor) report(ctx context.Context, op Op, id int64, err error) error {
	if n, ok := NoticeFor(op, id, err); ok {
		a.notifier.Notify(ctx, n)
	}
	return err
}

// Subscribe returns a channel receiving the current cart and then every
// committed cart. A slow reader only sees the latest unread state. cancel
// closes the channel and may be called more than once.
func (a *Accessor) Subscribe() (<-chan Cart, func()) {
	s := &subscription{ch: make(chan Cart, 1)}

	a.mu.Lock()
	a.subs[s] = struct{}{}
	s.ch <- a.engine.Cart()
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		delete(a.subs, s)
		close(s.ch)
	}
	return s.ch, cancel
}

// broadcast replaces any unread snapshot with c.
func (a *Accessor) broadcast(c Cart) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for s := range a.subs {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- c.Clone()
	}
}
