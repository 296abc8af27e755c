package cart

import (
	"context"

	"go.uber.org/zap"
)

// Notice is a user-facing message about a failed operation. It never
// carries upstream error detail.
type Notice struct {
	Op        Op
	Kind      Kind
	ProductID int64
	Message   string
}

// Notifier observes failed operations, e.g. to show a toast.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(context.Context, Notice) {})

// LogNotifier reports notices as zap warnings.
func LogNotifier(lg *zap.Logger) Notifier {
	return NotifierFunc(func(_ context.Context, n Notice) {
		lg.Warn(n.Message,
			zap.String("op", string(n.Op)),
			zap.Stringer("kind", n.Kind),
			zap.Int64("product_id", n.ProductID),
		)
	})
}

const msgOutOfStock = "Requested quantity is out of stock"

// NoticeFor builds the notice for an operation error. It reports false for
// a nil error.
func NoticeFor(op Op, productID int64, err error) (Notice, bool) {
	if err == nil {
		return Notice{}, false
	}
	n := Notice{
		Op:        op,
		Kind:      KindOf(err),
		ProductID: productID,
	}
	if n.Kind == KindOutOfStock {
		n.Message = msgOutOfStock
		return n, true
	}
	switch op {
	case OpAdd:
		n.Message = "Failed to add product"
	case OpRemove:
		n.Message = "Failed to remove product"
	default:
		n.Message = "Failed to update product amount"
	}
	return n, true
}
