package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Op names a cart mutation.
type Op string

const (
	OpAdd          Op = "AddProduct"
	OpRemove       Op = "RemoveProduct"
	OpUpdateAmount Op = "UpdateProductAmount"
)

// ErrNotInCart is returned when removing a product the cart does not hold.
var ErrNotInCart = errors.New("product not in cart")

// OutOfStockError indicates the requested quantity exceeds live stock.
type OutOfStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, only %d in stock", e.ProductID, e.Requested, e.Available)
}

// UpstreamError wraps an inventory failure that aborted an operation.
type UpstreamError struct {
	Op  Op
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: inventory: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError wraps a durable store failure. The in-memory cart is left
// unchanged when it is returned.
type StoreError struct {
	Op  Op
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: persist cart: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Kind classifies an operation error.
type Kind int

const (
	KindUnknown Kind = iota
	KindOutOfStock
	KindNotInCart
	KindUpstream
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindOutOfStock:
		return "out_of_stock"
	case KindNotInCart:
		return "not_in_cart"
	case KindUpstream:
		return "upstream_failure"
	case KindStorage:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// KindOf classifies err. It returns KindUnknown for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if _, ok := errors.Into[*OutOfStockError](err); ok {
		return KindOutOfStock
	}
	if errors.Is(err, ErrNotInCart) {
		return KindNotInCart
	}
	if _, ok := errors.Into[*UpstreamError](err); ok {
		return KindUpstream
	}
	if _, ok := errors.Into[*StoreError](err); ok {
		return KindStorage
	}
	return KindUnknown
}
