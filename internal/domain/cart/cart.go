// Package cart implements the shopping cart state manager: an ordered,
// id-unique collection of items gated on live stock and mirrored to a
// durable key-value store after every accepted mutation.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cart-keeper/internal/domain/product"
)

// DefaultKey is the well-known store key holding the serialized cart.
const DefaultKey = "@RocketShoes:cart"

// ErrNoValue is returned by a Store when the requested key is absent.
var ErrNoValue = errors.New("no value stored")

// Item is one product line in the cart. Metadata is copied from the
// inventory when the product first enters the cart and is never refreshed.
type Item struct {
	ID     int64
	Title  string
	Price  decimal.Decimal
	Image  string
	Amount int
}

// newItem builds the first line for a product entering the cart.
func newItem(p *product.Product) Item {
	return Item{
		ID:     p.ID,
		Title:  p.Title,
		Price:  p.Price,
		Image:  p.Image,
		Amount: 1,
	}
}

// Cart is the ordered collection of items, at most one per product id.
type Cart []Item

// Index returns the position of the item with the given id, or -1.
func (c Cart) Index(id int64) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the item with the given id.
func (c Cart) Find(id int64) (Item, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return Item{}, false
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Len reports the number of distinct products.
func (c Cart) Len() int { return len(c) }

// Units reports the total number of units across all lines.
func (c Cart) Units() int {
	n := 0
	for _, it := range c {
		n += it.Amount
	}
	return n
}

// Total is the sum of price times amount over all lines.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Amount))))
	}
	return total
}

// appendItem returns a new cart with it appended.
func (c Cart) appendItem(it Item) Cart {
	out := make(Cart, 0, len(c)+1)
	out = append(out, c...)
	return append(out, it)
}

// withAmount returns a new cart where the item matching id has the given
// amount. Items not matching id pass through unchanged.
func (c Cart) withAmount(id int64, amount int) Cart {
	out := c.Clone()
	for i := range out {
		if out[i].ID == id {
			out[i].Amount = amount
		}
	}
	return out
}

// without returns a new cart with the item matching id filtered out.
func (c Cart) without(id int64) Cart {
	out := make(Cart, 0, len(c))
	for _, it := range c {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// Store is the durable key-value byte store mirroring the cart. Set replaces
// the whole value; there are no partial writes.
type Store interface {
	// Get returns ErrNoValue when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
