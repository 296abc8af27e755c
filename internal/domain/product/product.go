package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the catalog metadata for a purchasable item.
type Product struct {
	ID    int64
	Title string
	Price decimal.Decimal
	Image string
}

// Stock is the live availability of a product. It is never cached.
type Stock struct {
	ProductID int64
	Amount    int
}

// Inventory is the remote service providing live stock counts and product
// metadata. Implementations report every failure (transport, decoding,
// unknown product) as an opaque error.
type Inventory interface {
	Stock(ctx context.Context, id int64) (*Stock, error)
	Product(ctx context.Context, id int64) (*Product, error)
}
