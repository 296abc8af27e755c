package inventory

import (
	"cmp"
	"context"
	"io"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cart-keeper/internal/domain/product"
)

// ErrUnknownProduct is returned by Catalog lookups for ids it does not hold.
var ErrUnknownProduct = errors.New("unknown product")

// Catalog is an in-memory inventory. It implements product.Inventory
// directly and serves the HTTP API consumed by Client.
type Catalog struct {
	mu       sync.RWMutex
	products map[int64]product.Product
	stock    map[int64]int
}

var _ product.Inventory = (*Catalog)(nil)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[int64]product.Product),
		stock:    make(map[int64]int),
	}
}

// LoadCatalog reads a document of the form
//
//	{"products": [{"id","title","price","image"}, ...], "stock": [{"id","amount"}, ...]}
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}

	c := NewCatalog()
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				var p product.Product
				if err := p.Decode(d); err != nil {
					return err
				}
				c.products[p.ID] = p
				return nil
			})
		case "stock":
			return d.Arr(func(d *jx.Decoder) error {
				var s product.Stock
				if err := s.Decode(d); err != nil {
					return err
				}
				if s.ProductID <= 0 {
					return errors.New("stock entry without id")
				}
				c.stock[s.ProductID] = s.Amount
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return c, nil
}

// Put adds or replaces a product and its stock.
func (c *Catalog) Put(p product.Product, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
	c.stock[p.ID] = stock
}

// SetStock changes the availability of a product.
func (c *Catalog) SetStock(id int64, amount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[id] = amount
}

func (c *Catalog) Stock(_ context.Context, id int64) (*product.Stock, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	amount, ok := c.stock[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProduct, "stock %d", id)
	}
	return &product.Stock{ProductID: id, Amount: amount}, nil
}

func (c *Catalog) Product(_ context.Context, id int64) (*product.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProduct, "product %d", id)
	}
	return &p, nil
}

// Products lists the catalog ordered by id.
func (c *Catalog) Products() []product.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]product.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Handler serves GET /products, GET /products/{id} and GET /stock/{id}.
func (c *Catalog) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, _ *http.Request) {
		var e jx.Encoder
		e.ArrStart()
		for _, p := range c.Products() {
			p.Encode(&e)
		}
		e.ArrEnd()
		writeJSON(w, http.StatusOK, e.Bytes())
	})
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := c.Product(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, []byte("{}"))
			return
		}
		var e jx.Encoder
		p.Encode(&e)
		writeJSON(w, http.StatusOK, e.Bytes())
	})
	mux.HandleFunc("GET /stock/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		s, err := c.Stock(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, []byte("{}"))
			return
		}
		var e jx.Encoder
		s.Encode(&e)
		writeJSON(w, http.StatusOK, e.Bytes())
	})
	return mux
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, []byte("{}"))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
