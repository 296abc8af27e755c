package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cart-keeper/internal/domain/product"
)

// --- Fakes ---

type fakeInventory struct {
	mu           sync.Mutex
	stock        map[int64]int
	products     map[int64]product.Product
	stockErr     error
	productErr   error
	stockCalls   int
	productCalls int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		stock:    make(map[int64]int),
		products: make(map[int64]product.Product),
	}
}

func (f *fakeInventory) with(p product.Product, stock int) *fakeInventory {
	f.products[p.ID] = p
	f.stock[p.ID] = stock
	return f
}

func (f *fakeInventory) setStock(id int64, amount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[id] = amount
}

func (f *fakeInventory) Stock(_ context.Context, id int64) (*product.Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockCalls++
	if f.stockErr != nil {
		return nil, f.stockErr
	}
	amount, ok := f.stock[id]
	if !ok {
		return nil, errors.Errorf("stock %d: 404", id)
	}
	return &product.Stock{ProductID: id, Amount: amount}, nil
}

func (f *fakeInventory) Product(_ context.Context, id int64) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCalls++
	if f.productErr != nil {
		return nil, f.productErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, errors.Errorf("product %d: 404", id)
	}
	return &p, nil
}

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNoValue
	}
	return v, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *fakeStore) raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// --- Helpers ---

func newTestProduct(id int64, title, price string) product.Product {
	return product.Product{
		ID:    id,
		Title: title,
		Price: decimal.RequireFromString(price),
		Image: "https://cdn.example.com/" + title + ".jpg",
	}
}

func itemOf(p product.Product, amount int) Item {
	return Item{ID: p.ID, Title: p.Title, Price: p.Price, Image: p.Image, Amount: amount}
}

// seed stores c under the default key so Open hydrates it.
func seed(s *fakeStore, c Cart) *fakeStore {
	s.data[DefaultKey] = Marshal(c)
	return s
}

func openEngine(t *testing.T, s *fakeStore, inv *fakeInventory) *Engine {
	t.Helper()
	e, err := Open(context.Background(), s, inv)
	require.NoError(t, err)
	return e
}

func requireCartEqual(t *testing.T, want, got Cart) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].ID, got[i].ID, "item %d id", i)
		require.Equal(t, want[i].Title, got[i].Title, "item %d title", i)
		require.True(t, want[i].Price.Equal(got[i].Price), "item %d price: want %s, got %s", i, want[i].Price, got[i].Price)
		require.Equal(t, want[i].Image, got[i].Image, "item %d image", i)
		require.Equal(t, want[i].Amount, got[i].Amount, "item %d amount", i)
	}
}

// requirePersisted checks the store mirrors the engine.
func requirePersisted(t *testing.T, s *fakeStore, e *Engine) {
	t.Helper()
	stored, err := Unmarshal(s.raw(DefaultKey))
	require.NoError(t, err)
	requireCartEqual(t, e.Cart(), stored)
}
