package handler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cart-keeper/internal/domain/cart"
	"github.com/xenking/cart-keeper/internal/domain/product"
	"github.com/xenking/cart-keeper/internal/inventory"
	"github.com/xenking/cart-keeper/internal/storage/memory"
)

// --- Test doubles ---

type failingStore struct {
	*memory.Store
	fail bool
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

type brokenInventory struct{}

func (brokenInventory) Stock(context.Context, int64) (*product.Stock, error) {
	return nil, errors.New("dial tcp 10.0.0.7:3333: connection refused")
}

func (brokenInventory) Product(context.Context, int64) (*product.Product, error) {
	return nil, errors.New("dial tcp 10.0.0.7:3333: connection refused")
}

// cartIface aliases Cart so the embedded field name does not shadow the
// promoted Cart() method.
type cartIface = Cart

type erroringCart struct{ cartIface }

func (erroringCart) AddProduct(context.Context, int64) error {
	return errors.New("something unexpected")
}

// --- Helpers ---

type testEnv struct {
	catalog *inventory.Catalog
	store   *failingStore
	mux     *http.ServeMux
}

func newTestEnv(t *testing.T, inv product.Inventory) *testEnv {
	t.Helper()
	catalog := inventory.NewCatalog()
	catalog.Put(product.Product{ID: 1, Title: "Shoe", Price: decimal.RequireFromString("179.9"), Image: "1.jpg"}, 2)
	catalog.Put(product.Product{ID: 2, Title: "Runner", Price: decimal.RequireFromString("139.9"), Image: "2.jpg"}, 5)
	if inv == nil {
		inv = catalog
	}

	store := &failingStore{Store: memory.New()}
	engine, err := cart.Open(context.Background(), store, inv)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(HandlerConfig{KeepAlive: 20 * time.Millisecond}, cart.NewAccessor(engine, nil)).Register(mux)
	return &testEnv{catalog: catalog, store: store, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

const (
	shoe   = `{"id":1,"title":"Shoe","price":179.9,"image":"1.jpg","amount":%d}`
	runner = `{"id":2,"title":"Runner","price":139.9,"image":"2.jpg","amount":%d}`
)

func line(format string, amount int) string {
	return fmt.Sprintf(format, amount)
}

// --- Tests ---

func TestGetCart_Empty(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[`+line(shoe, 1)+`]`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/cart/items/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[`+line(shoe, 2)+`,`+line(runner, 1)+`]`, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/cart/items/2", `{"amount":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[`+line(shoe, 2)+`,`+line(runner, 5)+`]`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[`+line(runner, 5)+`]`, rec.Body.String())

	stored, err := env.store.Get(context.Background(), cart.DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[`+line(runner, 5)+`]`, string(stored))
}

func TestMutations_Errors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{name: "add beyond stock", method: http.MethodPost, path: "/api/cart/items/1", wantCode: http.StatusConflict, wantMsg: "Requested quantity is out of stock"},
		{name: "update beyond stock", method: http.MethodPut, path: "/api/cart/items/1", body: `{"amount":3}`, wantCode: http.StatusConflict, wantMsg: "Requested quantity is out of stock"},
		{name: "remove absent", method: http.MethodDelete, path: "/api/cart/items/2", wantCode: http.StatusNotFound, wantMsg: "Failed to remove product"},
		{name: "add unknown product", method: http.MethodPost, path: "/api/cart/items/99", wantCode: http.StatusBadGateway, wantMsg: "Failed to add product"},
		{name: "invalid id", method: http.MethodPost, path: "/api/cart/items/abc", wantCode: http.StatusBadRequest, wantMsg: "invalid product id"},
		{name: "missing amount", method: http.MethodPut, path: "/api/cart/items/1", body: `{"qty":1}`, wantCode: http.StatusBadRequest, wantMsg: "invalid request body"},
		{name: "malformed body", method: http.MethodPut, path: "/api/cart/items/1", body: `{"amount":`, wantCode: http.StatusBadRequest, wantMsg: "invalid request body"},
		{name: "fractional amount", method: http.MethodPut, path: "/api/cart/items/1", body: `{"amount":1.5}`, wantCode: http.StatusBadRequest, wantMsg: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items/1", "").Code)
			require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items/1", "").Code)

			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, `{"code":`+strconv.Itoa(tt.wantCode)+`,"message":"`+tt.wantMsg+`"}`, rec.Body.String())

			rec = env.do(t, http.MethodGet, "/api/cart", "")
			assert.JSONEq(t, `[`+line(shoe, 2)+`]`, rec.Body.String(), "cart must be unchanged")
		})
	}
}

func TestUpdateProductAmount_NoopCases(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items/1", "").Code)

	for _, body := range []string{`{"amount":0}`, `{"amount":-3}`} {
		rec := env.do(t, http.MethodPut, "/api/cart/items/1", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[`+line(shoe, 1)+`]`, rec.Body.String())
	}

	rec := env.do(t, http.MethodPut, "/api/cart/items/2", `{"amount":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[`+line(shoe, 1)+`]`, rec.Body.String())
}

func TestMutations_UpstreamDetailHidden(t *testing.T) {
	env := newTestEnv(t, brokenInventory{})

	rec := env.do(t, http.MethodPost, "/api/cart/items/1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestMutations_StorageFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.fail = true

	rec := env.do(t, http.MethodPost, "/api/cart/items/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"Failed to add product"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/cart", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMutations_UnknownError(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(HandlerConfig{}, erroringCart{}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cart/items/1", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"Internal Server Error"}`, rec.Body.String())
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/cart/events", http.NoBody)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		var name string
		for sc.Scan() {
			switch text := sc.Text(); {
			case strings.HasPrefix(text, "event: "):
				name = strings.TrimPrefix(text, "event: ")
			case strings.HasPrefix(text, "data: ") && name == "cart":
				events <- strings.TrimPrefix(text, "data: ")
			}
		}
	}()

	next := func() string {
		t.Helper()
		select {
		case data, ok := <-events:
			require.True(t, ok, "stream ended")
			return data
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	assert.JSONEq(t, `[]`, next())

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items/2", "").Code)
	assert.JSONEq(t, `[`+line(runner, 1)+`]`, next())

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/cart/items/2", "").Code)
	assert.JSONEq(t, `[]`, next())
}

func TestMapCartError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{err: &cart.OutOfStockError{ProductID: 1}, wantCode: http.StatusConflict},
		{err: cart.ErrNotInCart, wantCode: http.StatusNotFound},
		{err: &cart.UpstreamError{Op: cart.OpAdd, Err: errors.New("x")}, wantCode: http.StatusBadGateway},
		{err: &cart.StoreError{Op: cart.OpAdd, Err: errors.New("x")}, wantCode: http.StatusInternalServerError},
		{err: errors.New("x"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		code, msg := mapCartError(cart.OpAdd, 1, tt.err)
		assert.Equal(t, tt.wantCode, code, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}
