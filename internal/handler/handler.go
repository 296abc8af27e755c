// Package handler exposes the cart over HTTP: JSON endpoints for reads and
// the three mutations, and a server-sent event stream of committed carts.
package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cart-keeper/internal/domain/cart"
)

const maxBodySize = 4 << 10

// Cart is the cart surface the handler serves.
type Cart interface {
	Cart() cart.Cart
	AddProduct(ctx context.Context, id int64) error
	RemoveProduct(ctx context.Context, id int64) error
	UpdateProductAmount(ctx context.Context, req cart.UpdateAmount) error
	Subscribe() (<-chan cart.Cart, func())
}

var _ Cart = (*cart.Accessor)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// KeepAlive is the interval of comment frames on idle event streams.
	// Zero uses 15s.
	KeepAlive time.Duration
}

// Handler serves the cart API.
type Handler struct {
	cart      Cart
	keepAlive time.Duration
}

// NewHandler constructs a Handler over c.
func NewHandler(cfg HandlerConfig, c Cart) *Handler {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	return &Handler{cart: c, keepAlive: cfg.KeepAlive}
}

// Register mounts the API routes on mux under /api/cart.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items/{id}", h.AddProduct)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.RemoveProduct)
	mux.HandleFunc("PUT /api/cart/items/{id}", h.UpdateProductAmount)
	mux.HandleFunc("GET /api/cart/events", h.Events)
}

// GetCart responds with the current cart.
func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	writeCart(w, h.cart.Cart())
}

// AddProduct adds one unit of the product in the path.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, cart.OpAdd, id, h.cart.AddProduct(r.Context(), id))
}

// RemoveProduct removes the product line in the path.
func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, cart.OpRemove, id, h.cart.RemoveProduct(r.Context(), id))
}

// UpdateProductAmount sets the amount of the product in the path from the
// {"amount": n} body.
func (h *Handler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	amount, err := decodeAmount(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err = h.cart.UpdateProductAmount(r.Context(), cart.UpdateAmount{ProductID: id, Amount: amount})
	h.mutate(w, r, cart.OpUpdateAmount, id, err)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op cart.Op, id int64, err error) {
	if err != nil {
		code, msg := mapCartError(op, id, err)
		if code >= http.StatusInternalServerError {
			zctx.From(r.Context()).Warn("Cart operation failed",
				zap.String("op", string(op)),
				zap.Int64("product_id", id),
				zap.Error(err),
			)
		}
		writeError(w, code, msg)
		return
	}
	writeCart(w, h.cart.Cart())
}

// mapCartError converts operation errors to a status code and a message
// safe to show to the user.
func mapCartError(op cart.Op, id int64, err error) (int, string) {
	n, _ := cart.NoticeFor(op, id, err)
	switch n.Kind {
	case cart.KindOutOfStock:
		return http.StatusConflict, n.Message
	case cart.KindNotInCart:
		return http.StatusNotFound, n.Message
	case cart.KindUpstream:
		return http.StatusBadGateway, n.Message
	case cart.KindStorage:
		return http.StatusInternalServerError, n.Message
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func decodeAmount(body io.Reader) (int, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return 0, errors.Wrap(err, "read body")
	}

	var (
		amount int
		found  bool
	)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "amount" {
			return d.Skip()
		}
		v, err := d.Int()
		if err != nil {
			return errors.Wrap(err, "amount")
		}
		amount, found = v, true
		return nil
	}); err != nil {
		return 0, errors.Wrap(err, "decode body")
	}
	if !found {
		return 0, errors.New("missing amount")
	}
	return amount, nil
}

func writeCart(w http.ResponseWriter, c cart.Cart) {
	writeJSON(w, http.StatusOK, cart.Marshal(c))
}

func writeError(w http.ResponseWriter, code int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, code, e.Bytes())
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
