// Command inventory-stub serves a fake inventory API (GET /products,
// GET /products/{id}, GET /stock/{id}) from a JSON catalog.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/cart-keeper/db"
	"github.com/xenking/cart-keeper/internal/inventory"
	"github.com/xenking/cart-keeper/pkg/httpmiddleware"
)

func main() {
	var (
		addr        string
		catalogFile string
		latency     time.Duration
	)

	flag.StringVar(&addr, "addr", "127.0.0.1:3333", "listen address")
	flag.StringVar(&catalogFile, "catalog", "", "path to catalog JSON file (default: built-in sample)")
	flag.DurationVar(&latency, "latency", 0, "artificial delay added to every response")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, addr, catalogFile, latency); err != nil {
		slog.Error("inventory stub failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, catalogFile string, latency time.Duration) error {
	var src io.Reader = bytes.NewReader(db.Inventory)
	if catalogFile != "" {
		f, err := os.Open(catalogFile)
		if err != nil {
			return errors.Wrap(err, "open catalog")
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	catalog, err := inventory.LoadCatalog(src)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded", slog.Int("products", len(catalog.Products())))

	var h http.Handler = catalog.Handler()
	if latency > 0 {
		h = delay(h, latency)
	}

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: time.Second,
		Handler:           httpmiddleware.Wrap(h, httpmiddleware.RequestID(), logRequests),
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return server.Shutdown(shutdownCtx)
}

func delay(next http.Handler, d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
		}
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		slog.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", httpmiddleware.RequestIDFromContext(r.Context())),
		)
	})
}
