// Package inventory talks to the remote stock and product catalog service
// and provides an in-memory catalog that serves the same API.
package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/cart-keeper/internal/domain/product"
	"github.com/xenking/cart-keeper/pkg/httpmiddleware"
)

// maxBodySize caps inventory response bodies.
const maxBodySize = 1 << 20

// StatusError is returned for a non-2xx inventory response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

type options struct {
	client  *http.Client
	timeout time.Duration
	tp      trace.TracerProvider
	mp      metric.MeterProvider
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithTimeout bounds every inventory request. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTracerProvider sets the provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider sets the provider for client metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// Client is an HTTP implementation of product.Inventory.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ product.Inventory = (*Client)(nil)

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse inventory url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("inventory url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("inventory url %q: missing host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	o := options{
		tp: tracenoop.NewTracerProvider(),
		mp: metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.client
	if hc == nil {
		hc = &http.Client{
			Timeout: o.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(o.tp),
				otelhttp.WithMeterProvider(o.mp),
			),
		}
	}

	return &Client{base: u, http: hc}, nil
}

// Stock fetches the live availability of a product. The response only needs
// to carry "amount"; ProductID is always the requested id.
func (c *Client) Stock(ctx context.Context, id int64) (*product.Stock, error) {
	var s product.Stock
	if err := c.get(ctx, "/stock/"+strconv.FormatInt(id, 10), s.Decode); err != nil {
		return nil, err
	}
	s.ProductID = id
	return &s, nil
}

// Product fetches the catalog metadata of a product.
func (c *Client) Product(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10), p.Decode); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, decode func(d *jx.Decoder) error) error {
	u := *c.base
	u.Path += path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := decode(jx.DecodeBytes(body)); err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	return nil
}

func requestID(ctx context.Context) string {
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
