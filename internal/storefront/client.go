package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrRejected means the platform answered with a non-2xx status or an
	// error payload. The request reached the platform; retrying the exact
	// same mutation is pointless until the cart changes.
	ErrRejected = errors.New("storefront rejected request")
)

// Client is the surface the rest of the service uses to talk to the
// platform cart endpoints.
type Client interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, req AddItemRequest) error
	ChangeLine(ctx context.Context, line, quantity int) (*domain.Cart, error)
	ApplyDiscount(ctx context.Context, code string) (*domain.Cart, error)
}

// AddItemRequest maps onto the POST /cart/add.js multipart form.
type AddItemRequest struct {
	VariantID  int64
	Quantity   int
	Properties map[string]string
}

// rejection is the Shopify AJAX error payload shape.
type rejection struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// HTTPClient talks to the Shopify AJAX cart API of one storefront session.
// A circuit breaker sits in front of every call, and starting a request of
// a given kind aborts the previous in-flight request of the same kind.
type HTTPClient struct {
	baseURL  string
	sections []string
	hc       *http.Client
	cb       *gobreaker.CircuitBreaker[[]byte]

	mu       sync.Mutex
	seq      uint64
	inflight map[string]inflightRequest
}

type inflightRequest struct {
	id     uint64
	cancel context.CancelFunc
}

func NewHTTPClient(baseURL string, sections []string) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "storefront",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Aborting a superseded request is not a platform failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sections: sections,
		hc: &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			}),
		},
		cb:       cb,
		inflight: make(map[string]inflightRequest),
	}
}

func (c *HTTPClient) GetCart(ctx context.Context) (*domain.Cart, error) {
	ctx, done := c.begin(ctx, "cart")
	defer done()

	body, err := c.do(ctx, http.MethodGet, "/cart.js", "", nil)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *HTTPClient) AddItem(ctx context.Context, req AddItemRequest) error {
	ctx, done := c.begin(ctx, "add")
	defer done()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("id", strconv.FormatInt(req.VariantID, 10)); err != nil {
		return err
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	if err := form.WriteField("quantity", strconv.Itoa(qty)); err != nil {
		return err
	}
	for k, v := range req.Properties {
		if err := form.WriteField(fmt.Sprintf("properties[%s]", k), v); err != nil {
			return err
		}
	}
	if len(c.sections) > 0 {
		if err := form.WriteField("sections", strings.Join(c.sections, ",")); err != nil {
			return err
		}
	}
	if err := form.Close(); err != nil {
		return err
	}

	_, err := c.do(ctx, http.MethodPost, "/cart/add.js", form.FormDataContentType(), buf.Bytes())
	return err
}

func (c *HTTPClient) ChangeLine(ctx context.Context, line, quantity int) (*domain.Cart, error) {
	ctx, done := c.begin(ctx, "change")
	defer done()

	payload, err := json.Marshal(map[string]any{
		"line":     line,
		"quantity": quantity,
		"sections": c.sections,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/cart/change.js", "application/json", payload)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *HTTPClient) ApplyDiscount(ctx context.Context, code string) (*domain.Cart, error) {
	ctx, done := c.begin(ctx, "update")
	defer done()

	payload, err := json.Marshal(map[string]any{
		"discount": code,
		"sections": c.sections,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/cart/update.js", "application/json", payload)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// begin registers a cancellable context for the request kind and aborts any
// previous request of the same kind that is still in flight.
func (c *HTTPClient) begin(ctx context.Context, kind string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.seq++
	id := c.seq
	if prev, ok := c.inflight[kind]; ok {
		prev.cancel()
	}
	c.inflight[kind] = inflightRequest{id: id, cancel: cancel}
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if current, ok := c.inflight[kind]; ok && current.id == id {
			delete(c.inflight, kind)
		}
		c.mu.Unlock()
		cancel()
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("storefront %s %s failed: %w", method, path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read storefront response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			var rej rejection
			if err := json.Unmarshal(respBody, &rej); err == nil && rej.Description != "" {
				return nil, fmt.Errorf("%w: %s (%d)", ErrRejected, rej.Description, resp.StatusCode)
			}
			return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return respBody, nil
	})
}

func decodeCart(body []byte) (*domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("malformed cart payload: %w", err)
	}
	return &cart, nil
}
