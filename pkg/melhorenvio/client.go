package melhorenvio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
)

const (
	defaultBaseURL    = "https://melhorenvio.com.br/api/v2"
	defaultUserAgent  = "livebag-backend"
	defaultTimeout    = 30 * time.Second
	responseBodyLimit = 4096
	tracerName        = "github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
)

// Steps name each aggregator call in errors, logs and spans.
const (
	StepCart        = "cart"
	StepCheckout    = "checkout"
	StepGenerate    = "generate"
	StepPrint       = "print"
	StepTracking    = "tracking"
	StepOrderDetail = "order_detail"
	StepCalculate   = "calculate"
)

var errTokenRequired = errors.New("melhor envio token is required")

// Client talks to the Melhor Envio shipping aggregator. Calls are never
// retried here; callers decide whether a step can be repeated.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(userAgent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithTimeout bounds every request made by the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

func NewClient(token string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		token:      trimmed,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type ordersRequest struct {
	Mode   string   `json:"mode,omitempty"`
	Orders []string `json:"orders"`
}

// AddToCart creates the shipment order and returns its id.
func (c *Client) AddToCart(ctx context.Context, req CartRequest) (string, error) {
	body, err := c.do(ctx, StepCart, http.MethodPost, "me/cart", req)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID    string          `json:"id"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", pkgerrors.External(StepCart, http.StatusOK, truncate(body), err)
	}
	if hasValue(resp.Error) || resp.ID == "" {
		return "", pkgerrors.External(StepCart, http.StatusOK, truncate(body), nil)
	}
	return resp.ID, nil
}

// Checkout pays for the shipment using the account wallet balance.
func (c *Client) Checkout(ctx context.Context, shipmentID string) error {
	_, err := c.do(ctx, StepCheckout, http.MethodPost, "me/shipment/checkout", ordersRequest{Orders: []string{shipmentID}})
	return err
}

func (c *Client) Generate(ctx context.Context, shipmentID string) error {
	_, err := c.do(ctx, StepGenerate, http.MethodPost, "me/shipment/generate", ordersRequest{Orders: []string{shipmentID}})
	return err
}

// Print returns the public label URL, which may be empty.
func (c *Client) Print(ctx context.Context, shipmentID string) (string, error) {
	body, err := c.do(ctx, StepPrint, http.MethodPost, "me/shipment/print", ordersRequest{Mode: "public", Orders: []string{shipmentID}})
	if err != nil {
		return "", err
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil
	}
	return strings.TrimSpace(resp.URL), nil
}

// Tracking returns the raw tracking document keyed by shipment id.
func (c *Client) Tracking(ctx context.Context, shipmentID string) (map[string]any, error) {
	body, err := c.do(ctx, StepTracking, http.MethodPost, "me/shipment/tracking", ordersRequest{Orders: []string{shipmentID}})
	if err != nil {
		return nil, err
	}
	return decodeObject(StepTracking, body)
}

// OrderDetail returns the raw shipment order document.
func (c *Client) OrderDetail(ctx context.Context, shipmentID string) (map[string]any, error) {
	body, err := c.do(ctx, StepOrderDetail, http.MethodGet, "me/orders/"+url.PathEscape(shipmentID), nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(StepOrderDetail, body)
}

// Calculate quotes the requested services for a single package.
func (c *Client) Calculate(ctx context.Context, req CalculateRequest) ([]CalculateResult, error) {
	body, err := c.do(ctx, StepCalculate, http.MethodPost, "me/shipment/calculate", req)
	if err != nil {
		return nil, err
	}
	var results []CalculateResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, pkgerrors.External(StepCalculate, http.StatusOK, truncate(body), err)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, step, method, path string, payload any) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "melhor envio client not configured")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "melhorenvio."+step)
	defer span.End()
	span.SetAttributes(attribute.String("melhorenvio.step", step), attribute.String("http.method", method))

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+step+" request")
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+step+" request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logCall(ctx, step, 0, started)
		return nil, pkgerrors.External(step, 0, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logCall(ctx, step, resp.StatusCode, started)
	if err != nil {
		return nil, pkgerrors.External(step, resp.StatusCode, "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return nil, pkgerrors.External(step, resp.StatusCode, truncate(body), nil)
	}
	return body, nil
}

func (c *Client) logCall(ctx context.Context, step string, status int, started time.Time) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"step":        step,
		"status":      status,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	c.logg.Info(ctx, "melhorenvio.call")
}

func decodeObject(step string, body []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, pkgerrors.External(step, http.StatusOK, truncate(body), err)
	}
	return out, nil
}

func hasValue(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null" && trimmed != "false" && trimmed != `""`
}

func truncate(body []byte) string {
	if len(body) > responseBodyLimit {
		return string(body[:responseBodyLimit])
	}
	return string(body)
}
