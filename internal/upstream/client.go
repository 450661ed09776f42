package upstream

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/resilience"
)

// ErrRejected is returned when upstream answers a write with success=false.
var ErrRejected = errors.New("upstream: request rejected")

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Breaker *resilience.Breaker
	HTTP    *http.Client
}

// Client is the REST implementation of Backend and catalog.Source.
type Client struct {
	baseURL string
	http    resilience.HTTPClient
}

// NewClient constructs a Client. The transport is wrapped with otelhttp.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base url %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = HTTPClient()
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("upstream")
	}
	return &Client{
		baseURL: base,
		http:    resilience.HTTPClient{Client: httpClient, Breaker: breaker, Timeout: cfg.Timeout},
	}, nil
}

// Ping fails while the circuit breaker is open.
func (c *Client) Ping(context.Context) error {
	if c.http.Breaker != nil && c.http.Breaker.State() == resilience.Open {
		return resilience.ErrOpenCircuit
	}
	return nil
}

// HTTPClient returns an http.Client whose transport records client spans.
func HTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// GetGeneralInfo handles GET /api/shipments/{awb}/info.
func (c *Client) GetGeneralInfo(ctx context.Context, awb string) (liquidation.GeneralInfo, error) {
	var out liquidation.GeneralInfo
	err := c.do(ctx, http.MethodGet, "/api/shipments/"+url.PathEscape(awb)+"/info", nil, &out)
	return out, err
}

// GetCompraVentaItems handles GET /api/shipments/{awb}/items/compra-venta.
func (c *Client) GetCompraVentaItems(ctx context.Context, awb string) ([]liquidation.CompraVentaItem, error) {
	var out []liquidation.CompraVentaItem
	err := c.do(ctx, http.MethodGet, "/api/shipments/"+url.PathEscape(awb)+"/items/compra-venta", nil, &out)
	return out, err
}

// GetDeductionItems handles GET /api/shipments/{awb}/items/deductions.
func (c *Client) GetDeductionItems(ctx context.Context, awb string) ([]liquidation.DeductionItem, error) {
	var out []liquidation.DeductionItem
	err := c.do(ctx, http.MethodGet, "/api/shipments/"+url.PathEscape(awb)+"/items/deductions", nil, &out)
	return out, err
}

// GetCommissionItems handles GET /api/shipments/{awb}/items/commissions.
func (c *Client) GetCommissionItems(ctx context.Context, awb string) ([]liquidation.CommissionItem, error) {
	var out []liquidation.CommissionItem
	err := c.do(ctx, http.MethodGet, "/api/shipments/"+url.PathEscape(awb)+"/items/commissions", nil, &out)
	return out, err
}

// UpdateGeneralInfo handles PUT /api/shipments/info.
func (c *Client) UpdateGeneralInfo(ctx context.Context, info liquidation.GeneralInfo) (Result, error) {
	return c.write(ctx, http.MethodPut, "/api/shipments/info", info)
}

// AddItem handles POST /api/shipments/items.
func (c *Client) AddItem(ctx context.Context, item liquidation.Item) (Result, error) {
	return c.write(ctx, http.MethodPost, "/api/shipments/items", item)
}

// DeleteItem handles DELETE /api/shipments/items/{id}?type=.
func (c *Client) DeleteItem(ctx context.Context, id string, typ liquidation.ItemType) (Result, error) {
	path := "/api/shipments/items/" + url.PathEscape(id) + "?type=" + url.QueryEscape(string(typ))
	return c.write(ctx, http.MethodDelete, path, nil)
}

// SaveLiquidation handles POST /api/shipments/save.
func (c *Client) SaveLiquidation(ctx context.Context, env payload.Envelope) (Result, error) {
	return c.write(ctx, http.MethodPost, "/api/shipments/save", env)
}

// RubroOptions handles GET /api/config/rubros/{tab}.
func (c *Client) RubroOptions(ctx context.Context, tab liquidation.ItemType) ([]catalog.RubroOption, error) {
	var out []catalog.RubroOption
	err := c.do(ctx, http.MethodGet, "/api/config/rubros/"+url.PathEscape(string(tab)), nil, &out)
	return out, err
}

// ExporterOptions handles GET /api/config/exporters.
func (c *Client) ExporterOptions(ctx context.Context) ([]catalog.ExporterOption, error) {
	var out []catalog.ExporterOption
	err := c.do(ctx, http.MethodGet, "/api/config/exporters", nil, &out)
	return out, err
}

func (c *Client) write(ctx context.Context, method, path string, body any) (Result, error) {
	var res Result
	if err := c.do(ctx, method, path, body, &res); err != nil {
		return Result{}, err
	}
	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrRejected, res.Message)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	ctx, span := otel.Tracer("upstream.Client").Start(ctx, "Client."+method)
	defer span.End()
	span.SetAttributes(attribute.String("upstream.path", path))

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("upstream %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		span.RecordError(err)
		return err
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode upstream %s %s: %w", method, path, err)
	}
	return nil
}

var (
	_ Backend        = (*Client)(nil)
	_ catalog.Source = (*Client)(nil)
)
