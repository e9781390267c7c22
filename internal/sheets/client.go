package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ventasimple/backend/internal/domain"
	"ventasimple/backend/internal/xid"
)

const maxSnapshotBytes = 16 << 20

// Channels as reported to the Observer.
const (
	ChannelSale      = "sale"
	ChannelDue       = "due"
	ChannelDueClear  = "due_clear"
	ChannelDueDelete = "due_delete"
	ChannelProduct   = "product"

	ResourceProducts = "products"
	ResourceSales    = "sales"
)

var ErrNotConfigured = errors.New("sheets endpoint not configured")

type Config struct {
	SalesURL       string
	ProductsURL    string
	DuesURL        string
	ProductsGetURL string
	SalesGetURL    string
	Timeout        time.Duration
}

// Observer receives the outcome of every remote call.
type Observer interface {
	ObservePush(channel string, err error)
	ObserveFetch(resource string, err error)
}

type noopObserver struct{}

func (noopObserver) ObservePush(string, error)  {}
func (noopObserver) ObserveFetch(string, error) {}

// Client talks to the spreadsheet-backed endpoints. POSTs carry no custom
// headers and their responses are not inspected beyond the status code.
type Client struct {
	cfg      Config
	http     *http.Client
	observer Observer
}

func New(cfg Config, observer Observer) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DuesURL == "" {
		cfg.DuesURL = cfg.SalesURL
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		observer: observer,
	}
}

func (c *Client) SendSale(ctx context.Context, payload SalePayload) error {
	return c.push(ctx, ChannelSale, c.cfg.SalesURL, payload)
}

func (c *Client) SendDueSale(ctx context.Context, payload SalePayload) error {
	return c.push(ctx, ChannelDue, c.cfg.DuesURL, DueSalePayload{SalePayload: payload, Due: true})
}

func (c *Client) SendDueClear(ctx context.Context, saleID string) error {
	return c.push(ctx, ChannelDueClear, c.cfg.DuesURL, DueClearPayload{DueClear: true, ID: saleID})
}

func (c *Client) SendDueDelete(ctx context.Context, saleID string) error {
	return c.push(ctx, ChannelDueDelete, c.cfg.DuesURL, DueDeletePayload{DueDelete: true, ID: saleID})
}

func (c *Client) SendProductChange(ctx context.Context, payload ProductChangePayload) error {
	return c.push(ctx, ChannelProduct, c.cfg.ProductsURL, payload)
}

// FetchProducts pulls the product-change log and folds it into a catalog.
// An unconfigured endpoint yields no products and ErrNotConfigured.
func (c *Client) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	records, err := c.fetch(ctx, ResourceProducts, c.cfg.ProductsGetURL)
	if err != nil {
		return nil, err
	}
	return FoldProductChanges(records, time.Now()), nil
}

func (c *Client) FetchSales(ctx context.Context) ([]domain.Sale, error) {
	records, err := c.fetch(ctx, ResourceSales, c.cfg.SalesGetURL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sales := make([]domain.Sale, 0, len(records))
	for i, record := range records {
		sale := domain.MigrateSale(record, now)
		if sale.ID == "" {
			// Rows without an id keep the same one across pulls.
			sale.ID = xid.Derive("sheets-sale", strconv.FormatInt(sale.CreatedAt.UnixMilli(), 10), strconv.Itoa(i))
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (c *Client) push(ctx context.Context, channel string, url string, payload any) (err error) {
	if url == "" {
		return nil
	}
	defer func() { c.observer.ObservePush(channel, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// A text/plain body keeps this a simple request for Apps Script endpoints.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheets %s push: unexpected status %d", channel, resp.StatusCode)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, resource string, url string) (records []domain.Record, err error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	defer func() { c.observer.ObserveFetch(resource, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets %s fetch: unexpected status %d", resource, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, err
	}
	records, err = domain.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("sheets %s fetch: %w", resource, err)
	}
	return records, nil
}
