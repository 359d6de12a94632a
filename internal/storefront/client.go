package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dropsync-service/internal/util"

	"go.uber.org/zap"
)

// DefaultCarrier is used when the marketplace omits the logistics service
// name on a fulfilled shipment.
const DefaultCarrier = "AliExpress Standard Shipping"

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api error (status %d): %s", e.StatusCode, e.Message)
}

// TransportError indicates the request never produced a usable response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("storefront transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to the storefront platform's v2 catalog/order API with a
// tenant's bearer token.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a storefront client for one tenant's access token.
func NewClient(baseURL string, timeout time.Duration, accessToken string) *Client {
	return &Client{
		accessToken: accessToken,
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: util.GetLogger(),
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("Storefront api error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &TransportError{Err: fmt.Errorf("malformed response from %s: %w", endpoint, err)}
		}
	}
	return nil
}

// Product is a storefront catalog product.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// SKU is one purchasable variant of a storefront product.
type SKU struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Price  `json:"price"`
}

// Price is an amount in minor units with its currency.
type Price struct {
	Value int64  `json:"value"`
	Unit  string `json:"unit"`
}

// Order is a storefront order as returned by the order API.
type Order struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	CustomerEmail   string   `json:"customerEmail"`
	ShippingAddress *Address `json:"shippingAddress"`
}

// Address is the shipping address block on a storefront order.
type Address struct {
	Addressee  string `json:"addressee"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

// ShippingTracking is the fulfillment tracking block on an order update.
type ShippingTracking struct {
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

// CreateProduct creates a catalog product on a site.
func (c *Client) CreateProduct(ctx context.Context, siteID string, product *Product) (*Product, error) {
	var created Product
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sites/%s/products", siteID), product, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetProduct fetches a catalog product.
func (c *Client) GetProduct(ctx context.Context, siteID, productID string) (*Product, error) {
	var product Product
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%s/products/%s", siteID, productID), nil, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct patches a catalog product.
func (c *Client) UpdateProduct(ctx context.Context, siteID, productID string, product *Product) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/sites/%s/products/%s", siteID, productID), product, nil)
}

// ListProducts pages through a site's catalog.
func (c *Client) ListProducts(ctx context.Context, siteID string, limit, offset int) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	endpoint := fmt.Sprintf("/sites/%s/products?limit=%d&offset=%d", siteID, limit, offset)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// CreateSKU creates a variant under a product.
func (c *Client) CreateSKU(ctx context.Context, productID string, sku *SKU) (*SKU, error) {
	var created SKU
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/products/%s/skus", productID), sku, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSKU patches a variant.
func (c *Client) UpdateSKU(ctx context.Context, productID, skuID string, sku *SKU) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/products/%s/skus/%s", productID, skuID), sku, nil)
}

// UpdateInventory sets the stock level for a SKU.
func (c *Client) UpdateInventory(ctx context.Context, productID, skuID string, quantity int) error {
	payload := map[string]int{
		"quantity":       quantity,
		"updateQuantity": quantity,
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/products/%s/skus/%s/inventory", productID, skuID), payload, nil)
}

// ListOrders pages through a site's orders, optionally filtered by status.
func (c *Client) ListOrders(ctx context.Context, siteID, status string, limit, offset int) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if status != "" {
		q.Set("status", status)
	}
	endpoint := fmt.Sprintf("/sites/%s/orders?%s", siteID, q.Encode())
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, siteID, orderID string) (*Order, error) {
	var order Order
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%s/orders/%s", siteID, orderID), nil, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder patches an order.
func (c *Client) UpdateOrder(ctx context.Context, siteID, orderID string, payload interface{}) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/sites/%s/orders/%s", siteID, orderID), payload, nil)
}

// FulfillOrder marks an order fulfilled with its shipment tracking details.
// An empty carrier falls back to DefaultCarrier.
func (c *Client) FulfillOrder(ctx context.Context, siteID, orderID, trackingNumber, carrier string) error {
	if carrier == "" {
		carrier = DefaultCarrier
	}
	payload := struct {
		Status           string           `json:"status"`
		ShippingTracking ShippingTracking `json:"shippingTracking"`
	}{
		Status: "fulfilled",
		ShippingTracking: ShippingTracking{
			TrackingNumber: trackingNumber,
			Carrier:        carrier,
		},
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/sites/%s/orders/%s", siteID, orderID), payload, nil)
}
