package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Remote method identifiers, fixed by the marketplace API contract.
const (
	methodProductSearch    = "aliexpress.affiliate.product.query"
	methodProductDetails   = "aliexpress.ds.product.get"
	methodInventoryQuery   = "aliexpress.ds.product.inventory.query"
	methodPlaceOrder       = "aliexpress.trade.buy.placeorder"
	methodTrackingInfo     = "aliexpress.logistics.ds.trackinginfo.query"
	defaultSearchPageSize  = 40
	defaultSearchSort      = "LAST_VOLUME_DESC"
	defaultTargetCurrency  = "USD"
	defaultTargetLanguage  = "EN"
	defaultShipToCountry   = "US"
)

// SearchOptions are the recognized search filters. Zero values are omitted
// from the request; SortBy falls back to ordering by sales volume.
type SearchOptions struct {
	MinPrice     float64
	MaxPrice     float64
	CategoryID   string
	DeliveryDays int
	SortBy       string // "price_asc", "price_desc" or "orders"
	PageSize     int    // default 40
	PageNo       int    // default 1
}

// Product is the marketplace's product representation.
type Product struct {
	ProductID       string `json:"product_id"`
	Subject         string `json:"subject"`
	Description     string `json:"product_description"`
	TargetSalePrice string `json:"target_sale_price"`
	ProductMainURL  string `json:"product_main_image_url"`
}

// SalePrice parses the listed sale price, zero when absent or unparseable.
func (p *Product) SalePrice() float64 {
	v, err := strconv.ParseFloat(p.TargetSalePrice, 64)
	if err != nil {
		return 0
	}
	return v
}

// Inventory is the marketplace's stock report for one product.
type Inventory struct {
	AvailableStock int `json:"available_stock"`
}

// ShippingAddress is the recipient address for order placement. It is
// serialized to a single JSON parameter because the signature step only
// accepts flat key/value pairs.
type ShippingAddress struct {
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Country       string `json:"country"`
	Province      string `json:"province"`
	City          string `json:"city"`
	Address       string `json:"address"`
	Zip           string `json:"zip"`
}

// PlacedOrder is the marketplace's acknowledgment of an order placement.
type PlacedOrder struct {
	OrderID string `json:"order_id"`
}

// TrackingInfo is the shipment state for a placed order. TrackingNumber is
// empty until the shipment is dispatched.
type TrackingInfo struct {
	TrackingNumber   string `json:"tracking_number"`
	LogisticsService string `json:"logistics_service"`
}

// Gateway exposes the marketplace operations as typed calls. Every
// operation maps to exactly one signed remote method invocation; client
// errors propagate unchanged.
type Gateway struct {
	client *Client
}

// NewGateway wraps a signed request client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// SearchProducts queries the product catalog by keywords and filters.
func (g *Gateway) SearchProducts(ctx context.Context, keywords string, opts SearchOptions) ([]Product, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultSearchPageSize
	}
	pageNo := opts.PageNo
	if pageNo <= 0 {
		pageNo = 1
	}

	params := map[string]string{
		"keywords":        keywords,
		"page_size":       strconv.Itoa(pageSize),
		"page_no":         strconv.Itoa(pageNo),
		"target_currency": defaultTargetCurrency,
		"target_language": defaultTargetLanguage,
		"ship_to_country": defaultShipToCountry,
		"sort":            defaultSearchSort,
	}

	if opts.MinPrice > 0 {
		params["min_price"] = strconv.FormatFloat(opts.MinPrice, 'f', -1, 64)
	}
	if opts.MaxPrice > 0 {
		params["max_price"] = strconv.FormatFloat(opts.MaxPrice, 'f', -1, 64)
	}
	if opts.CategoryID != "" {
		params["category_id"] = opts.CategoryID
	}
	if opts.DeliveryDays > 0 {
		params["delivery_days"] = strconv.Itoa(opts.DeliveryDays)
	}

	switch opts.SortBy {
	case "price_asc":
		params["sort"] = "SALE_PRICE_ASC"
	case "price_desc":
		params["sort"] = "SALE_PRICE_DESC"
	case "orders":
		params["sort"] = "LAST_VOLUME_DESC"
	}

	result, err := g.client.Invoke(ctx, methodProductSearch, params)
	if err != nil {
		return nil, err
	}

	var out struct {
		Products []Product `json:"products"`
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &out); err != nil {
			return nil, fmt.Errorf("failed to decode search result: %w", err)
		}
	}
	return out.Products, nil
}

// GetProductDetails fetches one product by its marketplace id.
func (g *Gateway) GetProductDetails(ctx context.Context, productID string) (*Product, error) {
	params := map[string]string{
		"product_ids":     productID,
		"target_currency": defaultTargetCurrency,
		"target_language": defaultTargetLanguage,
	}

	result, err := g.client.Invoke(ctx, methodProductDetails, params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var product Product
	if err := json.Unmarshal(result, &product); err != nil {
		return nil, fmt.Errorf("failed to decode product details: %w", err)
	}
	return &product, nil
}

// GetProductInventory fetches the current stock level for one product.
// A missing result means the marketplace has no stock record; callers treat
// that as zero stock, not an error.
func (g *Gateway) GetProductInventory(ctx context.Context, productID string) (*Inventory, error) {
	params := map[string]string{
		"product_id": productID,
	}

	result, err := g.client.Invoke(ctx, methodInventoryQuery, params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var inv Inventory
	if err := json.Unmarshal(result, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode inventory result: %w", err)
	}
	return &inv, nil
}

// PlaceOrder places a purchase order for one product and returns the
// marketplace order id.
func (g *Gateway) PlaceOrder(ctx context.Context, productID string, quantity int, address ShippingAddress) (*PlacedOrder, error) {
	addressJSON, err := json.Marshal(address)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipping address: %w", err)
	}

	params := map[string]string{
		"product_id":    productID,
		"product_count": strconv.Itoa(quantity),
		"address_dto":   string(addressJSON),
	}

	result, err := g.client.Invoke(ctx, methodPlaceOrder, params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var placed PlacedOrder
	if err := json.Unmarshal(result, &placed); err != nil {
		return nil, fmt.Errorf("failed to decode place order result: %w", err)
	}
	return &placed, nil
}

// GetTrackingInfo fetches shipment tracking for a placed marketplace order.
func (g *Gateway) GetTrackingInfo(ctx context.Context, marketplaceOrderID string) (*TrackingInfo, error) {
	params := map[string]string{
		"order_id": marketplaceOrderID,
	}

	result, err := g.client.Invoke(ctx, methodTrackingInfo, params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var info TrackingInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("failed to decode tracking result: %w", err)
	}
	return &info, nil
}
