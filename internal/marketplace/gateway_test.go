package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayWithResponse(t *testing.T, body string, capture *url.Values) *Gateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			*capture = r.URL.Query()
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewGateway(testClient(srv.URL))
}

func TestSearchProductsDefaults(t *testing.T) {
	var got url.Values
	g := gatewayWithResponse(t, `{"result":{"products":[{"product_id":"1005001","subject":"USB Desk Lamp","target_sale_price":"10.00"}]}}`, &got)

	products, err := g.SearchProducts(context.Background(), "lamp", SearchOptions{})

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "1005001", products[0].ProductID)
	assert.InDelta(t, 10.00, products[0].SalePrice(), 0.001)

	assert.Equal(t, "aliexpress.affiliate.product.query", got.Get("method"))
	assert.Equal(t, "lamp", got.Get("keywords"))
	assert.Equal(t, "40", got.Get("page_size"))
	assert.Equal(t, "1", got.Get("page_no"))
	assert.Equal(t, "LAST_VOLUME_DESC", got.Get("sort"))
	assert.Equal(t, "USD", got.Get("target_currency"))
	assert.Equal(t, "EN", got.Get("target_language"))
	assert.Equal(t, "US", got.Get("ship_to_country"))
	assert.Empty(t, got.Get("min_price"))
	assert.Empty(t, got.Get("category_id"))
}

func TestSearchProductsFilters(t *testing.T) {
	var got url.Values
	g := gatewayWithResponse(t, `{"result":{"products":[]}}`, &got)

	_, err := g.SearchProducts(context.Background(), "lamp", SearchOptions{
		MinPrice:     1.5,
		MaxPrice:     20,
		CategoryID:   "509",
		DeliveryDays: 10,
		SortBy:       "price_asc",
		PageSize:     10,
		PageNo:       3,
	})

	require.NoError(t, err)
	assert.Equal(t, "1.5", got.Get("min_price"))
	assert.Equal(t, "20", got.Get("max_price"))
	assert.Equal(t, "509", got.Get("category_id"))
	assert.Equal(t, "10", got.Get("delivery_days"))
	assert.Equal(t, "SALE_PRICE_ASC", got.Get("sort"))
	assert.Equal(t, "10", got.Get("page_size"))
	assert.Equal(t, "3", got.Get("page_no"))
}

func TestSearchProductsSortMapping(t *testing.T) {
	cases := map[string]string{
		"price_asc":  "SALE_PRICE_ASC",
		"price_desc": "SALE_PRICE_DESC",
		"orders":     "LAST_VOLUME_DESC",
		"":           "LAST_VOLUME_DESC",
		"bogus":      "LAST_VOLUME_DESC",
	}
	for sortBy, want := range cases {
		var got url.Values
		g := gatewayWithResponse(t, `{"result":{}}`, &got)
		_, err := g.SearchProducts(context.Background(), "lamp", SearchOptions{SortBy: sortBy})
		require.NoError(t, err)
		assert.Equal(t, want, got.Get("sort"), "sortBy=%q", sortBy)
	}
}

func TestGetProductInventory(t *testing.T) {
	var got url.Values
	g := gatewayWithResponse(t, `{"result":{"available_stock":7}}`, &got)

	inv, err := g.GetProductInventory(context.Background(), "1005001")

	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, 7, inv.AvailableStock)
	assert.Equal(t, "aliexpress.ds.product.inventory.query", got.Get("method"))
	assert.Equal(t, "1005001", got.Get("product_id"))
}

func TestGetProductInventoryMissingResult(t *testing.T) {
	g := gatewayWithResponse(t, `{}`, nil)

	inv, err := g.GetProductInventory(context.Background(), "1005001")

	require.NoError(t, err)
	assert.Nil(t, inv, "no stock record is not an error")
}

func TestGetProductDetailsNullResult(t *testing.T) {
	g := gatewayWithResponse(t, `{"result":null}`, nil)

	product, err := g.GetProductDetails(context.Background(), "1005001")

	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestPlaceOrderEncodesAddress(t *testing.T) {
	var got url.Values
	g := gatewayWithResponse(t, `{"result":{"order_id":"ae-order-1"}}`, &got)

	placed, err := g.PlaceOrder(context.Background(), "1005001", 2, ShippingAddress{
		ContactPerson: "Jane Doe",
		Phone:         "555-0100",
		Country:       "US",
		Province:      "IL",
		City:          "Springfield",
		Address:       "1 Main St",
		Zip:           "62701",
	})

	require.NoError(t, err)
	require.NotNil(t, placed)
	assert.Equal(t, "ae-order-1", placed.OrderID)

	assert.Equal(t, "aliexpress.trade.buy.placeorder", got.Get("method"))
	assert.Equal(t, "1005001", got.Get("product_id"))
	assert.Equal(t, "2", got.Get("product_count"))

	var addr ShippingAddress
	require.NoError(t, json.Unmarshal([]byte(got.Get("address_dto")), &addr))
	assert.Equal(t, "Jane Doe", addr.ContactPerson)
	assert.Equal(t, "62701", addr.Zip)
}

func TestGetTrackingInfo(t *testing.T) {
	var got url.Values
	g := gatewayWithResponse(t, `{"result":{"tracking_number":"TRACK123","logistics_service":"DHL"}}`, &got)

	info, err := g.GetTrackingInfo(context.Background(), "ae-order-1")

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "TRACK123", info.TrackingNumber)
	assert.Equal(t, "DHL", info.LogisticsService)
	assert.Equal(t, "aliexpress.logistics.ds.trackinginfo.query", got.Get("method"))
	assert.Equal(t, "ae-order-1", got.Get("order_id"))
}

func TestGatewayPropagatesAPIError(t *testing.T) {
	g := gatewayWithResponse(t, `{"error_response":{"code":"20010000","msg":"invalid session"}}`, nil)

	_, err := g.GetProductInventory(context.Background(), "1005001")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "20010000", apiErr.Code)
}
