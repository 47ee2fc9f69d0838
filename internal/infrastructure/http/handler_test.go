package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcatalog "github.com/likha-market/marketplace/internal/application/catalog"
	"github.com/likha-market/marketplace/internal/application/fulfillment"
	"github.com/likha-market/marketplace/internal/application/ledger"
	appreview "github.com/likha-market/marketplace/internal/application/review"
	"github.com/likha-market/marketplace/internal/docstore/memory"
	domcatalog "github.com/likha-market/marketplace/internal/domain/catalog"
	domorder "github.com/likha-market/marketplace/internal/domain/order"
	httptransport "github.com/likha-market/marketplace/internal/infrastructure/http"
)

type seqIDGen struct {
	prefix string
	n      int
}

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()

	handler := httptransport.NewHandler(
		ledger.New(store, &seqIDGen{prefix: "o"}, nil, ledger.OversellClamp, nil),
		fulfillment.New(store, nil, nil),
		appreview.New(store, &seqIDGen{prefix: "r"}, nil),
		appcatalog.New(store, &seqIDGen{prefix: "p"}, nil),
		nil,
	)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createProduct(t *testing.T, srv *httptest.Server) domcatalog.Product {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/products", map[string]any{
		"seller_id": "s1",
		"name":      "Inabel Blanket",
		"category":  "Weaving",
		"price":     500_00,
		"variations": []map[string]any{
			{"id": "v1", "name": "Queen", "price": 500_00, "stock": 10},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product domcatalog.Product
	decodeBody(t, resp, &product)
	return product
}

func createOrder(t *testing.T, srv *httptest.Server, product domcatalog.Product, qty int) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", map[string]any{
		"customer_id":   "c1",
		"customer_name": "Maria Cruz",
		"items": []map[string]any{
			{
				"product_id":   product.ID,
				"variation_id": "v1",
				"name":         product.Name,
				"seller_id":    product.SellerID,
				"unit_price":   500_00,
				"quantity":     qty,
			},
		},
		"total_amount":    500_00 * qty,
		"payment_method":  "GCash",
		"delivery_method": "Standard",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		OrderID string `json:"order_id"`
	}
	decodeBody(t, resp, &created)
	return created.OrderID
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCheckoutFlow(t *testing.T) {
	srv := newServer(t)
	product := createProduct(t, srv)
	orderID := createOrder(t, srv, product, 3)

	resp, err := http.Get(srv.URL + "/orders/" + orderID)
	require.NoError(t, err)
	var order domorder.Order
	decodeBody(t, resp, &order)
	assert.Equal(t, domorder.StatusProcessing, order.Status)
	assert.Equal(t, int64(1500_00), order.TotalAmount)

	// Stock moved immediately.
	resp, err = http.Get(srv.URL + "/products/" + product.ID)
	require.NoError(t, err)
	var updated domcatalog.Product
	decodeBody(t, resp, &updated)
	assert.Equal(t, 7, updated.Stock)
}

func TestCreateOrder_BadRequest(t *testing.T) {
	srv := newServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", map[string]any{
		"customer_id":     "c1",
		"items":           []map[string]any{},
		"payment_method":  "GCash",
		"delivery_method": "Standard",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancellationEndpoints(t *testing.T) {
	srv := newServer(t)
	product := createProduct(t, srv)
	orderID := createOrder(t, srv, product, 2)

	// Approving without a pending request conflicts with the state machine.
	resp := doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/cancel-approve", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/cancel-request", map[string]any{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "reason is required")

	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/cancel-request", map[string]any{"reason": "wrong color"})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/cancel-approve", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Stock restored.
	getResp, err := http.Get(srv.URL + "/products/" + product.ID)
	require.NoError(t, err)
	var updated domcatalog.Product
	decodeBody(t, getResp, &updated)
	assert.Equal(t, 10, updated.Stock)
}

func TestFulfillmentEndpoints(t *testing.T) {
	srv := newServer(t)
	product := createProduct(t, srv)
	orderID := createOrder(t, srv, product, 1)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/ship", nil)
	var shipped struct {
		TrackingNumber string `json:"tracking_number"`
		Courier        string `json:"courier"`
	}
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &shipped)
	assert.Equal(t, "J&T Express", shipped.Courier)
	assert.Len(t, shipped.TrackingNumber, 12)

	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/deliver", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Delivered is terminal; a second delivery conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/deliver", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOrderQueries(t *testing.T) {
	srv := newServer(t)
	product := createProduct(t, srv)
	createOrder(t, srv, product, 1)

	resp, err := http.Get(srv.URL + "/orders?customer_id=c1")
	require.NoError(t, err)
	var orders []domorder.Order
	decodeBody(t, resp, &orders)
	assert.Len(t, orders, 1)

	resp, err = http.Get(srv.URL + "/orders?seller_id=s1")
	require.NoError(t, err)
	decodeBody(t, resp, &orders)
	assert.Len(t, orders, 1)

	resp, err = http.Get(srv.URL + "/orders")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "a filter is required")

	resp, err = http.Get(srv.URL + "/orders/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductEndpoints(t *testing.T) {
	srv := newServer(t)
	product := createProduct(t, srv)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/products/"+product.ID, map[string]any{
		"name":  "Inabel Blanket, King",
		"price": 650_00,
	})
	var updated domcatalog.Product
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Inabel Blanket, King", updated.Name)
	assert.Equal(t, int64(650_00), updated.Price)

	listResp, err := http.Get(srv.URL + "/products?category=Weaving")
	require.NoError(t, err)
	var products []domcatalog.Product
	decodeBody(t, listResp, &products)
	assert.Len(t, products, 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/products/"+product.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/products/" + product.ID)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestReviewEndpoints(t *testing.T) {
	srv := newServer(t)
	product := createProduct(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/products/"+product.ID+"/reviews", map[string]any{
		"user_id":   "u1",
		"user_name": "Ana",
		"rating":    5,
		"comment":   "beautiful weave",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/products/"+product.ID+"/reviews", map[string]any{
		"user_id": "u2",
		"rating":  9,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	listResp, err := http.Get(srv.URL + "/products/" + product.ID + "/reviews")
	require.NoError(t, err)
	var reviews []json.RawMessage
	decodeBody(t, listResp, &reviews)
	assert.Len(t, reviews, 1)

	// Aggregate moved on the product.
	getResp, err := http.Get(srv.URL + "/products/" + product.ID)
	require.NoError(t, err)
	var updated domcatalog.Product
	decodeBody(t, getResp, &updated)
	assert.Equal(t, 5.0, updated.Rating)
	assert.Equal(t, 1, updated.ReviewCount)
}
