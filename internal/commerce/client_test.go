package commerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ordermesh/tokengate/internal/logging"
	"github.com/ordermesh/tokengate/internal/rotation"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func newTestClient(t *testing.T, upstream string) (*Client, *rotation.Store) {
	t.Helper()
	store := rotation.NewStore()
	store.Init("marketplace", "refresh-0", time.Hour)
	store.Update("marketplace", func(r *rotation.TokenRecord) { r.AccessToken = "at-1" })
	logger := logging.NewWithWriter(testWriter{t}, false)
	return NewClient(upstream, "marketplace", store, rate.Inf, 1, logger), store
}

func TestGetAllOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getAllOrders", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Equal(t, "acct-1", r.Header.Get("accountid"))
		assert.Equal(t, "?pageSize=50", r.Header.Get("params"))
		_, _ = w.Write([]byte(`{"orders":[{"name":"accounts/1/customers/2/orders/3","orderItems":[{"skuId":"sku-1","quantity":2,"productName":"Widget","status":"active"}]}]}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	orders, err := client.GetAllOrders(context.Background(), "acct-1", "?pageSize=50")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "accounts/1/customers/2/orders/3", orders[0].Name)
	require.Len(t, orders[0].OrderItems, 1)
	assert.Equal(t, "sku-1", orders[0].OrderItems[0].SkuID)
	// Unmodelled fields stay reachable for filtering.
	assert.Equal(t, "active", orders[0].OrderItems[0].Field("status"))
}

func TestGetProductsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getProducts", r.URL.Path)
		assert.Equal(t, "?pageSize=1&language=DE&filter.name=Widget+Pro", r.Header.Get("params"))
		_, _ = w.Write([]byte(`{"products":[{"name":"products/p-9","definition":{"skus":[{"id":"sku-1","plans":[{"id":"plan-1","mpnId":"X:P1Y:Y"}]}]}}]}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	products, err := client.GetProducts(context.Background(), "acct-1", "Widget Pro")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "products/p-9", products[0].Name)
	assert.Equal(t, "plan-1", products[0].Definition.Skus[0].Plans[0].ID)
}

func TestUpdateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addOrder", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "acct-1", r.Header.Get("accountid"))
		assert.Equal(t, "cust-2", r.Header.Get("customerid"))

		body, _ := io.ReadAll(r.Body)
		var payload struct {
			OrderItems []UpdateItem `json:"orderItems"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.OrderItems, 1)
		assert.Equal(t, "UPDATE", payload.OrderItems[0].Action)

		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	result, err := client.UpdateOrder(context.Background(), "acct-1", "cust-2", []UpdateItem{{
		ProductID: "p-9", SkuID: "sku-1", PlanID: "plan-1", Action: "UPDATE", Quantity: 2,
	}})
	require.NoError(t, err)
	assert.Equal(t, "accepted", result["status"])
}

func TestUpdateOrderSurfacesUpstreamMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"subscription is suspended"}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	_, err := client.UpdateOrder(context.Background(), "acct-1", "cust-2", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription is suspended")
}
