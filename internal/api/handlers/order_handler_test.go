package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ordercore/internal/api"
	"ordercore/internal/api/handlers"
	"ordercore/internal/codegen"
	"ordercore/internal/metrics"
	"ordercore/internal/order"
	"ordercore/internal/testutil"
	"ordercore/models"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	reg := prometheus.NewRegistry()
	svc := order.NewService(db,
		codegen.New(db, codegen.Options{Separator: "-"}),
		order.WithMetrics(metrics.New(reg)),
	)
	return api.NewRouter(svc, reg), db
}

func performRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func seedNecklace(t *testing.T, db *gorm.DB, qty int) (models.Product, models.ProductItemDetail) {
	t.Helper()
	p := testutil.SeedProduct(t, db, "Temple Necklace", "Weight Based")
	s := testutil.SeedStock(t, db, p.ID, "NK-22K-01", qty)
	return p, s
}

func TestCreateOrderEndpoint(t *testing.T) {
	r, db := setupRouter(t)
	p, s := seedNecklace(t, db, 3)

	body := map[string]interface{}{
		"customer_id":     12,
		"discount_amount": 0,
		"order_date":      "2026-02-01",
		"items": []map[string]interface{}{{
			"product_id":          p.ID,
			"product_item_id":     s.ID,
			"quantity":            1,
			"rate":                5000,
			"net_weight":          2,
			"making_charge":       200,
			"wastage":             50,
			"product_name":        "Temple Necklace",
			"sku_id":              "NK-22K-01",
			"measurement_details": map[string]interface{}{"length_cm": 45},
		}},
	}
	w := performRequest(r, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "ORD-0001", created["order_number"])
	assert.Equal(t, "10557.5", created["total_amount"])
	assert.Equal(t, "307.5", created["tax_amount"])
	assert.Equal(t, float64(1), created["order_status"])

	items, ok := created["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "10000", item["amount"])
	assert.Equal(t, map[string]interface{}{"length_cm": float64(45)}, item["measurement_details"])

	assert.Equal(t, 2, testutil.StockQuantity(t, db, s.ID))
}

func TestCreateOrderEndpointErrors(t *testing.T) {
	r, db := setupRouter(t)
	p, s := seedNecklace(t, db, 1)

	line := func(productID, itemID int64, qty int) map[string]interface{} {
		return map[string]interface{}{"product_id": productID, "product_item_id": itemID, "quantity": qty, "rate": 5000, "net_weight": 1}
	}

	tests := []struct {
		name    string
		body    interface{}
		status  int
		message string
	}{
		{"missing customer", map[string]interface{}{"items": []interface{}{line(p.ID, s.ID, 1)}}, http.StatusBadRequest, "customer_id is required"},
		{"missing items", map[string]interface{}{"customer_id": 1}, http.StatusBadRequest, "items is required"},
		{"empty items", map[string]interface{}{"customer_id": 1, "items": []interface{}{}}, http.StatusBadRequest, "items must not be empty"},
		{"zero quantity", map[string]interface{}{"customer_id": 1, "items": []interface{}{line(p.ID, s.ID, 0)}}, http.StatusBadRequest, "items[0].quantity must be positive"},
		{"negative quantity", map[string]interface{}{"customer_id": 1, "items": []interface{}{line(p.ID, s.ID, -2)}}, http.StatusBadRequest, "items[0].quantity must be positive"},
		{"bad order date", map[string]interface{}{"customer_id": 1, "order_date": "yesterday", "items": []interface{}{line(p.ID, s.ID, 1)}}, http.StatusBadRequest, "order_date must be RFC3339 or YYYY-MM-DD"},
		{"unknown product", map[string]interface{}{"customer_id": 1, "items": []interface{}{line(999, s.ID, 1)}}, http.StatusBadRequest, "Product 999 not found"},
		{"unknown stock row", map[string]interface{}{"customer_id": 1, "items": []interface{}{line(p.ID, 999, 1)}}, http.StatusBadRequest, "ProductItem not Found"},
		{"insufficient stock", map[string]interface{}{"customer_id": 1, "items": []interface{}{line(p.ID, s.ID, 5)}}, http.StatusBadRequest, "Insufficient stock for product item 1 (sku NK-22K-01): requested 5, available 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(r, http.MethodPost, "/orders", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decodeError(t, w)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, http.StatusText(tt.status), resp.Error)
		})
	}

	assert.Equal(t, 1, testutil.StockQuantity(t, db, s.ID))
}

func TestListGetDeleteEndpoints(t *testing.T) {
	r, db := setupRouter(t)
	p, s := seedNecklace(t, db, 5)
	testutil.SeedDefaultAddress(t, db, 12)

	body := map[string]interface{}{
		"customer_id": 12,
		"items":       []interface{}{map[string]interface{}{"product_id": p.ID, "product_item_id": s.ID, "quantity": 1, "rate": 5000, "net_weight": 1}},
	}
	w := performRequest(r, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = performRequest(r, http.MethodGet, "/orders?customer_id=12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Orders, 1)
	require.NotNil(t, listed.Orders[0].DeliveryAddress)
	assert.Equal(t, "Thrissur", listed.Orders[0].DeliveryAddress.District)
	assert.Len(t, listed.Orders[0].Items, 1)

	w = performRequest(r, http.MethodGet, "/orders/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodDelete, "/orders/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = performRequest(r, http.MethodGet, "/orders/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order "+itoa(created.ID)+" not found", decodeError(t, w).Message)

	w = performRequest(r, http.MethodDelete, "/orders/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodGet, "/orders?customer_id=12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[]}`, w.Body.String())
}

func TestListOrdersRequiresCustomer(t *testing.T) {
	r, _ := setupRouter(t)

	w := performRequest(r, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "customer_id is required", decodeError(t, w).Message)

	w = performRequest(r, http.MethodGet, "/orders?customer_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodGet, "/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateCodeEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	w := performRequest(r, http.MethodGet, "/orders/generate-code?prefix=ORD", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"order_number":"ORD-0001"}`, w.Body.String())

	w = performRequest(r, http.MethodGet, "/orders/generate-code", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"order_number":"ORD-0001"}`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := setupRouter(t)

	w := performRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = performRequest(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "erp_orders_placed_total")
}

type failingService struct {
	handlers.OrderService
	err error
}

func (f failingService) GetOrderByID(context.Context, int64) (*models.Order, error) {
	return nil, f.err
}

func (f failingService) CreateOrder(context.Context, order.CreateOrderInput) (*models.Order, error) {
	return nil, f.err
}

func TestUnclassifiedErrorsDoNotLeak(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := api.NewRouter(failingService{err: errors.New(`pq: relation "orders" does not exist`)}, prometheus.NewRegistry())

	w := performRequest(r, http.MethodGet, "/orders/1", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "relation")
}

func TestConflictMapsTo409(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conflict := &order.Error{Kind: order.ErrConflict, Message: "could not reserve a unique order number after 50 attempts"}
	r := api.NewRouter(failingService{err: conflict}, prometheus.NewRegistry())

	body := map[string]interface{}{
		"customer_id": 1,
		"items":       []interface{}{map[string]interface{}{"product_id": 1, "product_item_id": 1, "quantity": 1}},
	}
	w := performRequest(r, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, conflict.Message, decodeError(t, w).Message)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
