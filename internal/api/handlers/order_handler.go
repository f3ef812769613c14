package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ordercore/internal/order"
	"ordercore/models"
)

// OrderService is what the order routes need; both *order.Service and the
// cached decorator satisfy it.
type OrderService interface {
	CreateOrder(ctx context.Context, in order.CreateOrderInput) (*models.Order, error)
	ListOrders(ctx context.Context, customerID int64) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	PreviewOrderNumber(ctx context.Context, prefix string) (string, error)
}

type OrderHandler struct {
	service OrderService
}

func NewOrderHandler(service OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

type CreateOrderRequest struct {
	CustomerID     int64              `json:"customer_id" binding:"required,gt=0"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	OrderDate      string             `json:"order_date"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ProductID          int64           `json:"product_id" binding:"required"`
	ProductItemID      int64           `json:"product_item_id" binding:"required"`
	Quantity           int             `json:"quantity" binding:"gt=0"`
	Rate               decimal.Decimal `json:"rate"`
	NetWeight          decimal.Decimal `json:"net_weight"`
	MakingCharge       decimal.Decimal `json:"making_charge"`
	Wastage            decimal.Decimal `json:"wastage"`
	Purity             string          `json:"purity"`
	GrossWeight        decimal.Decimal `json:"gross_weight"`
	StoneWeight        decimal.Decimal `json:"stone_weight"`
	MeasurementDetails json.RawMessage `json:"measurement_details"`
	ImageURL           string          `json:"image_url"`
	ProductName        string          `json:"product_name"`
	SkuID              string          `json:"sku_id"`
}

var orderDateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseOrderDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func (r CreateOrderRequest) toInput(orderDate *time.Time) order.CreateOrderInput {
	in := order.CreateOrderInput{
		CustomerID:     r.CustomerID,
		DiscountAmount: r.DiscountAmount,
		OrderDate:      orderDate,
		Items:          make([]order.LineInput, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, order.LineInput{
			ProductID:          it.ProductID,
			ProductItemID:      it.ProductItemID,
			Quantity:           it.Quantity,
			Rate:               it.Rate,
			NetWeight:          it.NetWeight,
			MakingCharge:       it.MakingCharge,
			Wastage:            it.Wastage,
			Purity:             it.Purity,
			GrossWeight:        it.GrossWeight,
			StoneWeight:        it.StoneWeight,
			MeasurementDetails: it.MeasurementDetails,
			ImageURL:           it.ImageURL,
			ProductName:        it.ProductName,
			SkuID:              it.SkuID,
		})
	}
	return in
}

// GenerateCode previews the next order number for ?prefix=.
func (h *OrderHandler) GenerateCode(c *gin.Context) {
	number, err := h.service.PreviewOrderNumber(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		respondServiceError(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_number": number})
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	orderDate, ok := parseOrderDate(req.OrderDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "order_date must be RFC3339 or YYYY-MM-DD")
		return
	}

	created, err := h.service.CreateOrder(c.Request.Context(), req.toInput(orderDate))
	if err != nil {
		// A missing product or stock row is the caller's mistake here.
		respondServiceError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	raw := c.Query("customer_id")
	if raw == "" {
		respondError(c, http.StatusBadRequest, "customer_id is required")
		return
	}
	customerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || customerID <= 0 {
		respondError(c, http.StatusBadRequest, "customer_id must be a positive integer")
		return
	}

	orders, err := h.service.ListOrders(c.Request.Context(), customerID)
	if err != nil {
		respondServiceError(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	o, err := h.service.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
