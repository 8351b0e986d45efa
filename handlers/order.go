package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/paypal"
	"storefront-svc/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Settler interface {
	Settle(ctx context.Context, in services.SettleInput) (*models.Order, error)
}

type Checkout interface {
	CreateCheckout(ctx context.Context, items []models.CheckoutItem, total decimal.Decimal) (*paypal.Order, error)
	Capture(ctx context.Context, orderID string) (*paypal.Capture, error)
}

type OrderStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetByID(ctx context.Context, orderID, userID string) (*models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

type OrderHandler struct {
	checkout Checkout
	settler  Settler
	orders   OrderStore
	logger   *zap.Logger
}

func NewOrderHandler(checkout Checkout, settler Settler, orders OrderStore, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		settler:  settler,
		orders:   orders,
		logger:   logger,
	}
}

// CreatePayPalOrder returns the provider's order object unchanged.
func (h *OrderHandler) CreatePayPalOrder(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var req models.CreatePayPalOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.checkout.CreateCheckout(c.Request.Context(), req.Items, req.Total)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create PayPal order")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", order.Raw)
}

// CapturePayPalOrder returns the provider's capture payload unchanged. On
// failure the provider's error payload is passed back for diagnostics.
func (h *OrderHandler) CapturePayPalOrder(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var req models.CapturePayPalOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	capture, err := h.checkout.Capture(c.Request.Context(), req.OrderID)
	if err != nil {
		var pe *paypal.Error
		if errors.As(err, &pe) {
			h.logger.Error("PayPal capture error",
				zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
				zap.String("paypal_order_id", req.OrderID),
				zap.Error(err),
			)
			body := gin.H{"success": false, "message": "Unexpected error occured!", "paypalError": err.Error()}
			if len(pe.Payload) > 0 {
				body["paypalError"] = pe.Payload
			}
			c.JSON(http.StatusInternalServerError, body)
			return
		}
		respondError(c, h.logger, err, "Failed to capture PayPal order")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", capture.Raw)
}

// CreateFinalOrder settles the caller's cart. The userId in the body is
// ignored in favour of the authenticated caller.
func (h *OrderHandler) CreateFinalOrder(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateFinalOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.UserID != "" && req.UserID != claims.UserID {
		h.logger.Warn("Ignoring mismatched userId in order body",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("user_id", claims.UserID),
		)
	}

	order, err := h.settler.Settle(c.Request.Context(), services.SettleInput{
		UserID:        claims.UserID,
		AddressID:     req.AddressID,
		CouponID:      req.CouponID,
		Items:         req.Items,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
		PaymentID:     req.PaymentID,
	})
	if err != nil {
		respondError(c, h.logger, err, "Order creation failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) GetSingleOrder(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), c.Param("orderId"), claims.UserID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) GetOrdersByUser(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *OrderHandler) GetAllOrdersForAdmin(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), req.Status)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order updated successfully", "order": order})
}
