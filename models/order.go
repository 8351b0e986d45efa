package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

const (
	DefaultPaymentMethod = "CREDIT_CARD"
	DefaultPaymentStatus = "COMPLETED"
)

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	AddressID     string          `json:"addressId"`
	CouponID      *string         `json:"couponId"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentID     string          `json:"paymentId"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Address *Address     `json:"address,omitempty"`
	Coupon  *Coupon      `json:"coupon,omitempty"`
	User    *UserSummary `json:"user,omitempty"`
}

// OrderItem is a snapshot of the purchased variant; it never follows later
// changes to the product row.
type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	ProductCategory string          `json:"productCategory"`
	Quantity        int             `json:"quantity"`
	Size            string          `json:"size"`
	Color           string          `json:"color"`
	Price           decimal.Decimal `json:"price"`
}

// SettlementItem is one cart line as submitted by the client at checkout.
type SettlementItem struct {
	ProductID       string          `json:"productId" binding:"required"`
	ProductName     string          `json:"productName"`
	ProductCategory string          `json:"productCategory"`
	Quantity        int             `json:"quantity" binding:"required,gte=1"`
	Size            string          `json:"size"`
	Color           string          `json:"color"`
	Price           decimal.Decimal `json:"price"`
}

type CreateFinalOrderRequest struct {
	// UserID is accepted for compatibility; the authenticated caller is used.
	UserID        string           `json:"userId"`
	AddressID     string           `json:"addressId" binding:"required"`
	Items         []SettlementItem `json:"items" binding:"required,min=1,dive"`
	CouponID      *string          `json:"couponId"`
	Total         decimal.Decimal  `json:"total"`
	PaymentMethod string           `json:"paymentMethod"`
	PaymentStatus string           `json:"paymentStatus"`
	PaymentID     string           `json:"paymentId" binding:"required"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// CheckoutItem is a cart line sent to the payment provider.
type CheckoutItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" binding:"required,gte=1"`
	Price       decimal.Decimal `json:"price"`
}

type CreatePayPalOrderRequest struct {
	Items []CheckoutItem  `json:"items" binding:"required,min=1,dive"`
	Total decimal.Decimal `json:"total"`
}

type CapturePayPalOrderRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}
