package models

import "github.com/shopspring/decimal"

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventFulfillmentStatus  = "fulfillment_status"
)

type OrderEvent struct {
	EventType string          `json:"event_type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	PaymentID string          `json:"payment_id,omitempty"`
	CouponID  string          `json:"coupon_id,omitempty"`
	ItemCount int             `json:"item_count"`
}

// FulfillmentEvent is consumed from the fulfillment topic.
type FulfillmentEvent struct {
	EventType string      `json:"event_type"`
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
}
