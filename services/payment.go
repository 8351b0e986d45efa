package services

import (
	"context"
	"errors"
	"fmt"

	"storefront-svc/apperr"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/paypal"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentGateway is the external provider used at checkout.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, items []models.CheckoutItem, total decimal.Decimal) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
}

// PaymentService validates checkout input before it reaches the gateway and
// records the outcome of every provider call.
type PaymentService struct {
	gateway PaymentGateway
	logger  *zap.Logger
}

func NewPaymentService(gateway PaymentGateway, logger *zap.Logger) *PaymentService {
	return &PaymentService{gateway: gateway, logger: logger}
}

// CreateCheckout registers the cart with the provider and returns its order.
// The total is passed through as declared by the client.
func (s *PaymentService) CreateCheckout(ctx context.Context, items []models.CheckoutItem, total decimal.Decimal) (*paypal.Order, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "CreatePayPalOrder")
	defer span.End()

	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("item %q has quantity %d: %w", it.Name, it.Quantity, apperr.ErrValidation)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("item %q: %w", it.Name, ErrInvalidAmount)
		}
	}
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}
	span.SetAttributes(attribute.Int("checkout.items", len(items)), attribute.String("checkout.total", total.StringFixed(2)))

	order, err := s.gateway.CreateOrder(ctx, items, total)
	if err != nil {
		middleware.RecordPayPalRequest("create_order", gatewayOutcome(err))
		span.RecordError(err)
		s.logger.Error("PayPal order creation failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		return nil, err
	}
	middleware.RecordPayPalRequest("create_order", "success")
	span.SetAttributes(attribute.String("paypal.order_id", order.ID))
	return order, nil
}

// Capture confirms a provider order. A failure here is terminal; the caller
// must start a new checkout.
func (s *PaymentService) Capture(ctx context.Context, orderID string) (*paypal.Capture, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "CapturePayPalOrder")
	defer span.End()
	span.SetAttributes(attribute.String("paypal.order_id", orderID))

	if orderID == "" {
		return nil, fmt.Errorf("order id is required: %w", apperr.ErrValidation)
	}

	capture, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		middleware.RecordPayPalRequest("capture_order", gatewayOutcome(err))
		span.RecordError(err)
		s.logger.Error("PayPal capture failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("paypal_order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	middleware.RecordPayPalRequest("capture_order", "success")
	return capture, nil
}

func gatewayOutcome(err error) string {
	switch {
	case errors.Is(err, paypal.ErrAuthFailure):
		return "auth_failure"
	case errors.Is(err, paypal.ErrCaptureFailure):
		return "capture_failure"
	default:
		return "request_failure"
	}
}
