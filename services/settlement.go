package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/apperr"
	"storefront-svc/database"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventPublisher delivers order events after a transaction has committed.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// ProductCache drops cached product documents whose stock changed.
type ProductCache interface {
	DeleteProduct(ctx context.Context, id string) error
}

type SettlementOptions struct {
	// GuardStock makes the decrement conditional on stock >= quantity.
	GuardStock bool
	// GuardCoupon makes the usage increment conditional on usage_count < usage_limit.
	GuardCoupon bool
}

type SettleInput struct {
	UserID        string
	AddressID     string
	CouponID      *string
	Items         []models.SettlementItem
	Total         decimal.Decimal
	PaymentMethod string
	PaymentStatus string
	PaymentID     string
}

// SettlementEngine turns a captured payment and the caller's cart into an order.
// It is the only place where several tables are written together.
type SettlementEngine struct {
	db        *sql.DB
	publisher EventPublisher
	cache     ProductCache
	opts      SettlementOptions
	logger    *zap.Logger
	newID     func() string
}

func NewSettlementEngine(db *sql.DB, publisher EventPublisher, cache ProductCache, opts SettlementOptions, logger *zap.Logger) *SettlementEngine {
	return &SettlementEngine{
		db:        db,
		publisher: publisher,
		cache:     cache,
		opts:      opts,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Settle writes the order, its item snapshots, the stock and sold-count
// adjustments, the cart removal and the coupon usage in one transaction.
// The total is stored as submitted and is not recomputed from item prices.
// There is no idempotency check on PaymentID.
func (e *SettlementEngine) Settle(ctx context.Context, in SettleInput) (*models.Order, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "SettleOrder")
	defer span.End()

	if in.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("item %s has quantity %d: %w", it.ProductID, it.Quantity, apperr.ErrValidation)
		}
	}
	if in.CouponID != nil && *in.CouponID == "" {
		in.CouponID = nil
	}

	span.SetAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int("order.items", len(in.Items)),
		attribute.String("payment.id", in.PaymentID),
	)

	order := &models.Order{
		ID:            e.newID(),
		UserID:        in.UserID,
		AddressID:     in.AddressID,
		CouponID:      in.CouponID,
		Total:         in.Total,
		PaymentMethod: orDefault(in.PaymentMethod, models.DefaultPaymentMethod),
		PaymentStatus: orDefault(in.PaymentStatus, models.DefaultPaymentStatus),
		PaymentID:     in.PaymentID,
		Status:        models.OrderStatusPending,
	}

	err := database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		return e.settle(ctx, tx, order, in.Items)
	})
	if err != nil {
		span.RecordError(err)
		middleware.RecordOrderSettled("failed")
		e.logger.Warn("Settlement rolled back",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("user_id", in.UserID),
			zap.String("payment_id", in.PaymentID),
			zap.Error(err),
		)
		return nil, err
	}

	middleware.RecordOrderSettled("committed")
	span.SetAttributes(attribute.String("order.id", order.ID))
	e.logger.Info("Order settled",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("payment_id", order.PaymentID),
		zap.Int("items", len(order.Items)),
	)

	e.afterCommit(ctx, order)
	return order, nil
}

func (e *SettlementEngine) settle(ctx context.Context, tx *sql.Tx, order *models.Order, items []models.SettlementItem) error {
	var addressID string
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM addresses WHERE id = $1 AND user_id = $2",
		order.AddressID, order.UserID,
	).Scan(&addressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAddressNotFound
		}
		return persistErr("load address", err)
	}

	err = tx.QueryRowContext(ctx,
		"INSERT INTO orders (id, user_id, address_id, coupon_id, total, payment_method, payment_status, payment_id, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at",
		order.ID, order.UserID, order.AddressID, order.CouponID, order.Total,
		order.PaymentMethod, order.PaymentStatus, order.PaymentID, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return persistErr("insert order", err)
	}

	order.Items = make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		item := models.OrderItem{
			ID:              e.newID(),
			OrderID:         order.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			ProductCategory: orDefault(it.ProductCategory, "Unknown"),
			Quantity:        it.Quantity,
			Size:            it.Size,
			Color:           it.Color,
			Price:           it.Price,
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (id, order_id, product_id, product_name, product_category, quantity, size, color, price) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductCategory,
			item.Quantity, item.Size, item.Color, item.Price,
		); err != nil {
			return persistErr("insert order item", err)
		}
		order.Items = append(order.Items, item)
	}

	stockQuery := "UPDATE products SET stock = stock - $1, sold_count = sold_count + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2"
	if e.opts.GuardStock {
		stockQuery += " AND stock >= $1"
	}
	for _, it := range items {
		result, err := tx.ExecContext(ctx, stockQuery, it.Quantity, it.ProductID)
		if err != nil {
			return persistErr("adjust stock", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			if !e.opts.GuardStock {
				return fmt.Errorf("product %s: %w", it.ProductID, ErrProductNotFound)
			}
			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", it.ProductID).Scan(&exists); err != nil {
				return persistErr("check product", err)
			}
			if !exists {
				return fmt.Errorf("product %s: %w", it.ProductID, ErrProductNotFound)
			}
			return fmt.Errorf("product %s: %w", it.ProductID, ErrInsufficientStock)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)",
		order.UserID,
	); err != nil {
		return persistErr("clear cart items", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM carts WHERE user_id = $1", order.UserID)
	if err != nil {
		return persistErr("delete cart", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}

	if order.CouponID != nil {
		couponQuery := "UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1"
		if e.opts.GuardCoupon {
			couponQuery += " AND usage_count < usage_limit"
		}
		result, err := tx.ExecContext(ctx, couponQuery, *order.CouponID)
		if err != nil {
			return persistErr("consume coupon", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			if e.opts.GuardCoupon {
				return ErrCouponLimitReached
			}
			return ErrCouponNotFound
		}
	}

	return nil
}

// afterCommit runs the best-effort side effects. Failures are logged and never
// undo the committed order.
func (e *SettlementEngine) afterCommit(ctx context.Context, order *models.Order) {
	if e.cache != nil {
		for _, it := range order.Items {
			if err := e.cache.DeleteProduct(ctx, it.ProductID); err != nil {
				e.logger.Warn("Failed to invalidate product cache", zap.String("product_id", it.ProductID), zap.Error(err))
			}
		}
	}

	if e.publisher == nil {
		return
	}
	event := models.OrderEvent{
		EventType: models.EventOrderCreated,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Total:     order.Total,
		PaymentID: order.PaymentID,
		ItemCount: len(order.Items),
	}
	if order.CouponID != nil {
		event.CouponID = *order.CouponID
	}
	if err := e.publisher.PublishOrderEvent(ctx, event); err != nil {
		e.logger.Error("Failed to publish order_created event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
