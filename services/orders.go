package services

import (
	"context"
	"database/sql"
	"errors"

	"storefront-svc/models"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const orderSelect = `SELECT o.id, o.user_id, o.address_id, o.coupon_id, o.total, o.payment_method, o.payment_status,
	o.payment_id, o.status, o.created_at, o.updated_at,
	a.id, a.name, a.address, a.city, a.country, a.postal_code, a.phone, a.is_default,
	u.name, u.email
	FROM orders o
	LEFT JOIN addresses a ON a.id = o.address_id
	LEFT JOIN users u ON u.id = o.user_id`

// OrderService serves the account and admin views of settled orders.
type OrderService struct {
	db        *sql.DB
	publisher EventPublisher
	logger    *zap.Logger
}

func NewOrderService(db *sql.DB, publisher EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{db: db, publisher: publisher, logger: logger}
}

// ListByUser returns the user's orders newest first, with items and address.
func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ListUserOrders")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	orders, err := s.query(ctx, orderSelect+" WHERE o.user_id = $1 ORDER BY o.created_at DESC", false, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return orders, nil
}

// GetByID returns one order owned by userID. Orders of other users are
// reported as not found.
func (s *OrderService) GetByID(ctx context.Context, orderID, userID string) (*models.Order, error) {
	orders, err := s.query(ctx, orderSelect+" WHERE o.id = $1 AND o.user_id = $2", false, orderID, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return s.withCoupon(ctx, &orders[0])
}

// Get returns an order regardless of owner.
func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	orders, err := s.query(ctx, orderSelect+" WHERE o.id = $1", true, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return s.withCoupon(ctx, &orders[0])
}

// ListAll returns every order newest first with user and address joined.
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ListAllOrders")
	defer span.End()

	orders, err := s.query(ctx, orderSelect+" ORDER BY o.created_at DESC", true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return orders, nil
}

// UpdateStatus overwrites the fulfillment status. Any known status is
// accepted from any other status.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(status)))

	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var order models.Order
	err := s.db.QueryRowContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING id, user_id, address_id, coupon_id, total, payment_method, payment_status, payment_id, status, created_at, updated_at",
		status, orderID,
	).Scan(&order.ID, &order.UserID, &order.AddressID, &order.CouponID, &order.Total, &order.PaymentMethod,
		&order.PaymentStatus, &order.PaymentID, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		span.RecordError(err)
		return nil, persistErr("update order status", err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)

	if s.publisher != nil {
		event := models.OrderEvent{
			EventType: models.EventOrderStatusChanged,
			OrderID:   order.ID,
			UserID:    order.UserID,
			Status:    order.Status,
			Total:     order.Total,
			PaymentID: order.PaymentID,
		}
		if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish order_status_changed event", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return &order, nil
}

func (s *OrderService) withCoupon(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.CouponID == nil {
		return order, nil
	}
	var c models.Coupon
	err := s.db.QueryRowContext(ctx, "SELECT "+couponColumns+" FROM coupons WHERE id = $1", *order.CouponID).
		Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsageCount, &c.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// The coupon was deleted after the order was placed.
	case err != nil:
		return nil, persistErr("load order coupon", err)
	default:
		order.Coupon = &c
	}
	return order, nil
}

func (s *OrderService) query(ctx context.Context, query string, withUser bool, args ...any) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("query orders", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var (
			o                                           models.Order
			addrID, name, line, city, country, zip, tel sql.NullString
			isDefault                                   sql.NullBool
			userName, userEmail                         sql.NullString
		)
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.AddressID, &o.CouponID, &o.Total, &o.PaymentMethod, &o.PaymentStatus,
			&o.PaymentID, &o.Status, &o.CreatedAt, &o.UpdatedAt,
			&addrID, &name, &line, &city, &country, &zip, &tel, &isDefault,
			&userName, &userEmail,
		); err != nil {
			return nil, persistErr("scan order", err)
		}
		if addrID.Valid {
			o.Address = &models.Address{
				ID:         addrID.String,
				UserID:     o.UserID,
				Name:       name.String,
				Address:    line.String,
				City:       city.String,
				Country:    country.String,
				PostalCode: zip.String,
				Phone:      tel.String,
				IsDefault:  isDefault.Bool,
			}
		}
		if withUser && userEmail.Valid {
			o.User = &models.UserSummary{ID: o.UserID, Name: userName.String, Email: userEmail.String}
		}
		o.Items = []models.OrderItem{}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query orders", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderService) attachItems(ctx context.Context, orders []models.Order) error {
	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, product_name, product_category, quantity, size, color, price FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id",
		pq.Array(ids),
	)
	if err != nil {
		return persistErr("query order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductCategory,
			&it.Quantity, &it.Size, &it.Color, &it.Price); err != nil {
			return persistErr("scan order item", err)
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return persistErr("query order items", err)
	}
	return nil
}
