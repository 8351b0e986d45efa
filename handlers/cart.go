package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"storefront-svc/database"
	"storefront-svc/models"
	"storefront-svc/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const cartLineSelect = `SELECT ci.id, ci.product_id, p.name, p.price, COALESCE(p.images[1], ''), ci.color, ci.size, ci.quantity
	FROM cart_items ci
	JOIN carts c ON c.id = ci.cart_id
	JOIN products p ON p.id = ci.product_id`

func scanCartLine(row rowScanner, l *models.CartLine) error {
	return row.Scan(&l.ID, &l.ProductID, &l.Name, &l.Price, &l.Image, &l.Color, &l.Size, &l.Quantity)
}

type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{db: db, logger: logger}
}

func (h *CartHandler) FetchCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "FetchCart")
	defer span.End()

	rows, err := h.db.QueryContext(ctx, cartLineSelect+" WHERE c.user_id = $1 ORDER BY ci.id", claims.UserID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get cart items")
		return
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		if err := scanCartLine(rows, &l); err != nil {
			respondError(c, h.logger, err, "Failed to scan cart item")
			return
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		respondError(c, h.logger, err, "Failed to get cart items")
		return
	}

	span.SetAttributes(attribute.Int("cart.items", len(lines)))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": lines})
}

// AddToCart creates the cart on first use and merges repeated variants into
// one line by incrementing its quantity.
func (h *CartHandler) AddToCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "AddToCart")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID), attribute.Int("quantity", req.Quantity))

	var line models.CartLine
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		var cartID string
		err := tx.QueryRowContext(ctx,
			"INSERT INTO carts (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id RETURNING id",
			uuid.NewString(), claims.UserID,
		).Scan(&cartID)
		if err != nil {
			return err
		}

		var itemID string
		err = tx.QueryRowContext(ctx,
			"INSERT INTO cart_items (id, cart_id, product_id, quantity, size, color) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (cart_id, product_id, size, color) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity RETURNING id",
			uuid.NewString(), cartID, req.ProductID, req.Quantity, req.Size, req.Color,
		).Scan(&itemID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				return services.ErrProductNotFound
			}
			return err
		}

		return scanCartLine(tx.QueryRowContext(ctx, cartLineSelect+" WHERE ci.id = $1", itemID), &line)
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to add item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product added to cart", "data": line})
}

func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "RemoveFromCart")
	defer span.End()

	result, err := h.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id IN (SELECT id FROM carts WHERE user_id = $2)",
		c.Param("id"), claims.UserID,
	)
	if err != nil {
		respondError(c, h.logger, err, "Failed to remove item from cart")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		respondError(c, h.logger, services.ErrCartItemNotFound, "Cart item not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item is removed from cart"})
}

func (h *CartHandler) UpdateCartItemQuantity(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "UpdateCartItemQuantity")
	defer span.End()

	line, err := h.updateQuantity(ctx, claims.UserID, c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update cart item quantity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": line})
}

func (h *CartHandler) updateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartLine, error) {
	var line models.CartLine
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id IN (SELECT id FROM carts WHERE user_id = $3)",
			quantity, itemID, userID,
		)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return services.ErrCartItemNotFound
		}
		return scanCartLine(tx.QueryRowContext(ctx, cartLineSelect+" WHERE ci.id = $1", itemID), &line)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// ClearCart empties the cart but keeps the cart row.
func (h *CartHandler) ClearCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	_, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)",
		claims.UserID,
	)
	if err != nil {
		respondError(c, h.logger, err, "Failed to clear cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "cart cleared successfully!"})
}
