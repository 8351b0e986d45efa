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
	"go.uber.org/zap"
)

const addressColumns = "id, user_id, name, address, city, country, postal_code, phone, is_default, created_at"

func scanAddress(row rowScanner, a *models.Address) error {
	return row.Scan(&a.ID, &a.UserID, &a.Name, &a.Address, &a.City, &a.Country, &a.PostalCode, &a.Phone, &a.IsDefault, &a.CreatedAt)
}

// AddressHandler keeps at most one default address per user. Clearing the old
// default and writing the new one happen in the same transaction.
type AddressHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAddressHandler(db *sql.DB, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{db: db, logger: logger}
}

func clearDefault(ctx context.Context, tx *sql.Tx, userID, exceptID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default AND id <> $2",
		userID, exceptID,
	)
	return err
}

func (h *AddressHandler) AddAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "AddAddress")
	defer span.End()

	id := uuid.NewString()
	var address models.Address
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		if req.IsDefault {
			if err := clearDefault(ctx, tx, claims.UserID, id); err != nil {
				return err
			}
		}
		return scanAddress(tx.QueryRowContext(ctx,
			"INSERT INTO addresses (id, user_id, name, address, city, country, postal_code, phone, is_default) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING "+addressColumns,
			id, claims.UserID, req.Name, req.Address, req.City, req.Country, req.PostalCode, req.Phone, req.IsDefault,
		), &address)
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to create address")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Address created successfully", "address": address})
}

func (h *AddressHandler) GetAddresses(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = $1 ORDER BY created_at DESC",
		claims.UserID,
	)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get addresses")
		return
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		var a models.Address
		if err := scanAddress(rows, &a); err != nil {
			respondError(c, h.logger, err, "Failed to scan address")
			return
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		respondError(c, h.logger, err, "Failed to get addresses")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "address": addresses})
}

func (h *AddressHandler) UpdateAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "UpdateAddress")
	defer span.End()

	id := c.Param("id")
	var address models.Address
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, "SELECT user_id FROM addresses WHERE id = $1 FOR UPDATE", id).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != claims.UserID) {
			return services.ErrAddressNotFound
		}
		if err != nil {
			return err
		}

		if req.IsDefault {
			if err := clearDefault(ctx, tx, claims.UserID, id); err != nil {
				return err
			}
		}
		return scanAddress(tx.QueryRowContext(ctx,
			"UPDATE addresses SET name = $2, address = $3, city = $4, country = $5, postal_code = $6, phone = $7, is_default = $8 WHERE id = $1 RETURNING "+addressColumns,
			id, req.Name, req.Address, req.City, req.Country, req.PostalCode, req.Phone, req.IsDefault,
		), &address)
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to update address")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Address updated successfully", "address": address})
}

func (h *AddressHandler) DeleteAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM addresses WHERE id = $1 AND user_id = $2",
		c.Param("id"), claims.UserID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			err = services.ErrAddressInUse
		}
		respondError(c, h.logger, err, "Failed to delete address")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		respondError(c, h.logger, services.ErrAddressNotFound, "Address not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Address deleted successfully"})
}
