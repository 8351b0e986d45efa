package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EnsureSuperAdmin creates the first SUPER_ADMIN account when none exists.
func EnsureSuperAdmin(ctx context.Context, db *sql.DB, email, password string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	var existing string
	err := db.QueryRowContext(ctx, "SELECT email FROM users WHERE role = $1 LIMIT 1", models.RoleSuperAdmin).Scan(&existing)
	if err == nil {
		logger.Info("Super admin already exists", zap.String("email", existing))
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to look up super admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, $2, $3, $4, $5)",
		uuid.NewString(), "Super Admin", email, string(hash), models.RoleSuperAdmin,
	); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	logger.Info("Super admin created", zap.String("email", email))
	return nil
}
