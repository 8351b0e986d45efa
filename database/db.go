package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-svc/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(cfg config.Config, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		return nil, err
	}

	logger.Info("Database connection established")
	return db, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'USER',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		brand VARCHAR(255) NOT NULL,
		category VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		gender VARCHAR(32) NOT NULL DEFAULT '',
		sizes TEXT[] NOT NULL DEFAULT '{}',
		colors TEXT[] NOT NULL DEFAULT '{}',
		price DECIMAL(10, 2) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		sold_count INTEGER NOT NULL DEFAULT 0,
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		images TEXT[] NOT NULL DEFAULT '{}',
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		code VARCHAR(64) UNIQUE NOT NULL,
		discount_percentage INTEGER NOT NULL CHECK (discount_percentage BETWEEN 0 AND 100),
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		usage_limit INTEGER NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id TEXT PRIMARY KEY,
		user_id TEXT UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		size VARCHAR(32) NOT NULL DEFAULT '',
		color VARCHAR(32) NOT NULL DEFAULT '',
		UNIQUE (cart_id, product_id, size, color)
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		address TEXT NOT NULL,
		city VARCHAR(255) NOT NULL,
		country VARCHAR(255) NOT NULL,
		postal_code VARCHAR(32) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS addresses_one_default_per_user ON addresses (user_id) WHERE is_default`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		address_id TEXT NOT NULL REFERENCES addresses(id),
		coupon_id TEXT REFERENCES coupons(id) ON DELETE SET NULL,
		total DECIMAL(10, 2) NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		payment_status VARCHAR(32) NOT NULL,
		payment_id VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		product_category VARCHAR(255) NOT NULL,
		quantity INTEGER NOT NULL,
		size VARCHAR(32) NOT NULL DEFAULT '',
		color VARCHAR(32) NOT NULL DEFAULT '',
		price DECIMAL(10, 2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feature_banners (
		id TEXT PRIMARY KEY,
		image_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}
