package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-svc/config"
	"storefront-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ProductTTL  = 5 * time.Minute
	featuredKey = "products:featured"
)

func InitRedis(cfg config.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// ProductCache stores product documents by id. A nil *ProductCache or one
// built without a client is a no-op cache that always misses.
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProductCache(rdb *redis.Client) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ProductTTL}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// GetProduct reports ok=false on a miss; err is only set for decode or
// connection failures.
func (pc *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, bool, error) {
	if pc == nil || pc.rdb == nil {
		return nil, false, nil
	}
	data, err := pc.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (pc *ProductCache) SetProduct(ctx context.Context, p *models.Product) error {
	if pc == nil || pc.rdb == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return pc.rdb.Set(ctx, productKey(p.ID), data, pc.ttl).Err()
}

// DeleteProduct also drops the featured list, which embeds product documents.
func (pc *ProductCache) DeleteProduct(ctx context.Context, id string) error {
	if pc == nil || pc.rdb == nil {
		return nil
	}
	return pc.rdb.Del(ctx, productKey(id), featuredKey).Err()
}

func (pc *ProductCache) GetFeatured(ctx context.Context) ([]models.Product, bool, error) {
	if pc == nil || pc.rdb == nil {
		return nil, false, nil
	}
	data, err := pc.rdb.Get(ctx, featuredKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (pc *ProductCache) SetFeatured(ctx context.Context, products []models.Product) error {
	if pc == nil || pc.rdb == nil {
		return nil
	}
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return pc.rdb.Set(ctx, featuredKey, data, pc.ttl).Err()
}

func (pc *ProductCache) InvalidateFeatured(ctx context.Context) error {
	if pc == nil || pc.rdb == nil {
		return nil
	}
	return pc.rdb.Del(ctx, featuredKey).Err()
}
