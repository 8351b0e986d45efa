package handlers

import (
	"database/sql"
	"net/http"

	"storefront-svc/cache"
	"storefront-svc/database"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SettingsHandler manages storefront-wide settings: the featured product
// strip and the banner carousel.
type SettingsHandler struct {
	db     *sql.DB
	cache  *cache.ProductCache
	logger *zap.Logger
}

func NewSettingsHandler(db *sql.DB, productCache *cache.ProductCache, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{db: db, cache: productCache, logger: logger}
}

// UpdateFeaturedProducts replaces the featured set in one transaction.
func (h *SettingsHandler) UpdateFeaturedProducts(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "UpdateFeaturedProducts")
	defer span.End()

	var req models.UpdateFeaturedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid product IDs. Ensure it's an array with up to 8 items."})
		return
	}
	span.SetAttributes(attribute.Int("products.count", len(req.ProductIDs)))

	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE products SET is_featured = FALSE WHERE is_featured"); err != nil {
			return err
		}
		if len(req.ProductIDs) == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, "UPDATE products SET is_featured = TRUE WHERE id = ANY($1)", pq.Array(req.ProductIDs))
		return err
	})
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update featured products", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update feature products"})
		return
	}

	if err := h.cache.InvalidateFeatured(ctx); err != nil {
		h.logger.Warn("Failed to invalidate featured cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Feature products updated successfully"})
}

func (h *SettingsHandler) FetchFeaturedProducts(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "FetchFeaturedProducts")
	defer span.End()

	if cached, ok, err := h.cache.GetFeatured(ctx); err != nil {
		h.logger.Warn("Cache read failed", zap.Error(err))
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		c.JSON(http.StatusOK, gin.H{"success": true, "products": cached})
		return
	}

	rows, err := h.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products WHERE is_featured ORDER BY created_at DESC")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch featured products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get feature products"})
		return
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to read featured products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get feature products"})
		return
	}

	if err := h.cache.SetFeatured(ctx, products); err != nil {
		h.logger.Warn("Cache write failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

// AddFeatureBanners stores already-hosted banner images, one row per URL.
func (h *SettingsHandler) AddFeatureBanners(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "AddFeatureBanners")
	defer span.End()

	var req models.AddFeatureBannersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No banner images provided"})
		return
	}
	span.SetAttributes(attribute.Int("banners.count", len(req.Images)))

	banners := make([]models.FeatureBanner, 0, len(req.Images))
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		for _, img := range req.Images {
			b := models.FeatureBanner{ID: uuid.NewString(), ImageURL: img}
			if err := tx.QueryRowContext(ctx,
				"INSERT INTO feature_banners (id, image_url) VALUES ($1, $2) RETURNING created_at",
				b.ID, b.ImageURL,
			).Scan(&b.CreatedAt); err != nil {
				return err
			}
			banners = append(banners, b)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add feature banners", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to add feature banners"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Feature banners added successfully", "banners": banners})
}

// GetFeatureBanners lists banners newest first.
func (h *SettingsHandler) GetFeatureBanners(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "GetFeatureBanners")
	defer span.End()

	rows, err := h.db.QueryContext(ctx, "SELECT id, image_url, created_at FROM feature_banners ORDER BY created_at DESC")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch feature banners", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get featured banner"})
		return
	}
	defer rows.Close()

	banners, err := scanBanners(rows)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to read feature banners", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get featured banner"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "banners": banners})
}

func scanBanners(rows *sql.Rows) ([]models.FeatureBanner, error) {
	banners := []models.FeatureBanner{}
	for rows.Next() {
		var b models.FeatureBanner
		if err := rows.Scan(&b.ID, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		banners = append(banners, b)
	}
	return banners, rows.Err()
}
