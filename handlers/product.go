package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-svc/cache"
	"storefront-svc/circuitbreaker"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const productColumns = "id, name, brand, category, description, gender, sizes, colors, price, stock, sold_count, rating, images, is_featured, created_at, updated_at"

// sortColumns whitelists the client-facing sort keys.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"price":     "price",
	"name":      "name",
	"rating":    "rating",
	"soldCount": "sold_count",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *models.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.Gender,
		&p.Sizes, &p.Colors, &p.Price, &p.Stock, &p.SoldCount, &p.Rating, &p.Images,
		&p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
}

// scanProducts drains rows; a scan or iteration error fails the whole listing.
func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type ProductHandler struct {
	db             *sql.DB
	cache          *cache.ProductCache
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewProductHandler(db *sql.DB, productCache *cache.ProductCache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:             db,
		cache:          productCache,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
	}
}

// ParseProductFilter reads the catalog query string. Unparseable numbers fall
// back to their defaults.
func ParseProductFilter(c *gin.Context) models.ProductFilter {
	f := models.ProductFilter{
		Page:       1,
		Limit:      10,
		Categories: splitList(c.Query("categories")),
		Brands:     splitList(c.Query("brands")),
		Sizes:      splitList(c.Query("sizes")),
		Colors:     splitList(c.Query("colors")),
		SortBy:     "createdAt",
		SortOrder:  "desc",
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		f.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := decimal.NewFromString(c.Query("minPrice")); err == nil {
		f.MinPrice = v
	}
	if v, err := decimal.NewFromString(c.Query("maxPrice")); err == nil {
		f.MaxPrice = &v
	}
	if _, ok := sortColumns[c.Query("sortBy")]; ok {
		f.SortBy = c.Query("sortBy")
	}
	if strings.EqualFold(c.Query("sortOrder"), "asc") {
		f.SortOrder = "asc"
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// buildProductWhere returns the WHERE clause and its arguments. Categories and
// brands are OR-ed together; every other condition is AND-ed.
func buildProductWhere(f models.ProductFilter) (string, []any) {
	args := []any{f.MinPrice}
	conds := []string{"price >= $1"}

	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conds = append(conds, fmt.Sprintf("price <= $%d", len(args)))
	}

	var or []string
	if len(f.Categories) > 0 {
		args = append(args, pq.Array(lowerAll(f.Categories)))
		or = append(or, fmt.Sprintf("LOWER(category) = ANY($%d)", len(args)))
	}
	if len(f.Brands) > 0 {
		args = append(args, pq.Array(lowerAll(f.Brands)))
		or = append(or, fmt.Sprintf("LOWER(brand) = ANY($%d)", len(args)))
	}
	if len(or) > 0 {
		conds = append(conds, "("+strings.Join(or, " OR ")+")")
	}

	if len(f.Colors) > 0 {
		args = append(args, pq.Array(f.Colors))
		conds = append(conds, fmt.Sprintf("colors && $%d", len(args)))
	}
	if len(f.Sizes) > 0 {
		args = append(args, pq.Array(f.Sizes))
		conds = append(conds, fmt.Sprintf("sizes && $%d", len(args)))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func (h *ProductHandler) FetchClientProducts(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "FetchClientProducts")
	defer span.End()

	f := ParseProductFilter(c)
	where, args := buildProductWhere(f)

	var total int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to count products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	order := strings.ToUpper(f.SortOrder)
	pageArgs := append(args, f.Limit, (f.Page-1)*f.Limit)
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		productColumns, where, sortColumns[f.SortBy], order, len(args)+1, len(args)+2)

	rows, err := h.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to read products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)), attribute.Int("products.total", total))
	c.JSON(http.StatusOK, models.ProductPage{
		Success:       true,
		Products:      products,
		TotalProducts: total,
		CurrentPage:   f.Page,
		TotalPages:    int(math.Ceil(float64(total) / float64(f.Limit))),
	})
}

func (h *ProductHandler) FetchAdminProducts(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "FetchAdminProducts")
	defer span.End()

	rows, err := h.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at DESC")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to read products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	if cached, ok, err := h.cache.GetProduct(ctx, id); err != nil {
		h.logger.Warn("Cache read failed", zap.String("product_id", id), zap.Error(err))
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		c.JSON(http.StatusOK, gin.H{"success": true, "product": cached})
		return
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var (
		product  models.Product
		found    bool
		queryErr error
	)
	dbErr := h.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		err := scanProduct(h.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id), &product)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		queryErr = err
		// an abandoned request is not a database failure
		if callerGaveUp(ctx, err) {
			return nil
		}
		return err
	})
	if dbErr == nil {
		dbErr = queryErr
	}

	if dbErr != nil {
		if errors.Is(dbErr, circuitbreaker.ErrCircuitOpen) {
			span.SetAttributes(attribute.String("circuit.state", "open"))
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Service temporarily unavailable"})
			return
		}
		span.RecordError(dbErr)
		h.logger.Error("Failed to fetch product", zap.Error(dbErr))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Product not found"})
		return
	}

	if err := h.cache.SetProduct(ctx, &product); err != nil {
		h.logger.Warn("Cache write failed", zap.String("product_id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

func callerGaveUp(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Price must be positive"})
		return
	}

	var product models.Product
	err := scanProduct(h.db.QueryRowContext(ctx,
		"INSERT INTO products (id, name, brand, category, description, gender, sizes, colors, price, stock, sold_count, rating, images) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, $11) RETURNING "+productColumns,
		uuid.NewString(), req.Name, req.Brand, req.Category, req.Description, req.Gender,
		pq.Array(nonNil(req.Sizes)), pq.Array(nonNil(req.Colors)), req.Price, req.Stock, pq.Array(req.Images),
	), &product)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("product.id", product.ID))
	h.logger.Info("Product created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("product_id", product.ID),
	)
	c.JSON(http.StatusCreated, gin.H{"success": true, "product": product})
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Price != nil && !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Price must be positive"})
		return
	}

	var product models.Product
	err := scanProduct(h.db.QueryRowContext(ctx,
		`UPDATE products SET
			name = COALESCE($2, name),
			brand = COALESCE($3, brand),
			category = COALESCE($4, category),
			description = COALESCE($5, description),
			gender = COALESCE($6, gender),
			sizes = COALESCE($7, sizes),
			colors = COALESCE($8, colors),
			price = COALESCE($9, price),
			stock = COALESCE($10, stock),
			images = COALESCE($11, images),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 RETURNING `+productColumns,
		id, req.Name, req.Brand, req.Category, req.Description, req.Gender,
		optionalArray(req.Sizes), optionalArray(req.Colors), optionalDecimal(req.Price), req.Stock, optionalArray(req.Images),
	), &product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	if err := h.cache.DeleteProduct(ctx, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}

	h.logger.Info("Product updated", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.String("product_id", id))
	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	result, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Product not found"})
		return
	}

	if err := h.cache.DeleteProduct(ctx, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}

	h.logger.Info("Product deleted", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.String("product_id", id))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted successfully"})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// optionalArray keeps a nil slice as SQL NULL so COALESCE leaves the column alone.
func optionalArray(s []string) any {
	if s == nil {
		return nil
	}
	return pq.Array(s)
}

func optionalDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
