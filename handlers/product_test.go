package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

var productFields = []string{"id", "name", "brand", "category", "description", "gender", "sizes", "colors", "price", "stock", "sold_count", "rating", "images", "is_featured", "created_at", "updated_at"}

func setupProductTest(t *testing.T) (*ProductHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	handler := NewProductHandler(db, nil, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/products/:id", handler.GetProduct)
	router.POST("/products", handler.CreateProduct)
	router.GET("/products", handler.FetchClientProducts)
	router.GET("/admin/products", handler.FetchAdminProducts)

	return handler, mock, router
}

func TestParseProductFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?page=2&limit=5&categories=Shirts,%20Shoes&brands=&minPrice=10&maxPrice=abc&sortBy=price&sortOrder=ASC", nil)

	f := ParseProductFilter(c)

	if f.Page != 2 || f.Limit != 5 {
		t.Errorf("Expected page 2 limit 5, got page %d limit %d", f.Page, f.Limit)
	}
	if len(f.Categories) != 2 || f.Categories[1] != "Shoes" {
		t.Errorf("Unexpected categories: %v", f.Categories)
	}
	if len(f.Brands) != 0 {
		t.Errorf("Expected no brands, got %v", f.Brands)
	}
	if !f.MinPrice.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected min price 10, got %s", f.MinPrice)
	}
	if f.MaxPrice != nil {
		t.Errorf("Expected unparseable max price to be ignored, got %s", f.MaxPrice)
	}
	if f.SortBy != "price" || f.SortOrder != "asc" {
		t.Errorf("Unexpected sort: %s %s", f.SortBy, f.SortOrder)
	}
}

func TestParseProductFilter_IgnoresUnknownSort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?sortBy=password_hash&page=-1", nil)

	f := ParseProductFilter(c)

	if f.SortBy != "createdAt" || f.SortOrder != "desc" || f.Page != 1 {
		t.Errorf("Expected defaults, got %+v", f)
	}
}

func TestBuildProductWhere(t *testing.T) {
	maxPrice := decimal.NewFromInt(50)
	tests := []struct {
		name     string
		filter   models.ProductFilter
		want     string
		wantArgs int
	}{
		{
			name:     "no filters",
			filter:   models.ProductFilter{},
			want:     " WHERE price >= $1",
			wantArgs: 1,
		},
		{
			name:     "price range",
			filter:   models.ProductFilter{MaxPrice: &maxPrice},
			want:     " WHERE price >= $1 AND price <= $2",
			wantArgs: 2,
		},
		{
			name:     "categories and brands are alternatives",
			filter:   models.ProductFilter{Categories: []string{"Shirts"}, Brands: []string{"Acme"}},
			want:     " WHERE price >= $1 AND (LOWER(category) = ANY($2) OR LOWER(brand) = ANY($3))",
			wantArgs: 3,
		},
		{
			name:     "variants narrow the result",
			filter:   models.ProductFilter{MaxPrice: &maxPrice, Colors: []string{"Red"}, Sizes: []string{"M"}},
			want:     " WHERE price >= $1 AND price <= $2 AND colors && $3 AND sizes && $4",
			wantArgs: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := buildProductWhere(tt.filter)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("Expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestProductHandler_GetProduct_NotFound(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/products/missing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestProductHandler_GetProduct_Success(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(productFields).
			AddRow("P1", "Shirt", "Acme", "Shirts", "Cotton", "men", "{M,L}", "{Red}", "20.00", 10, 3, 4.5, "{shirt.png}", false, now, now))

	req := httptest.NewRequest("GET", "/products/P1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_CreateProduct_RejectsNonPositivePrice(t *testing.T) {
	handler, _, router := setupProductTest(t)
	defer handler.db.Close()

	req := jsonRequest(t, "POST", "/products", map[string]any{
		"name":     "Shirt",
		"brand":    "Acme",
		"category": "Shirts",
		"price":    0,
		"stock":    5,
		"images":   []string{"shirt.png"},
	})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestProductHandler_GetProduct_AbandonedRequestsKeepBreakerClosed(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest("GET", "/products/P1", nil).WithContext(cancelled)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(productFields).
			AddRow("P1", "Shirt", "Acme", "Shirts", "Cotton", "men", "{M,L}", "{Red}", "20.00", 10, 3, 4.5, "{shirt.png}", false, now, now))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/products/P1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_FetchAdminProducts_RowErrorFailsListing(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(productFields).
			AddRow("P1", "Shirt", "Acme", "Shirts", "Cotton", "men", "{M}", "{Red}", "20.00", 10, 3, 4.5, "{a.png}", false, now, now).
			AddRow("P2", "Cap", "Acme", "Hats", "Wool", "men", "{M}", "{Red}", "9.00", 4, 0, 0, "{b.png}", false, now, now).
			RowError(1, errors.New("connection reset")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/products", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d: %s", http.StatusInternalServerError, w.Code, w.Body.String())
	}
}

func TestProductHandler_FetchClientProducts_ScanErrorFailsListing(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM products ORDER BY")).
		WillReturnRows(sqlmock.NewRows(productFields).
			AddRow("P1", "Shirt", "Acme", "Shirts", "Cotton", "men", "{M}", "{Red}", "not-a-price", 10, 3, 4.5, "{a.png}", false, now, now))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/products", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d: %s", http.StatusInternalServerError, w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
