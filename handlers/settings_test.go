package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func setupSettingsTest(t *testing.T) (*SettingsHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	handler := NewSettingsHandler(db, nil, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/featured", handler.UpdateFeaturedProducts)
	router.GET("/featured", handler.FetchFeaturedProducts)
	router.POST("/banners", handler.AddFeatureBanners)
	router.GET("/get-banners", handler.GetFeatureBanners)

	return handler, mock, router
}

func TestSettingsHandler_UpdateFeaturedProducts(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_featured = FALSE WHERE is_featured")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_featured = TRUE WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	req := jsonRequest(t, "POST", "/featured", map[string]any{"productId": []string{"P1", "P2"}})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSettingsHandler_UpdateFeaturedProducts_TooMany(t *testing.T) {
	handler, _, router := setupSettingsTest(t)
	defer handler.db.Close()

	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
	req := jsonRequest(t, "POST", "/featured", map[string]any{"productId": ids})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestSettingsHandler_UpdateFeaturedProducts_RollsBack(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_featured = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_featured = TRUE")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	req := jsonRequest(t, "POST", "/featured", map[string]any{"productId": []string{"P1"}})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSettingsHandler_FetchFeaturedProducts(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE is_featured ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(productFields).
			AddRow("P1", "Shirt", "Acme", "Shirts", "", "men", "{M}", "{Red}", "20.00", 10, 0, 0.0, "{a.png}", true, now, now))

	req := httptest.NewRequest("GET", "/featured", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestSettingsHandler_FetchFeaturedProducts_RowError(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE is_featured")).
		WillReturnRows(sqlmock.NewRows(productFields).
			AddRow("P1", "Shirt", "Acme", "Shirts", "", "men", "{M}", "{Red}", "20.00", 10, 0, 0.0, "{a.png}", true, now, now).
			AddRow("P2", "Cap", "Acme", "Hats", "", "men", "{M}", "{Red}", "9.00", 4, 0, 0.0, "{b.png}", true, now, now).
			RowError(1, errors.New("connection reset")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/featured", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestSettingsHandler_AddFeatureBanners(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	for _, img := range []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"} {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feature_banners (id, image_url) VALUES ($1, $2) RETURNING created_at")).
			WithArgs(sqlmock.AnyArg(), img).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	}
	mock.ExpectCommit()

	req := jsonRequest(t, "POST", "/banners", map[string]any{
		"images": []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
	})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var body struct {
		Banners []models.FeatureBanner `json:"banners"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Banners) != 2 || body.Banners[1].ImageURL != "https://cdn.example.com/b.png" || body.Banners[0].ID == "" {
		t.Errorf("Unexpected banners: %+v", body.Banners)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSettingsHandler_AddFeatureBanners_Invalid(t *testing.T) {
	handler, _, router := setupSettingsTest(t)
	defer handler.db.Close()

	for name, body := range map[string]any{
		"no images":  map[string]any{"images": []string{}},
		"not a url":  map[string]any{"images": []string{"banner.png"}},
		"no payload": map[string]any{},
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, jsonRequest(t, "POST", "/banners", body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestSettingsHandler_AddFeatureBanners_RollsBack(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feature_banners")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, "POST", "/banners", map[string]any{"images": []string{"https://cdn.example.com/a.png"}}))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSettingsHandler_GetFeatureBanners_NewestFirst(t *testing.T) {
	handler, mock, router := setupSettingsTest(t)
	defer handler.db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, image_url, created_at FROM feature_banners ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url", "created_at"}).
			AddRow("b2", "https://cdn.example.com/b.png", now).
			AddRow("b1", "https://cdn.example.com/a.png", now.Add(-time.Hour)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/get-banners", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var body struct {
		Banners []models.FeatureBanner `json:"banners"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Banners) != 2 || body.Banners[0].ID != "b2" {
		t.Errorf("Expected newest banner first, got %+v", body.Banners)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
