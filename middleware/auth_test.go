package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", AuthMiddleware(testSecret), func(c *gin.Context) {
		claims, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID})
	})
	router.GET("/admin", AuthMiddleware(testSecret), RequireRole(models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func tokenFor(t *testing.T, role models.Role, issued time.Time) string {
	t.Helper()
	token, err := IssueToken(testSecret, models.Claims{UserID: "u-1", Email: "u1@example.com", Role: role}, issued)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

func TestAuthMiddleware_MissingCookie(t *testing.T) {
	router := setupAuthRouter()

	req := httptest.NewRequest("GET", "/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddleware_ValidCookie(t *testing.T) {
	router := setupAuthRouter()

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tokenFor(t, models.RoleUser, time.Now())})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	router := setupAuthRouter()

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, models.RoleUser, time.Now()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	router := setupAuthRouter()

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tokenFor(t, models.RoleUser, time.Now().Add(-48*time.Hour))})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	router := setupAuthRouter()

	token, err := IssueToken([]byte("other"), models.Claims{UserID: "u-1", Role: models.RoleUser}, time.Now())
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "u-1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ParseToken(testSecret, raw); err == nil {
		t.Error("Expected unsigned token to be rejected")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		expected int
	}{
		{"super admin", models.RoleSuperAdmin, http.StatusOK},
		{"regular user", models.RoleUser, http.StatusForbidden},
	}

	router := setupAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tokenFor(t, tt.role, time.Now())})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}
