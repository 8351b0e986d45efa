package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/paypal"
	"storefront-svc/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

type mockSettler struct {
	got services.SettleInput
	err error
}

func (m *mockSettler) Settle(ctx context.Context, in services.SettleInput) (*models.Order, error) {
	m.got = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Order{ID: "order-1", UserID: in.UserID, Total: in.Total, Status: models.OrderStatusPending, CreatedAt: time.Now()}, nil
}

type mockCheckout struct {
	captureErr error
}

func (m *mockCheckout) CreateCheckout(ctx context.Context, items []models.CheckoutItem, total decimal.Decimal) (*paypal.Order, error) {
	return &paypal.Order{ID: "PP-1", Status: "CREATED", Raw: json.RawMessage(`{"id":"PP-1","status":"CREATED"}`)}, nil
}

func (m *mockCheckout) Capture(ctx context.Context, orderID string) (*paypal.Capture, error) {
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return &paypal.Capture{ID: orderID, Status: "COMPLETED", Raw: json.RawMessage(`{"id":"PP-1","status":"COMPLETED"}`)}, nil
}

type mockOrderStore struct {
	updateErr error
}

func (m *mockOrderStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return []models.Order{{ID: "order-1", UserID: userID}}, nil
}

func (m *mockOrderStore) GetByID(ctx context.Context, orderID, userID string) (*models.Order, error) {
	if userID != "user-1" {
		return nil, services.ErrOrderNotFound
	}
	return &models.Order{ID: orderID, UserID: userID}, nil
}

func (m *mockOrderStore) ListAll(ctx context.Context) ([]models.Order, error) {
	return []models.Order{{ID: "order-1"}, {ID: "order-2"}}, nil
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if !status.Valid() {
		return nil, services.ErrInvalidStatus
	}
	return &models.Order{ID: orderID, Status: status}, nil
}

func setupOrderTest(t *testing.T, settler *mockSettler, checkout *mockCheckout, store *mockOrderStore) *gin.Engine {
	handler := NewOrderHandler(checkout, settler, store, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	order := router.Group("/api/order", middleware.AuthMiddleware(testSecret))
	order.POST("/create-paypal-order", handler.CreatePayPalOrder)
	order.POST("/capture-paypal-order", handler.CapturePayPalOrder)
	order.POST("/create-final-order", handler.CreateFinalOrder)
	order.GET("/get-single-order/:orderId", handler.GetSingleOrder)
	order.GET("/get-order-by-user-id", handler.GetOrdersByUser)
	admin := order.Group("", middleware.RequireRole(models.RoleSuperAdmin))
	admin.GET("/get-all-orders-for-admin", handler.GetAllOrdersForAdmin)
	admin.PUT("/:orderId/status", handler.UpdateOrderStatus)
	return router
}

func finalOrderBody() map[string]any {
	return map[string]any{
		"userId":    "someone-else",
		"addressId": "addr-1",
		"items": []map[string]any{
			{"productId": "P1", "productName": "Shirt", "quantity": 2, "size": "M", "color": "Red", "price": 20},
		},
		"total":     40,
		"paymentId": "PAY-1",
	}
}

func TestOrderHandler_CreateFinalOrder_Unauthenticated(t *testing.T) {
	settler := &mockSettler{}
	router := setupOrderTest(t, settler, &mockCheckout{}, &mockOrderStore{})

	req := jsonRequest(t, "POST", "/api/order/create-final-order", finalOrderBody())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if settler.got.UserID != "" {
		t.Error("Expected settlement not to run")
	}
}

func TestOrderHandler_CreateFinalOrder_UsesAuthenticatedCaller(t *testing.T) {
	settler := &mockSettler{}
	router := setupOrderTest(t, settler, &mockCheckout{}, &mockOrderStore{})

	req := jsonRequest(t, "POST", "/api/order/create-final-order", finalOrderBody())
	req.AddCookie(authCookie(t, "user-1", models.RoleUser))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	if settler.got.UserID != "user-1" {
		t.Errorf("Expected settlement for user-1, got %s", settler.got.UserID)
	}
	if len(settler.got.Items) != 1 || settler.got.Items[0].Quantity != 2 {
		t.Errorf("Unexpected items: %+v", settler.got.Items)
	}
	if !settler.got.Total.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected total 40, got %s", settler.got.Total)
	}
}

func TestOrderHandler_CreateFinalOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"cart missing", services.ErrCartNotFound, http.StatusNotFound, "cart not found"},
		{"address missing", services.ErrAddressNotFound, http.StatusNotFound, "address not found"},
		{"database failure", errors.New("insert order: connection reset"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupOrderTest(t, &mockSettler{err: tt.err}, &mockCheckout{}, &mockOrderStore{})

			req := jsonRequest(t, "POST", "/api/order/create-final-order", finalOrderBody())
			req.AddCookie(authCookie(t, "user-1", models.RoleUser))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp["error"] != tt.wantError {
				t.Errorf("Expected error %q, got %v", tt.wantError, resp["error"])
			}
		})
	}
}

func TestOrderHandler_CreateFinalOrder_RejectsEmptyItems(t *testing.T) {
	settler := &mockSettler{}
	router := setupOrderTest(t, settler, &mockCheckout{}, &mockOrderStore{})

	body := finalOrderBody()
	body["items"] = []map[string]any{}
	req := jsonRequest(t, "POST", "/api/order/create-final-order", body)
	req.AddCookie(authCookie(t, "user-1", models.RoleUser))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestOrderHandler_CreatePayPalOrder_PassesThroughProviderBody(t *testing.T) {
	router := setupOrderTest(t, &mockSettler{}, &mockCheckout{}, &mockOrderStore{})

	req := jsonRequest(t, "POST", "/api/order/create-paypal-order", map[string]any{
		"items": []map[string]any{{"name": "Shirt", "quantity": 2, "price": 20}},
		"total": 40,
	})
	req.AddCookie(authCookie(t, "user-1", models.RoleUser))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	expectedBody := `{"id":"PP-1","status":"CREATED"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}

func TestOrderHandler_CapturePayPalOrder_ReturnsProviderError(t *testing.T) {
	checkout := &mockCheckout{captureErr: &paypal.Error{
		Kind:       paypal.ErrCaptureFailure,
		StatusCode: http.StatusUnprocessableEntity,
		Payload:    json.RawMessage(`{"name":"UNPROCESSABLE_ENTITY"}`),
	}}
	router := setupOrderTest(t, &mockSettler{}, checkout, &mockOrderStore{})

	req := jsonRequest(t, "POST", "/api/order/capture-paypal-order", map[string]string{"orderId": "PP-1"})
	req.AddCookie(authCookie(t, "user-1", models.RoleUser))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	var resp struct {
		Success     bool              `json:"success"`
		Message     string            `json:"message"`
		PayPalError map[string]string `json:"paypalError"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Success || resp.PayPalError["name"] != "UNPROCESSABLE_ENTITY" {
		t.Errorf("Unexpected response: %s", w.Body.String())
	}
}

func TestOrderHandler_GetSingleOrder_OtherUser(t *testing.T) {
	router := setupOrderTest(t, &mockSettler{}, &mockCheckout{}, &mockOrderStore{})

	req := httptest.NewRequest("GET", "/api/order/get-single-order/order-1", nil)
	req.AddCookie(authCookie(t, "user-2", models.RoleUser))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestOrderHandler_AdminRoutes(t *testing.T) {
	tests := []struct {
		name       string
		role       models.Role
		wantStatus int
	}{
		{"super admin", models.RoleSuperAdmin, http.StatusOK},
		{"regular user", models.RoleUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupOrderTest(t, &mockSettler{}, &mockCheckout{}, &mockOrderStore{})

			req := httptest.NewRequest("GET", "/api/order/get-all-orders-for-admin", nil)
			req.AddCookie(authCookie(t, "admin-1", tt.role))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{"known status", "SHIPPED", http.StatusOK},
		{"unknown status", "LOST", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupOrderTest(t, &mockSettler{}, &mockCheckout{}, &mockOrderStore{})

			req := jsonRequest(t, "PUT", "/api/order/order-1/status", map[string]string{"status": tt.status})
			req.AddCookie(authCookie(t, "admin-1", models.RoleSuperAdmin))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestOrderHandler_UpdateOrderStatus_UnknownOrder(t *testing.T) {
	router := setupOrderTest(t, &mockSettler{}, &mockCheckout{}, &mockOrderStore{updateErr: services.ErrOrderNotFound})

	req := jsonRequest(t, "PUT", "/api/order/missing/status", map[string]string{"status": "SHIPPED"})
	req.AddCookie(authCookie(t, "admin-1", models.RoleSuperAdmin))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
