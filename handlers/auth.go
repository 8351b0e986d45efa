package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	db     *sql.DB
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthHandler(db *sql.DB, secret []byte, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		secret: secret,
		logger: logger,
		now:    time.Now,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existingID string
	err := h.db.QueryRowContext(c.Request.Context(), "SELECT id FROM users WHERE email = $1", email).Scan(&existingID)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "User already exists"})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Database error", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to hash password", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	var user models.User
	err = h.db.QueryRowContext(c.Request.Context(),
		"INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, $2, $3, $4, $5) RETURNING id, name, email, role, created_at",
		uuid.NewString(), req.Name, email, string(hashedPassword), models.RoleUser,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "User already exists"})
			return
		}
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to create user", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	traceID := middleware.GetTraceID(c.Request.Context())
	h.logger.Info("User registered", zap.String("trace_id", traceID), zap.String("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User registered successfully", "userId": user.ID})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var user models.User
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = $1",
		strings.ToLower(strings.TrimSpace(req.Email)),
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
			return
		}
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Database error", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return
	}

	token, err := middleware.IssueToken(h.secret, models.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}, h.now())
	if err != nil {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to generate token", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	h.setTokenCookie(c, token, int(middleware.TokenTTL.Seconds()))

	traceID := middleware.GetTraceID(c.Request.Context())
	h.logger.Info("User logged in", zap.String("trace_id", traceID), zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User logged out successfully"})
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, value, maxAge, "/", "", c.Request.TLS != nil, true)
}
