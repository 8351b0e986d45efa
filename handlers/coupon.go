package handlers

import (
	"context"
	"net/http"

	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CouponStore interface {
	Create(ctx context.Context, req models.CreateCouponRequest) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Delete(ctx context.Context, id string) error
	Validate(ctx context.Context, code string) (*models.CouponValidation, error)
}

type CouponHandler struct {
	coupons CouponStore
	logger  *zap.Logger
}

func NewCouponHandler(coupons CouponStore, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{coupons: coupons, logger: logger}
}

func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req models.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	coupon, err := h.coupons.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create coupon")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Coupon created successfully", "coupon": coupon})
}

func (h *CouponHandler) FetchAllCoupons(c *gin.Context) {
	coupons, err := h.coupons.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch coupons")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "couponList": coupons})
}

func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	id := c.Param("id")
	if err := h.coupons.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to delete coupon")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Coupon deleted successfully", "id": id})
}

// ValidateCoupon reports applicability at checkout. A rejected code is still
// a 200 with applicable=false and a reason.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.coupons.Validate(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, h.logger, err, "Failed to validate coupon")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "coupon": result})
}
