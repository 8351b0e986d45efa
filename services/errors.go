package services

import (
	"fmt"

	"storefront-svc/apperr"
)

var (
	ErrCouponNotFound     = apperr.New(apperr.ErrNotFound, "coupon not found")
	ErrCouponOutOfWindow  = apperr.New(apperr.ErrValidation, "coupon is not within its validity window")
	ErrCouponLimitReached = apperr.New(apperr.ErrValidation, "coupon usage limit reached")
	ErrCouponCodeTaken    = apperr.New(apperr.ErrValidation, "coupon code already exists")

	ErrCartNotFound      = apperr.New(apperr.ErrNotFound, "cart not found")
	ErrAddressNotFound   = apperr.New(apperr.ErrNotFound, "address not found")
	ErrProductNotFound   = apperr.New(apperr.ErrNotFound, "product not found")
	ErrInsufficientStock = apperr.New(apperr.ErrValidation, "insufficient stock")
	ErrOrderNotFound     = apperr.New(apperr.ErrNotFound, "order not found")
	ErrInvalidStatus     = apperr.New(apperr.ErrValidation, "invalid order status")
	ErrEmptyOrder        = apperr.New(apperr.ErrValidation, "order has no items")
	ErrInvalidAmount     = apperr.New(apperr.ErrValidation, "invalid amount")
	ErrCartItemNotFound  = apperr.New(apperr.ErrNotFound, "cart item not found")
	ErrAddressInUse      = apperr.New(apperr.ErrValidation, "address is referenced by an order")
)

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrPersistence, err)
}
