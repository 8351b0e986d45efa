package models

import "time"

type Coupon struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discountPercentage"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	UsageLimit         int       `json:"usageLimit"`
	UsageCount         int       `json:"usageCount"`
	CreatedAt          time.Time `json:"createdAt"`
}

type CreateCouponRequest struct {
	Code               string    `json:"code" binding:"required"`
	DiscountPercentage int       `json:"discountPercentage" binding:"gte=0,lte=100"`
	StartDate          time.Time `json:"startDate" binding:"required"`
	EndDate            time.Time `json:"endDate" binding:"required,gtfield=StartDate"`
	UsageLimit         int       `json:"usageLimit" binding:"gte=1"`
}

type ValidateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CouponRejection names why a coupon code cannot be applied.
type CouponRejection string

const (
	CouponNotFound     CouponRejection = "NOT_FOUND"
	CouponOutOfWindow  CouponRejection = "OUT_OF_WINDOW"
	CouponLimitReached CouponRejection = "LIMIT_REACHED"
)

type CouponValidation struct {
	Applicable         bool            `json:"applicable"`
	CouponID           string          `json:"couponId,omitempty"`
	DiscountPercentage int             `json:"discountPercentage"`
	Reason             CouponRejection `json:"reason,omitempty"`
}
