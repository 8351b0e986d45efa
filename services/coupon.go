package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const couponColumns = "id, code, discount_percentage, start_date, end_date, usage_limit, usage_count, created_at"

type CouponService struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewCouponService(db *sql.DB, logger *zap.Logger) *CouponService {
	return &CouponService{db: db, logger: logger, now: time.Now}
}

// EvaluateCoupon decides applicability of a loaded coupon at the given instant.
// The window is half-open: [StartDate, EndDate).
func EvaluateCoupon(c *models.Coupon, now time.Time) error {
	if now.Before(c.StartDate) || !now.Before(c.EndDate) {
		return ErrCouponOutOfWindow
	}
	if c.UsageCount >= c.UsageLimit {
		return ErrCouponLimitReached
	}
	return nil
}

// ApplyDiscount returns the discount and discounted total, both rounded to cents.
func ApplyDiscount(subtotal decimal.Decimal, percentage int) (discount, total decimal.Decimal) {
	discount = subtotal.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100)).Round(2)
	total = subtotal.Sub(discount).Round(2)
	return discount, total
}

// Validate reports whether code can be applied now. Rejections are part of the
// result; the error is only set when the lookup itself fails.
func (s *CouponService) Validate(ctx context.Context, code string) (*models.CouponValidation, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ValidateCoupon")
	defer span.End()
	span.SetAttributes(attribute.String("coupon.code", code))

	coupon, err := s.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			middleware.RecordCouponValidation(string(models.CouponNotFound))
			return &models.CouponValidation{Reason: models.CouponNotFound}, nil
		}
		span.RecordError(err)
		return nil, err
	}

	result := &models.CouponValidation{CouponID: coupon.ID, DiscountPercentage: coupon.DiscountPercentage}
	switch err := EvaluateCoupon(coupon, s.now()); {
	case errors.Is(err, ErrCouponOutOfWindow):
		result.Reason = models.CouponOutOfWindow
	case errors.Is(err, ErrCouponLimitReached):
		result.Reason = models.CouponLimitReached
	default:
		result.Applicable = true
	}

	outcome := "applicable"
	if !result.Applicable {
		outcome = string(result.Reason)
	}
	middleware.RecordCouponValidation(outcome)
	span.SetAttributes(attribute.Bool("coupon.applicable", result.Applicable))
	return result, nil
}

func (s *CouponService) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := s.db.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1",
		strings.TrimSpace(code),
	).Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsageCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, persistErr("get coupon", err)
	}
	return &c, nil
}

func (s *CouponService) Create(ctx context.Context, req models.CreateCouponRequest) (*models.Coupon, error) {
	var c models.Coupon
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO coupons (id, code, discount_percentage, start_date, end_date, usage_limit, usage_count) VALUES ($1, $2, $3, $4, $5, $6, 0) RETURNING "+couponColumns,
		uuid.NewString(), strings.TrimSpace(req.Code), req.DiscountPercentage, req.StartDate.UTC(), req.EndDate.UTC(), req.UsageLimit,
	).Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsageCount, &c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrCouponCodeTaken
		}
		return nil, persistErr("create coupon", err)
	}

	s.logger.Info("Coupon created", zap.String("coupon_id", c.ID), zap.String("code", c.Code))
	return &c, nil
}

func (s *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+couponColumns+" FROM coupons ORDER BY created_at ASC")
	if err != nil {
		return nil, persistErr("list coupons", err)
	}
	defer rows.Close()

	coupons := []models.Coupon{}
	for rows.Next() {
		var c models.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsageCount, &c.CreatedAt); err != nil {
			return nil, persistErr("scan coupon", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list coupons", err)
	}
	return coupons, nil
}

func (s *CouponService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		return persistErr("delete coupon", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCouponNotFound
	}
	s.logger.Info("Coupon deleted", zap.String("coupon_id", id))
	return nil
}
