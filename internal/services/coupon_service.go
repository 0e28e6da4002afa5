package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prefest/internal/status"
	"prefest/models"
	"prefest/monitoring"
)

type CouponService struct {
	store   CouponStore
	monitor *monitoring.Monitor
	now     func() time.Time
}

func NewCouponService(store CouponStore, monitor *monitoring.Monitor) *CouponService {
	return &CouponService{store: store, monitor: monitor, now: time.Now}
}

// Validate looks a code up case-insensitively. Unknown, inactive, expired and
// exhausted coupons all resolve to nil without an error.
func (s *CouponService) Validate(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		s.monitor.TrackCouponLookup("invalid")
		return nil, nil
	}

	coupon, err := s.store.FindCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, status.ErrCouponNotFound) {
			s.monitor.TrackCouponLookup("invalid")
			return nil, nil
		}
		s.monitor.TrackCouponLookup("error")
		return nil, fmt.Errorf("validate coupon: %w", err)
	}

	if !coupon.Redeemable(s.now()) {
		s.monitor.TrackCouponLookup("invalid")
		return nil, nil
	}

	s.monitor.TrackCouponLookup("valid")
	return coupon, nil
}

// Redeem counts one use of the coupon. A coupon that ran out between quote and
// redemption is logged by the caller, the purchase stands.
func (s *CouponService) Redeem(ctx context.Context, couponID string) error {
	if couponID == "" {
		return nil
	}
	return s.store.IncrementCouponUsage(ctx, couponID)
}
