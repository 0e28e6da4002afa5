package store

import (
	"context"
	"fmt"
	"strings"

	"prefest/internal/status"
	"prefest/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

func couponFromRecord(r *core.Record) models.Coupon {
	return models.Coupon{
		ID:            r.Id,
		Code:          r.GetString("code"),
		DiscountType:  models.DiscountType(r.GetString("discount_type")),
		DiscountValue: money(r, "discount_value"),
		MaxUses:       r.GetInt("max_uses"),
		UsedCount:     r.GetInt("used_count"),
		Active:        r.GetBool("active"),
		ExpiresAt:     optionalTime(r, "expires_at"),
	}
}

// FindCouponByCode matches code case-insensitively.
func (s *Store) FindCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	r, err := s.app.FindFirstRecordByFilter(
		CollectionCoupons,
		"code = {:code}",
		dbx.Params{"code": strings.ToUpper(strings.TrimSpace(code))},
	)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrCouponNotFound
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	c := couponFromRecord(r)
	return &c, nil
}

// IncrementCouponUsage bumps used_count unless max_uses is already reached.
func (s *Store) IncrementCouponUsage(_ context.Context, id string) error {
	res, err := s.app.DB().NewQuery(`
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = {:id} AND (max_uses = 0 OR used_count < max_uses)
	`).Bind(dbx.Params{"id": id}).Execute()
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrCouponNotFound
	}
	return nil
}
