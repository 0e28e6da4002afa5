package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"prefest/internal/drafts"
	"prefest/internal/pricing"
	"prefest/models"
)

func (c *Client) GetEvent(ctx context.Context, eventID string) (*models.EventDetails, error) {
	var out models.EventDetails
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/events/%s", eventID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateCoupon returns nil without error when the code cannot be applied.
func (c *Client) ValidateCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var out struct {
		Coupon *models.Coupon `json:"coupon"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/coupons/validate", map[string]string{"code": code}, &out); err != nil {
		return nil, err
	}
	if out.Coupon == nil {
		return nil, nil
	}
	switch out.Coupon.DiscountType {
	case models.DiscountPercentage, models.DiscountFixed:
	default:
		return nil, fmt.Errorf("api: coupon %s has unknown discount type %q", out.Coupon.Code, out.Coupon.DiscountType)
	}
	if out.Coupon.DiscountValue.IsNegative() {
		return nil, fmt.Errorf("api: coupon %s has a negative discount", out.Coupon.Code)
	}
	return out.Coupon, nil
}

func (c *Client) Quote(ctx context.Context, req models.CheckoutRequest) (*pricing.Breakdown, error) {
	var out pricing.Breakdown
	if err := c.do(ctx, http.MethodPost, pathf("/api/v1/events/%s/quote", req.EventID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) JoinEvent(ctx context.Context, req models.CheckoutRequest) (*models.Participant, error) {
	var out models.Participant
	if err := c.do(ctx, http.MethodPost, pathf("/api/v1/events/%s/join", req.EventID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req models.CheckoutRequest) (*models.PaymentIntent, error) {
	var out models.PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/intent", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var out models.Payment
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/payments/%s", paymentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Participation re-fetches the caller's ticket, e.g. after a payment redirect.
func (c *Client) Participation(ctx context.Context, eventID string) (*models.Participant, error) {
	var out models.Participant
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/events/%s/participation", eventID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MatchCandidates(ctx context.Context, eventID string) ([]models.Candidate, error) {
	var out []models.Candidate
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/events/%s/match-candidates", eventID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EventAttendees(ctx context.Context, eventID string) ([]models.Candidate, error) {
	var out []models.Candidate
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/events/%s/attendees", eventID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Like(ctx context.Context, req models.LikeRequest) (*models.LikeResponse, error) {
	var out models.LikeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/likes", req, &out); err != nil {
		return nil, err
	}
	switch out.Status {
	case models.LikeStatusLiked, models.LikeStatusMatch, models.LikeStatusAlreadyLiked:
	default:
		if !out.IsMatch {
			return nil, fmt.Errorf("api: unknown like status %q", out.Status)
		}
	}
	return &out, nil
}

func (c *Client) PublicProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var out models.Profile
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/profiles/%s/public", userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Messages(ctx context.Context, matchID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/matches/%s/messages", matchID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, matchID, body string) (*models.ChatMessage, error) {
	var out models.ChatMessage
	in := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, pathf("/api/v1/matches/%s/messages", matchID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkResult(res *models.ValidationResult) (*models.ValidationResult, error) {
	if !res.Code.Known() {
		return nil, fmt.Errorf("api: unknown validation code %q", res.Code)
	}
	return res, nil
}

func (c *Client) ValidateLegacy(ctx context.Context, req models.ValidateLegacyRequest) (*models.ValidationResult, error) {
	var out models.ValidationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/tickets/validate", req, &out); err != nil {
		return nil, err
	}
	return checkResult(&out)
}

func (c *Client) ValidateShortCode(ctx context.Context, req models.ValidateCodeRequest) (*models.ValidationResult, error) {
	var out models.ValidationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/tickets/validate-code", req, &out); err != nil {
		return nil, err
	}
	return checkResult(&out)
}

func (c *Client) LoadDraft(ctx context.Context, kind string) (*drafts.Draft, error) {
	var out drafts.Draft
	if err := c.do(ctx, http.MethodGet, pathf("/api/v1/drafts/%s", kind), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveDraft and ClearDraft make the client a drafts.Saver.
func (c *Client) SaveDraft(ctx context.Context, kind string, data json.RawMessage) error {
	return c.do(ctx, http.MethodPut, pathf("/api/v1/drafts/%s", kind), data, nil)
}

func (c *Client) ClearDraft(ctx context.Context, kind string) error {
	return c.do(ctx, http.MethodDelete, pathf("/api/v1/drafts/%s", kind), nil, nil)
}
