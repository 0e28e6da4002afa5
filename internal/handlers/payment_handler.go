package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"prefest/internal/pricing"
	"prefest/internal/services/gateway"
	"prefest/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const maxWebhookBody = 1 << 20

type CheckoutService interface {
	Quote(ctx context.Context, userID string, req models.CheckoutRequest) (pricing.Breakdown, error)
	JoinEvent(ctx context.Context, userID string, req models.CheckoutRequest) (*models.Participant, error)
	CreatePaymentIntent(ctx context.Context, userID string, req models.CheckoutRequest) (*models.PaymentIntent, error)
	GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error)
	HandleWebhook(ctx context.Context, provider gateway.Provider, body []byte) error
	SimulatePayment(ctx context.Context, paymentID string, to gateway.ChargeStatus) error
	SettleSandboxCharge(ctx context.Context, chargeID string, to gateway.ChargeStatus) error
}

type CouponValidator interface {
	Validate(ctx context.Context, code string) (*models.Coupon, error)
}

type PaymentHandler struct {
	checkout   CheckoutService
	coupons    CouponValidator
	devMode    bool
	returnHost string
}

// NewPaymentHandler builds the checkout endpoints. The sandbox page only
// redirects back to URLs on the host of returnURL.
func NewPaymentHandler(checkout CheckoutService, coupons CouponValidator, devMode bool, returnURL string) *PaymentHandler {
	h := &PaymentHandler{checkout: checkout, coupons: coupons, devMode: devMode}
	if u, err := url.Parse(returnURL); err == nil {
		h.returnHost = u.Host
	}
	return h
}

// ValidateCoupon answers {"coupon": null} for codes that cannot be applied.
func (h *PaymentHandler) ValidateCoupon(e *core.RequestEvent) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	coupon, err := h.coupons.Validate(e.Request.Context(), req.Code)
	if err != nil {
		return toAPIError("coupons.Validate", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"coupon": coupon})
}

func (h *PaymentHandler) bindCheckout(e *core.RequestEvent) (string, models.CheckoutRequest, error) {
	var req models.CheckoutRequest
	userID, err := authUserID(e)
	if err != nil {
		return "", req, err
	}
	if err := e.BindBody(&req); err != nil {
		return "", req, apis.NewBadRequestError("Invalid request", err)
	}
	if id := e.Request.PathValue("eventId"); id != "" {
		req.EventID = id
	}
	if req.EventID == "" {
		return "", req, apis.NewBadRequestError("event_id is required", nil)
	}
	return userID, req, nil
}

func (h *PaymentHandler) Quote(e *core.RequestEvent) error {
	userID, req, err := h.bindCheckout(e)
	if err != nil {
		return err
	}
	q, err := h.checkout.Quote(e.Request.Context(), userID, req)
	if err != nil {
		return toAPIError("checkout.Quote", err)
	}
	return e.JSON(http.StatusOK, q)
}

// JoinEvent registers the caller for a free ticket.
func (h *PaymentHandler) JoinEvent(e *core.RequestEvent) error {
	userID, req, err := h.bindCheckout(e)
	if err != nil {
		return err
	}
	p, err := h.checkout.JoinEvent(e.Request.Context(), userID, req)
	if err != nil {
		return toAPIError("checkout.JoinEvent", err)
	}
	return e.JSON(http.StatusCreated, p)
}

func (h *PaymentHandler) CreatePaymentIntent(e *core.RequestEvent) error {
	userID, req, err := h.bindCheckout(e)
	if err != nil {
		return err
	}
	intent, err := h.checkout.CreatePaymentIntent(e.Request.Context(), userID, req)
	if err != nil {
		return toAPIError("checkout.CreatePaymentIntent", err)
	}
	return e.JSON(http.StatusCreated, intent)
}

// GetPaymentDetails returns a payment of the caller.
func (h *PaymentHandler) GetPaymentDetails(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}
	p, err := h.checkout.GetPayment(e.Request.Context(), userID, e.Request.PathValue("paymentId"))
	if err != nil {
		return toAPIError("checkout.GetPayment", err)
	}
	return e.JSON(http.StatusOK, p)
}

// Webhook receives charge notifications from a payment provider.
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	provider := gateway.Provider(e.Request.PathValue("provider"))
	if provider == gateway.ProviderSandbox && !h.devMode {
		return apis.NewNotFoundError("Unknown provider", nil)
	}

	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	slog.Info("payment webhook", "provider", provider, "bytes", len(body))

	if err := h.checkout.HandleWebhook(e.Request.Context(), provider, body); err != nil {
		return toAPIError("checkout.HandleWebhook", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "OK"})
}

// SimulatePayment settles a sandbox payment. Only routed in development.
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	var req struct {
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	to := gateway.ChargeSuccessful
	if req.Status == string(gateway.ChargeFailed) {
		to = gateway.ChargeFailed
	}
	if err := h.checkout.SimulatePayment(e.Request.Context(), req.PaymentID, to); err != nil {
		return toAPIError("checkout.SimulatePayment", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"message": "Payment simulation applied", "status": to})
}

// SandboxAuthorize stands in for the provider's hosted payment page: it
// settles the charge and sends the buyer back to the return URL.
func (h *PaymentHandler) SandboxAuthorize(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	chargeID := q.Get("charge")
	if chargeID == "" {
		return apis.NewBadRequestError("charge is required", nil)
	}

	to := gateway.ChargeSuccessful
	if q.Get("result") == string(gateway.ChargeFailed) {
		to = gateway.ChargeFailed
	}
	if err := h.checkout.SettleSandboxCharge(e.Request.Context(), chargeID, to); err != nil {
		return toAPIError("checkout.SettleSandboxCharge", err)
	}

	ret := q.Get("return")
	if !h.allowedReturn(ret) {
		return e.JSON(http.StatusOK, map[string]any{"charge": chargeID, "status": to})
	}
	return e.Redirect(http.StatusFound, ret)
}

func (h *PaymentHandler) allowedReturn(raw string) bool {
	if raw == "" || h.returnHost == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, h.returnHost)
}
