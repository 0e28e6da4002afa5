package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"prefest/internal/checkout"
	"prefest/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{status.ErrInvalidRequest, http.StatusBadRequest},
	{status.ErrTicketTypeRequired, http.StatusBadRequest},
	{status.ErrCouponNotFound, http.StatusBadRequest},
	{status.ErrPaymentRequired, http.StatusBadRequest},
	{status.ErrFreeCheckout, http.StatusBadRequest},
	{status.ErrNotOnSale, http.StatusBadRequest},
	{status.ErrEventNotOpen, http.StatusBadRequest},
	{status.ErrSelfLike, http.StatusBadRequest},
	{status.ErrEmptyMessage, http.StatusBadRequest},
	{status.ErrMessageTooLong, http.StatusBadRequest},

	{status.ErrForbidden, http.StatusForbidden},
	{status.ErrNotAttending, http.StatusForbidden},
	{status.ErrNotMatchMember, http.StatusForbidden},
	{status.ErrProfileHidden, http.StatusForbidden},

	{status.ErrEventNotFound, http.StatusNotFound},
	{status.ErrTicketTypeNotFound, http.StatusNotFound},
	{status.ErrParticipantNotFound, http.StatusNotFound},
	{status.ErrPaymentNotFound, http.StatusNotFound},
	{status.ErrProfileNotFound, http.StatusNotFound},
	{status.ErrMatchNotFound, http.StatusNotFound},
	{status.ErrDraftNotFound, http.StatusNotFound},
	{status.ErrRefCodeNotFound, http.StatusNotFound},

	{status.ErrAlreadyRegistered, http.StatusConflict},
	{status.ErrSoldOut, http.StatusConflict},
	{status.ErrCheckoutInProgress, http.StatusConflict},

	{status.ErrChatExpired, http.StatusGone},

	{status.ErrFailedPayment, http.StatusBadGateway},
	{status.ErrProviderNotRegistered, http.StatusServiceUnavailable},
}

// publicMessage strips the "domain: " prefix of a sentinel error.
func publicMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, ": "); ok {
		return rest
	}
	return msg
}

// toAPIError maps service errors to API responses. Unknown errors are logged
// and rendered as a generic 500.
func toAPIError(op string, err error) error {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		return apis.NewBadRequestError(verr.Message, map[string]any{"field": verr.Field})
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return apis.NewApiError(m.status, publicMessage(m.err), nil)
		}
	}

	slog.Error(op, "error", err)
	return apis.NewInternalServerError("Something went wrong. Please try again.", nil)
}

func authUserID(e *core.RequestEvent) (string, error) {
	if e.Auth == nil {
		return "", apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return e.Auth.Id, nil
}
