package handlers

import (
	"context"
	"net/http"

	"prefest/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketService interface {
	Participation(ctx context.Context, userID, eventID string) (*models.Participant, error)
	CanScan(ctx context.Context, userID, eventID string) (bool, error)
	ValidateLegacy(ctx context.Context, staffID string, req models.ValidateLegacyRequest) *models.ValidationResult
	ValidateShortCode(ctx context.Context, staffID string, req models.ValidateCodeRequest) *models.ValidationResult
}

type TicketHandler struct {
	tickets TicketService
}

func NewTicketHandler(tickets TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// requireStaff allows superusers and the organizer of eventID.
func (h *TicketHandler) requireStaff(e *core.RequestEvent, eventID string) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if e.Auth.IsSuperuser() {
		return nil
	}
	if eventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}
	ok, err := h.tickets.CanScan(e.Request.Context(), e.Auth.Id, eventID)
	if err != nil {
		return toAPIError("tickets.CanScan", err)
	}
	if !ok {
		return apis.NewForbiddenError("Only event staff can validate tickets", nil)
	}
	return nil
}

// ValidateTicket checks a legacy {t, e, k} QR payload.
func (h *TicketHandler) ValidateTicket(e *core.RequestEvent) error {
	var req models.ValidateLegacyRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := h.requireStaff(e, req.EventID); err != nil {
		return err
	}
	return e.JSON(http.StatusOK, h.tickets.ValidateLegacy(e.Request.Context(), e.Auth.Id, req))
}

// ValidateCode checks a PF-XXXX-XXXX short code.
func (h *TicketHandler) ValidateCode(e *core.RequestEvent) error {
	var req models.ValidateCodeRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := h.requireStaff(e, req.EventID); err != nil {
		return err
	}
	return e.JSON(http.StatusOK, h.tickets.ValidateShortCode(e.Request.Context(), e.Auth.Id, req))
}
