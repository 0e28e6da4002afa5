package handlers

import (
	"context"
	"net/http"

	"prefest/models"

	"github.com/pocketbase/pocketbase/core"
)

type EventService interface {
	Details(ctx context.Context, eventID string) (*models.EventDetails, error)
}

type EventHandler struct {
	events  EventService
	tickets TicketService
}

func NewEventHandler(events EventService, tickets TicketService) *EventHandler {
	return &EventHandler{events: events, tickets: tickets}
}

// GetEvent returns the event with its ticket types.
func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	details, err := h.events.Details(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return toAPIError("events.Details", err)
	}
	return e.JSON(http.StatusOK, details)
}

// GetParticipation returns the caller's ticket for the event. Clients call it
// after returning from the payment redirect.
func (h *EventHandler) GetParticipation(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}

	p, err := h.tickets.Participation(e.Request.Context(), userID, e.Request.PathValue("eventId"))
	if err != nil {
		return toAPIError("tickets.Participation", err)
	}
	return e.JSON(http.StatusOK, p)
}
