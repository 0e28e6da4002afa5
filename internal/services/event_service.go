package services

import (
	"context"
	"fmt"

	"prefest/models"
)

type EventService struct {
	store EventStore
}

func NewEventService(store EventStore) *EventService {
	return &EventService{store: store}
}

func (s *EventService) Details(ctx context.Context, eventID string) (*models.EventDetails, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ticketTypes, err := s.store.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	if ticketTypes == nil {
		ticketTypes = []models.TicketType{}
	}

	return &models.EventDetails{Event: *event, TicketTypes: ticketTypes}, nil
}
