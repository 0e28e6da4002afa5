package store

import (
	"context"
	"fmt"

	"prefest/internal/status"
	"prefest/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

func eventFromRecord(r *core.Record) models.Event {
	return models.Event{
		ID:          r.Id,
		Slug:        r.GetString("slug"),
		Title:       r.GetString("title"),
		Description: r.GetString("description"),
		OrganizerID: r.GetString("organizer"),
		StartsAt:    timeOf(r, "starts_at"),
		EndsAt:      timeOf(r, "ends_at"),
		Location: models.Location{
			Address: r.GetString("address"),
			City:    r.GetString("city"),
			State:   r.GetString("state"),
		},
		Price:             money(r, "price"),
		Capacity:          r.GetInt("capacity"),
		ParticipantsCount: r.GetInt("participants_count"),
		Image:             r.GetString("image"),
		Category:          r.GetString("category"),
		Status:            r.GetString("status"),
	}
}

func ticketTypeFromRecord(r *core.Record) models.TicketType {
	return models.TicketType{
		ID:                r.Id,
		EventID:           r.GetString("event"),
		Name:              r.GetString("name"),
		Description:       r.GetString("description"),
		Price:             money(r, "price"),
		QuantityAvailable: r.GetInt("quantity_available"),
		QuantitySold:      r.GetInt("quantity_sold"),
		SaleStartsAt:      optionalTime(r, "sale_starts_at"),
		SaleEndsAt:        optionalTime(r, "sale_ends_at"),
	}
}

func (s *Store) GetEvent(_ context.Context, id string) (*models.Event, error) {
	r, err := s.app.FindRecordById(CollectionEvents, id)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrEventNotFound
		}
		return nil, fmt.Errorf("find event %s: %w", id, err)
	}
	e := eventFromRecord(r)
	return &e, nil
}

func (s *Store) ListTicketTypes(_ context.Context, eventID string) ([]models.TicketType, error) {
	records, err := s.app.FindRecordsByFilter(
		CollectionTicketTypes,
		"event = {:event}",
		"price",
		0,
		0,
		dbx.Params{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}

	out := make([]models.TicketType, 0, len(records))
	for _, r := range records {
		out = append(out, ticketTypeFromRecord(r))
	}
	return out, nil
}

func (s *Store) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	r, err := s.app.FindRecordById(CollectionTicketTypes, id)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("find ticket type %s: %w", id, err)
	}
	tt := ticketTypeFromRecord(r)
	return &tt, nil
}

// PublishedEventIDs lists events open for registration.
func (s *Store) PublishedEventIDs(_ context.Context) ([]string, error) {
	var rows []dbx.NullStringMap
	if err := s.app.DB().NewQuery(
		"SELECT id FROM events WHERE status = 'published'",
	).All(&rows); err != nil {
		return nil, fmt.Errorf("published events: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := row["id"].String; id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
