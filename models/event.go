package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Location struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
}

type Event struct {
	ID                string          `json:"id"`
	Slug              string          `json:"slug"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	OrganizerID       string          `json:"organizer_id"`
	StartsAt          time.Time       `json:"starts_at"`
	EndsAt            time.Time       `json:"ends_at"`
	Location          Location        `json:"location"`
	Price             decimal.Decimal `json:"price"`
	Capacity          int             `json:"capacity"`
	ParticipantsCount int             `json:"participants_count"`
	Image             string          `json:"image"`
	Category          string          `json:"category"`
	Status            string          `json:"status"` // draft, published, ended, cancelled
}

type TicketType struct {
	ID                string          `json:"id"`
	EventID           string          `json:"event_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity_available"`
	QuantitySold      int             `json:"quantity_sold"`
	SaleStartsAt      *time.Time      `json:"sale_starts_at,omitempty"`
	SaleEndsAt        *time.Time      `json:"sale_ends_at,omitempty"`
}

// Remaining never goes below zero even if the counters drift.
func (t TicketType) Remaining() int {
	if n := t.QuantityAvailable - t.QuantitySold; n > 0 {
		return n
	}
	return 0
}

// OnSale reports whether now falls inside the optional sale window.
func (t TicketType) OnSale(now time.Time) bool {
	if t.SaleStartsAt != nil && now.Before(*t.SaleStartsAt) {
		return false
	}
	if t.SaleEndsAt != nil && now.After(*t.SaleEndsAt) {
		return false
	}
	return true
}

type EventDetails struct {
	Event       Event        `json:"event"`
	TicketTypes []TicketType `json:"ticket_types"`
}
