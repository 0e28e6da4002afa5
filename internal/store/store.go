// Package store maps the PocketBase collections to domain models.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const (
	CollectionEvents       = "events"
	CollectionTicketTypes  = "ticket_types"
	CollectionCoupons      = "coupons"
	CollectionParticipants = "participants"
	CollectionProfiles     = "profiles"
	CollectionLikes        = "likes"
	CollectionMatches      = "matches"
	CollectionMessages     = "chat_messages"
	CollectionPayments     = "payments"
)

type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func money(r *core.Record, field string) decimal.Decimal {
	return decimal.NewFromFloat(r.GetFloat(field)).Round(2)
}

func timeOf(r *core.Record, field string) time.Time {
	return r.GetDateTime(field).Time()
}

func optionalTime(r *core.Record, field string) *time.Time {
	dt := r.GetDateTime(field)
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}

func dbTime(t time.Time) string {
	return t.UTC().Format(types.DefaultDateLayout)
}
