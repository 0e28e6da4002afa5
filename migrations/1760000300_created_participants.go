package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		ticketTypes, err := app.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}
		payments, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}

		participants := core.NewBaseCollection("participants")
		participants.ListRule = types.Pointer("user = @request.auth.id || event.organizer = @request.auth.id")
		participants.ViewRule = types.Pointer("user = @request.auth.id || event.organizer = @request.auth.id")
		participants.Fields.Add(
			&core.RelationField{Name: "user", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "ticket_type", CollectionId: ticketTypes.Id, MaxSelect: 1},
			&core.RelationField{Name: "payment", CollectionId: payments.Id, MaxSelect: 1},
			&core.TextField{Name: "holder_name", Max: 120},
			&core.EmailField{Name: "holder_email"},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"valid", "used", "cancelled"}},
			&core.TextField{Name: "ticket_code", Required: true, Pattern: `^PF-[A-Z0-9]{4}-[A-Z0-9]{4}$`},
			&core.DateField{Name: "checked_in_at"},
		)
		timestamps(participants)
		participants.AddIndex("idx_participants_ticket_code", true, "ticket_code", "")
		participants.AddIndex("idx_participants_user_event", true, "user, event", "status != 'cancelled'")
		participants.AddIndex("idx_participants_event", false, "event", "")

		return app.Save(participants)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("participants")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
