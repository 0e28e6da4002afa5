package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func timestamps(c *core.Collection) {
	c.Fields.Add(
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
}

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		events := core.NewBaseCollection("events")
		events.ListRule = types.Pointer("status = 'published' || organizer = @request.auth.id")
		events.ViewRule = types.Pointer("status = 'published' || organizer = @request.auth.id")
		events.CreateRule = types.Pointer("@request.auth.id != '' && organizer = @request.auth.id")
		events.UpdateRule = types.Pointer("organizer = @request.auth.id")
		events.Fields.Add(
			&core.TextField{Name: "slug", Required: true, Max: 120, Pattern: `^[a-z0-9-]+$`},
			&core.TextField{Name: "title", Required: true, Max: 200},
			&core.TextField{Name: "description", Max: 10000},
			&core.RelationField{Name: "organizer", Required: true, CollectionId: users.Id, MaxSelect: 1},
			&core.DateField{Name: "starts_at", Required: true},
			&core.DateField{Name: "ends_at", Required: true},
			&core.TextField{Name: "address"},
			&core.TextField{Name: "city"},
			&core.TextField{Name: "state"},
			&core.NumberField{Name: "price", Min: types.Pointer(0.0)},
			&core.NumberField{Name: "capacity", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "participants_count", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "image"},
			&core.TextField{Name: "category", Max: 60},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"draft", "published", "ended", "cancelled"}},
		)
		timestamps(events)
		events.AddIndex("idx_events_slug", true, "slug", "")
		events.AddIndex("idx_events_status", false, "status", "")
		if err := app.Save(events); err != nil {
			return err
		}

		ticketTypes := core.NewBaseCollection("ticket_types")
		ticketTypes.ListRule = types.Pointer("")
		ticketTypes.ViewRule = types.Pointer("")
		ticketTypes.CreateRule = types.Pointer("event.organizer = @request.auth.id")
		ticketTypes.UpdateRule = types.Pointer("event.organizer = @request.auth.id && @request.body.quantity_sold:isset = false")
		ticketTypes.Fields.Add(
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1, CascadeDelete: true},
			&core.TextField{Name: "name", Required: true, Max: 120},
			&core.TextField{Name: "description", Max: 2000},
			&core.NumberField{Name: "price", Min: types.Pointer(0.0)},
			&core.NumberField{Name: "quantity_available", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "quantity_sold", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.DateField{Name: "sale_starts_at"},
			&core.DateField{Name: "sale_ends_at"},
		)
		timestamps(ticketTypes)
		ticketTypes.AddIndex("idx_ticket_types_event", false, "event", "")

		return app.Save(ticketTypes)
	}, func(app core.App) error {
		for _, name := range []string{"ticket_types", "events"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				return err
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
