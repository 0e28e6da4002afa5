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
		coupons, err := app.FindCollectionByNameOrId("coupons")
		if err != nil {
			return err
		}

		payments := core.NewBaseCollection("payments")
		payments.ViewRule = types.Pointer("user = @request.auth.id")
		payments.Fields.Add(
			&core.RelationField{Name: "user", Required: true, CollectionId: users.Id, MaxSelect: 1},
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1},
			&core.RelationField{Name: "ticket_type", CollectionId: ticketTypes.Id, MaxSelect: 1},
			&core.RelationField{Name: "coupon", CollectionId: coupons.Id, MaxSelect: 1},
			&core.TextField{Name: "holder_name", Max: 120},
			&core.EmailField{Name: "holder_email"},
			&core.NumberField{Name: "amount", Min: types.Pointer(0.0)},
			&core.TextField{Name: "currency", Max: 3},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"pending", "paid", "failed"}},
			&core.TextField{Name: "provider", Max: 40},
			&core.TextField{Name: "provider_ref"},
			&core.TextField{Name: "payment_url"},
			&core.TextField{Name: "failure_code"},
			&core.DateField{Name: "completed_at"},
		)
		timestamps(payments)
		payments.AddIndex("idx_payments_provider_ref", false, "provider_ref", "")
		payments.AddIndex("idx_payments_user_event", false, "user, event", "")

		return app.Save(payments)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
