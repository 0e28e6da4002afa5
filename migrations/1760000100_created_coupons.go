package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		// Coupons are only read through the API routes, never listed publicly.
		coupons := core.NewBaseCollection("coupons")
		coupons.Fields.Add(
			&core.TextField{Name: "code", Required: true, Max: 40, Pattern: `^[A-Z0-9_-]+$`},
			&core.SelectField{Name: "discount_type", Required: true, MaxSelect: 1, Values: []string{"percentage", "fixed"}},
			&core.NumberField{Name: "discount_value", Required: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "max_uses", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.NumberField{Name: "used_count", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.BoolField{Name: "active"},
			&core.DateField{Name: "expires_at"},
		)
		timestamps(coupons)
		coupons.AddIndex("idx_coupons_code", true, "code", "")

		return app.Save(coupons)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("coupons")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
