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

		profiles := core.NewBaseCollection("profiles")
		profiles.ViewRule = types.Pointer("user = @request.auth.id")
		profiles.CreateRule = types.Pointer("user = @request.auth.id")
		profiles.UpdateRule = types.Pointer("user = @request.auth.id")
		profiles.Fields.Add(
			&core.RelationField{Name: "user", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.TextField{Name: "display_name", Max: 120},
			&core.TextField{Name: "avatar"},
			&core.TextField{Name: "bio", Max: 500},
			&core.NumberField{Name: "age", OnlyInt: true, Min: types.Pointer(0.0), Max: types.Pointer(120.0)},
			&core.JSONField{Name: "interests", MaxSize: 4096},
			&core.JSONField{Name: "looking_for", MaxSize: 4096},
			&core.BoolField{Name: "match_enabled"},
			&core.BoolField{Name: "show_initials_only"},
			&core.BoolField{Name: "allow_profile_view"},
		)
		timestamps(profiles)
		profiles.AddIndex("idx_profiles_user", true, "user", "")
		if err := app.Save(profiles); err != nil {
			return err
		}

		likes := core.NewBaseCollection("likes")
		likes.Fields.Add(
			&core.RelationField{Name: "from_user", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "to_user", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1, CascadeDelete: true},
		)
		timestamps(likes)
		likes.AddIndex("idx_likes_edge", true, "from_user, to_user, event", "")
		if err := app.Save(likes); err != nil {
			return err
		}

		matches := core.NewBaseCollection("matches")
		matches.ViewRule = types.Pointer("user_a = @request.auth.id || user_b = @request.auth.id")
		matches.ListRule = types.Pointer("user_a = @request.auth.id || user_b = @request.auth.id")
		matches.Fields.Add(
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "user_a", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "user_b", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
		)
		timestamps(matches)
		matches.AddIndex("idx_matches_pair", true, "event, user_a, user_b", "")
		if err := app.Save(matches); err != nil {
			return err
		}

		messages := core.NewBaseCollection("chat_messages")
		messages.Fields.Add(
			&core.RelationField{Name: "match", Required: true, CollectionId: matches.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "sender", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.TextField{Name: "body", Required: true, Max: 2000},
			&core.DateField{Name: "expires_at", Required: true},
		)
		timestamps(messages)
		messages.AddIndex("idx_chat_messages_match", false, "`match`, expires_at", "")

		return app.Save(messages)
	}, func(app core.App) error {
		for _, name := range []string{"chat_messages", "matches", "likes", "profiles"} {
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
