package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{
				Name:     "title",
				Required: true,
				Max:      200,
			},
			&core.DateField{
				Name:     "event_at",
				Required: true,
			},
			&core.NumberField{
				Name:     "price",
				Required: true,
				OnlyInt:  true,
			},
			&core.RelationField{
				Name:         "seller_id",
				Required:     true,
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.BoolField{
				Name: "sold",
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		collection.AddIndex("idx_tickets_seller", false, "seller_id", "")
		collection.AddIndex("idx_tickets_sold", false, "sold", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
