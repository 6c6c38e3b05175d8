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
		tickets, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("chats")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "ticket_id",
				Required:     true,
				CollectionId: tickets.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "buyer_id",
				Required:     true,
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "seller_id",
				Required:     true,
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"active", "accepted", "rejected", "completed"},
			},
			&core.NumberField{
				Name:    "final_price",
				OnlyInt: true,
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

		// One chat per buyer per listing.
		collection.AddIndex("idx_chats_ticket_buyer", true, "ticket_id, buyer_id", "")
		collection.AddIndex("idx_chats_buyer", false, "buyer_id", "")
		collection.AddIndex("idx_chats_seller", false, "seller_id", "")
		collection.AddIndex("idx_chats_status", false, "status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("chats")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
