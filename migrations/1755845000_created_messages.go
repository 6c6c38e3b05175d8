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
		chats, err := app.FindCollectionByNameOrId("chats")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("messages")

		collection.Fields.Add(
			&core.RelationField{
				Name:          "chat_id",
				Required:      true,
				CollectionId:  chats.Id,
				MaxSelect:     1,
				CascadeDelete: true,
			},
			&core.RelationField{
				Name:         "sender_id",
				Required:     true,
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.SelectField{
				Name:      "type",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"text", "offer", "counter_offer", "accept", "reject", "system"},
			},
			&core.TextField{
				Name: "content",
				Max:  2000,
			},
			&core.NumberField{
				Name:    "offer_price",
				OnlyInt: true,
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
		)

		collection.AddIndex("idx_messages_chat_created", false, "chat_id, created", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("messages")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
