package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// MessageStore is the append-only message log backed by the "messages"
// collection. Rows are never updated or deleted.
type MessageStore struct {
	app core.App
}

func NewMessageStore(app core.App) *MessageStore {
	return &MessageStore{app: app}
}

type messageRow struct {
	ID         string         `db:"id"`
	ChatID     string         `db:"chat_id"`
	SenderID   string         `db:"sender_id"`
	Type       string         `db:"type"`
	Content    string         `db:"content"`
	OfferPrice float64        `db:"offer_price"`
	Created    types.DateTime `db:"created"`
}

func (r *messageRow) toModel() *models.Message {
	msg := &models.Message{
		ID:       r.ID,
		ChatID:   r.ChatID,
		SenderID: r.SenderID,
		Type:     models.MessageType(r.Type),
		Content:  r.Content,
		Created:  r.Created.Time(),
	}
	if msg.Type.Priced() {
		price := int64(r.OfferPrice)
		msg.OfferPrice = &price
	}
	return msg
}

// insertMessage saves a message record through app (or a transaction app)
// and returns it with its server-assigned id and timestamp.
func insertMessage(app core.App, msg *models.Message) (*models.Message, error) {
	collection, err := app.FindCollectionByNameOrId("messages")
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(collection)
	rec.Set("chat_id", msg.ChatID)
	rec.Set("sender_id", msg.SenderID)
	rec.Set("type", string(msg.Type))
	rec.Set("content", msg.Content)
	if msg.OfferPrice != nil {
		rec.Set("offer_price", *msg.OfferPrice)
	}

	if err := app.Save(rec); err != nil {
		return nil, err
	}

	saved := *msg
	saved.ID = rec.Id
	saved.Created = rec.GetDateTime("created").Time()
	return &saved, nil
}

// Append stores a message. Fails with status.ErrChatNotFound for an unknown
// chat id. No business validation happens here.
func (s *MessageStore) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if _, err := s.app.FindRecordById("chats", msg.ChatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrChatNotFound
		}
		return nil, err
	}

	return insertMessage(s.app, msg)
}

// List returns a chat's full timeline, oldest first. Creation-timestamp ties
// are broken by insertion order (rowid).
func (s *MessageStore) List(ctx context.Context, chatID string) ([]*models.Message, error) {
	rows := []messageRow{}
	err := s.app.DB().
		NewQuery(`SELECT id, chat_id, sender_id, type, content, offer_price, created
			FROM messages
			WHERE chat_id = {:chat}
			ORDER BY created ASC, rowid ASC`).
		Bind(dbx.Params{"chat": chatID}).
		All(&rows)
	if err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toModel()
	}
	return msgs, nil
}

// Last returns a chat's most recent message, or nil for an empty timeline.
func (s *MessageStore) Last(ctx context.Context, chatID string) (*models.Message, error) {
	row := messageRow{}
	err := s.app.DB().
		NewQuery(`SELECT id, chat_id, sender_id, type, content, offer_price, created
			FROM messages
			WHERE chat_id = {:chat}
			ORDER BY created DESC, rowid DESC
			LIMIT 1`).
		Bind(dbx.Params{"chat": chatID}).
		One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

// LastOffer returns the most recent offer or counter_offer in a chat, or nil
// if no price is on the table yet.
func (s *MessageStore) LastOffer(ctx context.Context, chatID string) (*models.Message, error) {
	row := messageRow{}
	err := s.app.DB().
		NewQuery(`SELECT id, chat_id, sender_id, type, content, offer_price, created
			FROM messages
			WHERE chat_id = {:chat} AND type IN ({:offer}, {:counter})
			ORDER BY created DESC, rowid DESC
			LIMIT 1`).
		Bind(dbx.Params{
			"chat":    chatID,
			"offer":   string(models.MessageOffer),
			"counter": string(models.MessageCounterOffer),
		}).
		One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

// CountFromOthersSince counts messages not sent by userID and created after
// the given mark. Used for unread badges.
func (s *MessageStore) CountFromOthersSince(ctx context.Context, chatID, userID string, since time.Time) (int, error) {
	var total int
	err := s.app.DB().
		NewQuery(`SELECT COUNT(*) FROM messages
			WHERE chat_id = {:chat} AND sender_id != {:user} AND created > {:since}`).
		Bind(dbx.Params{
			"chat":  chatID,
			"user":  userID,
			"since": since.UTC().Format(types.DefaultDateLayout),
		}).
		Row(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}
