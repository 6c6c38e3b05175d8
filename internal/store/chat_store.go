package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// ChatStore persists negotiation chats in the "chats" collection.
type ChatStore struct {
	app core.App
}

func NewChatStore(app core.App) *ChatStore {
	return &ChatStore{app: app}
}

type chatRow struct {
	ID         string         `db:"id"`
	TicketID   string         `db:"ticket_id"`
	BuyerID    string         `db:"buyer_id"`
	SellerID   string         `db:"seller_id"`
	Status     string         `db:"status"`
	FinalPrice float64        `db:"final_price"`
	Created    types.DateTime `db:"created"`
	Updated    types.DateTime `db:"updated"`
}

func (r *chatRow) toModel() *models.Chat {
	chat := &models.Chat{
		ID:       r.ID,
		TicketID: r.TicketID,
		BuyerID:  r.BuyerID,
		SellerID: r.SellerID,
		Status:   models.ChatStatus(r.Status),
		Created:  r.Created.Time(),
		Updated:  r.Updated.Time(),
	}
	if chat.Status == models.ChatAccepted || chat.Status == models.ChatCompleted {
		price := int64(r.FinalPrice)
		chat.FinalPrice = &price
	}
	return chat
}

func chatFromRecord(rec *core.Record) *models.Chat {
	chat := &models.Chat{
		ID:       rec.Id,
		TicketID: rec.GetString("ticket_id"),
		BuyerID:  rec.GetString("buyer_id"),
		SellerID: rec.GetString("seller_id"),
		Status:   models.ChatStatus(rec.GetString("status")),
		Created:  rec.GetDateTime("created").Time(),
		Updated:  rec.GetDateTime("updated").Time(),
	}
	if chat.Status == models.ChatAccepted || chat.Status == models.ChatCompleted {
		price := int64(rec.GetFloat("final_price"))
		chat.FinalPrice = &price
	}
	return chat
}

// Create inserts a new active chat. The unique index on (ticket_id, buyer_id)
// backs the duplicate pre-check under concurrent creates.
func (s *ChatStore) Create(ctx context.Context, ticketID, buyerID, sellerID string) (*models.Chat, error) {
	existing, err := s.app.FindFirstRecordByFilter(
		"chats",
		"ticket_id = {:ticket} && buyer_id = {:buyer}",
		dbx.Params{"ticket": ticketID, "buyer": buyerID},
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return nil, status.ErrDuplicateChat
	}

	collection, err := s.app.FindCollectionByNameOrId("chats")
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(collection)
	rec.Set("ticket_id", ticketID)
	rec.Set("buyer_id", buyerID)
	rec.Set("seller_id", sellerID)
	rec.Set("status", string(models.ChatActive))

	if err := s.app.Save(rec); err != nil {
		return nil, err
	}

	return chatFromRecord(rec), nil
}

// Get returns a chat by id, or status.ErrChatNotFound.
func (s *ChatStore) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	rec, err := s.app.FindRecordById("chats", chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrChatNotFound
		}
		return nil, err
	}
	return chatFromRecord(rec), nil
}

// ListForUser returns every chat the user participates in, most recently
// active first.
func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	rows := []chatRow{}
	err := s.app.DB().
		Select("id", "ticket_id", "buyer_id", "seller_id", "status", "final_price", "created", "updated").
		From("chats").
		Where(dbx.Or(
			dbx.HashExp{"buyer_id": userID},
			dbx.HashExp{"seller_id": userID},
		)).
		OrderBy("updated DESC").
		All(&rows)
	if err != nil {
		return nil, err
	}

	chats := make([]*models.Chat, len(rows))
	for i := range rows {
		chats[i] = rows[i].toModel()
	}
	return chats, nil
}

// CountByStatus returns the number of chats per status.
func (s *ChatStore) CountByStatus(ctx context.Context) (map[models.ChatStatus]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}{}
	err := s.app.DB().
		Select("status", "COUNT(*) AS total").
		From("chats").
		GroupBy("status").
		All(&rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ChatStatus]int, len(rows))
	for _, row := range rows {
		counts[models.ChatStatus(row.Status)] = row.Total
	}
	return counts, nil
}

// Touch bumps a chat's updated timestamp so listings sort by last activity.
func (s *ChatStore) Touch(ctx context.Context, chatID string) error {
	_, err := s.app.DB().
		Update("chats",
			dbx.Params{"updated": types.NowDateTime()},
			dbx.NewExp("id = {:id}", dbx.Params{"id": chatID}),
		).
		Execute()
	return err
}

// Transition atomically moves a chat from one status to another and appends
// the message that caused the move. The UPDATE is conditional on the current
// status, so of two racing terminal transitions exactly one succeeds; the
// loser sees status.ErrInvalidState.
func (s *ChatStore) Transition(ctx context.Context, chatID string, from, to models.ChatStatus, finalPrice *int64, msg *models.Message) (*models.Message, error) {
	var saved *models.Message

	err := s.app.RunInTransaction(func(txApp core.App) error {
		params := dbx.Params{
			"status":  string(to),
			"updated": types.NowDateTime(),
		}
		if finalPrice != nil {
			params["final_price"] = *finalPrice
		}

		res, err := txApp.DB().
			Update("chats", params, dbx.NewExp(
				"id = {:id} AND status = {:from}",
				dbx.Params{"id": chatID, "from": string(from)},
			)).
			Execute()
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Someone else already moved the chat out of `from`.
			return status.ErrInvalidState
		}

		saved, err = insertMessage(txApp, msg)
		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}
