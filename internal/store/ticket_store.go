package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/pocketbase/core"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// TicketStore reads the ticket catalog. The negotiation core treats tickets
// as read-only; only settlement marks them sold.
type TicketStore struct {
	app core.App
}

func NewTicketStore(app core.App) *TicketStore {
	return &TicketStore{app: app}
}

func ticketFromRecord(rec *core.Record) *models.Ticket {
	return &models.Ticket{
		ID:       rec.Id,
		Title:    rec.GetString("title"),
		EventAt:  rec.GetDateTime("event_at").Time(),
		Price:    int64(rec.GetFloat("price")),
		SellerID: rec.GetString("seller_id"),
		Sold:     rec.GetBool("sold"),
		Created:  rec.GetDateTime("created").Time(),
	}
}

// Get returns a ticket by id, or status.ErrTicketNotFound.
func (s *TicketStore) Get(ctx context.Context, ticketID string) (*models.Ticket, error) {
	rec, err := s.app.FindRecordById("tickets", ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrTicketNotFound
		}
		return nil, err
	}
	return ticketFromRecord(rec), nil
}

// MarkSold flags a ticket as sold after settlement.
func (s *TicketStore) MarkSold(ctx context.Context, ticketID string) error {
	rec, err := s.app.FindRecordById("tickets", ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrTicketNotFound
		}
		return err
	}

	rec.Set("sold", true)
	return s.app.Save(rec)
}
