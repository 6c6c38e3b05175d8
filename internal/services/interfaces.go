package services

import (
	"context"
	"time"

	"ticket-resale/models"
)

// Store seams. The PocketBase implementations live in internal/store; tests
// substitute in-memory fakes.

type ChatStore interface {
	Create(ctx context.Context, ticketID, buyerID, sellerID string) (*models.Chat, error)
	Get(ctx context.Context, chatID string) (*models.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Chat, error)
	CountByStatus(ctx context.Context) (map[models.ChatStatus]int, error)
	Touch(ctx context.Context, chatID string) error

	// Transition conditionally moves the chat out of `from` and appends msg
	// in the same transaction. Must fail with status.ErrInvalidState when the
	// chat is no longer in `from`.
	Transition(ctx context.Context, chatID string, from, to models.ChatStatus, finalPrice *int64, msg *models.Message) (*models.Message, error)
}

type MessageStore interface {
	Append(ctx context.Context, msg *models.Message) (*models.Message, error)
	List(ctx context.Context, chatID string) ([]*models.Message, error)
	Last(ctx context.Context, chatID string) (*models.Message, error)
	LastOffer(ctx context.Context, chatID string) (*models.Message, error)
	CountFromOthersSince(ctx context.Context, chatID, userID string, since time.Time) (int, error)
}

type TicketStore interface {
	Get(ctx context.Context, ticketID string) (*models.Ticket, error)
	MarkSold(ctx context.Context, ticketID string) error
}

type UserDirectory interface {
	Summary(ctx context.Context, userID string) (*models.UserSummary, error)
}

// SeenTracker records when a participant last viewed a chat.
type SeenTracker interface {
	MarkSeen(ctx context.Context, chatID, userID string) error
	LastSeen(ctx context.Context, chatID, userID string) (time.Time, error)
}
