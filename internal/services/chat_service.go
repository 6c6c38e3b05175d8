package services

import (
	"context"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"ticket-resale/internal/status"
	"ticket-resale/models"
	"ticket-resale/monitoring"
)

// ChatService is the chat registry: it owns negotiation threads and their
// uniqueness invariant, and serves the listing screens.
type ChatService struct {
	chats    ChatStore
	messages MessageStore
	tickets  TicketStore
	users    UserDirectory
	seen     SeenTracker
	pubnub   *pubnub.PubNub
}

func NewChatService(chats ChatStore, messages MessageStore, tickets TicketStore, users UserDirectory, seen SeenTracker, pn *pubnub.PubNub) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		tickets:  tickets,
		users:    users,
		seen:     seen,
		pubnub:   pn,
	}
}

// CreateChat opens a negotiation thread for (ticket, buyer). The seller is
// derived from the ticket. At most one chat may exist per (ticket, buyer).
func (s *ChatService) CreateChat(ctx context.Context, ticketID, buyerID string) (*models.Chat, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Sold {
		return nil, status.ErrTicketUnavailable
	}
	if ticket.SellerID == buyerID {
		return nil, status.ErrSelfNegotiation
	}

	chat, err := s.chats.Create(ctx, ticketID, buyerID, ticket.SellerID)
	if err != nil {
		return nil, err
	}

	monitoring.TrackChatCreated()
	s.notifyUser(ctx, chat.SellerID, map[string]any{
		"type":      "chat_created",
		"chat_id":   chat.ID,
		"ticket_id": ticketID,
	})

	return chat, nil
}

// GetChatByID returns a chat with denormalized ticket and participant
// summaries, or status.ErrChatNotFound.
func (s *ChatService) GetChatByID(ctx context.Context, chatID string) (*models.ChatDetail, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	detail := &models.ChatDetail{Chat: *chat}

	if ticket, err := s.tickets.Get(ctx, chat.TicketID); err == nil {
		detail.Ticket = ticket
	}
	if buyer, err := s.users.Summary(ctx, chat.BuyerID); err == nil {
		detail.Buyer = buyer
	}
	if seller, err := s.users.Summary(ctx, chat.SellerID); err == nil {
		detail.Seller = seller
	}

	return detail, nil
}

// ListChatsForUser returns every chat the user participates in, most recent
// activity first, each with its last message and the user's unread count.
func (s *ChatService) ListChatsForUser(ctx context.Context, userID string) ([]*models.ChatSummary, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := &models.ChatSummary{Chat: *chat}

		if ticket, err := s.tickets.Get(ctx, chat.TicketID); err == nil {
			summary.Ticket = ticket
		}

		last, err := s.messages.Last(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		summary.LastMessage = last

		lastSeen, err := s.seen.LastSeen(ctx, chat.ID, userID)
		if err != nil {
			slog.Error("failed to read last-seen mark", "chat_id", chat.ID, "user_id", userID, "error", err)
		} else {
			unread, err := s.messages.CountFromOthersSince(ctx, chat.ID, userID, lastSeen)
			if err != nil {
				return nil, err
			}
			summary.UnreadCount = unread
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// MarkSeen records that the user has viewed the chat's timeline.
func (s *ChatService) MarkSeen(ctx context.Context, chatID, userID string) error {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsParticipant(userID) {
		return status.ErrNotAuthorized
	}

	return s.seen.MarkSeen(ctx, chatID, userID)
}

func (s *ChatService) notifyUser(_ context.Context, userID string, message map[string]any) {
	if s.pubnub == nil {
		return
	}

	s.pubnub.Publish().
		Channel("user-" + userID).
		Message(message).
		Execute()
}
