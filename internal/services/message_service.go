package services

import (
	"context"
	"fmt"
	"log/slog"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// MessageService is the append-only message log. It does not validate offer
// legality; that is the negotiation service's job.
type MessageService struct {
	chats    ChatStore
	messages MessageStore
}

func NewMessageService(chats ChatStore, messages MessageStore) *MessageService {
	return &MessageService{
		chats:    chats,
		messages: messages,
	}
}

// Append stores a message with a server-assigned id and timestamp and bumps
// the chat's last-activity mark. Fails with status.ErrChatNotFound for an
// unknown chat.
func (s *MessageService) Append(ctx context.Context, chatID, senderID string, typ models.MessageType, content string, offerPrice *int64) (*models.Message, error) {
	if typ.Priced() != (offerPrice != nil) {
		return nil, fmt.Errorf("message: type %s and offer price mismatch", typ)
	}

	msg, err := s.messages.Append(ctx, &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		Type:       typ,
		Content:    content,
		OfferPrice: offerPrice,
	})
	if err != nil {
		return nil, err
	}

	// The message is already stored; a stale activity mark only affects
	// list ordering, so a Touch failure is logged, not returned.
	if err := s.chats.Touch(ctx, chatID); err != nil {
		slog.Error("failed to touch chat", "chat_id", chatID, "error", err)
	}

	return msg, nil
}

// LastOffer returns the most recent offer or counter_offer in a chat, or
// nil when no price is on the table.
func (s *MessageService) LastOffer(ctx context.Context, chatID string) (*models.Message, error) {
	return s.messages.LastOffer(ctx, chatID)
}

// List returns a chat's full timeline, oldest first.
func (s *MessageService) List(ctx context.Context, chatID string) ([]*models.Message, error) {
	if _, err := s.chats.Get(ctx, chatID); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, chatID)
}

// ListForUser is List restricted to chat participants.
func (s *MessageService) ListForUser(ctx context.Context, chatID, userID string) ([]*models.Message, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(userID) {
		return nil, status.ErrNotAuthorized
	}
	return s.messages.List(ctx, chatID)
}
