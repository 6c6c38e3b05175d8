package services

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go"

	"ticket-resale/internal/status"
	"ticket-resale/models"
	"ticket-resale/monitoring"
)

// Action is a negotiation step a participant can take on a chat.
type Action string

const (
	ActionText         Action = "text"
	ActionOffer        Action = "offer"
	ActionCounterOffer Action = "counter_offer"
	ActionAccept       Action = "accept"
	ActionReject       Action = "reject"
)

// allowedIn is the explicit transition table: an action not listed for the
// chat's current status fails with status.ErrInvalidState. Rejecting leaves
// the chat active so the buyer can re-offer; text stays allowed on accepted
// chats so the parties can arrange payment and handover.
var allowedIn = map[Action]map[models.ChatStatus]bool{
	ActionText:         {models.ChatActive: true, models.ChatAccepted: true},
	ActionOffer:        {models.ChatActive: true},
	ActionCounterOffer: {models.ChatActive: true},
	ActionAccept:       {models.ChatActive: true},
	ActionReject:       {models.ChatActive: true},
}

// NegotiationService is the offer state machine. It validates every action
// against the chat's current state, appends the resulting message, and
// applies status transitions. All writes for one action are atomic: a
// validation failure leaves both the chat and the log untouched.
type NegotiationService struct {
	chats   ChatStore
	log     *MessageService
	tickets TicketStore
	locks   *ChatMutex
	pubnub  *pubnub.PubNub
}

func NewNegotiationService(chats ChatStore, log *MessageService, tickets TicketStore, locks *ChatMutex, pn *pubnub.PubNub) *NegotiationService {
	return &NegotiationService{
		chats:   chats,
		log:     log,
		tickets: tickets,
		locks:   locks,
		pubnub:  pn,
	}
}

// loadForAction fetches the chat and runs the checks shared by every
// action: the sender must be a participant and the chat's status must
// permit the action.
func (s *NegotiationService) loadForAction(ctx context.Context, chatID, senderID string, action Action) (*models.Chat, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(senderID) {
		return nil, status.ErrNotAuthorized
	}
	if !allowedIn[action][chat.Status] {
		return nil, status.ErrInvalidState
	}
	return chat, nil
}

// SendText appends a plain text message. No status change.
func (s *NegotiationService) SendText(ctx context.Context, chatID, senderID, content string) (*models.Message, error) {
	chat, err := s.loadForAction(ctx, chatID, senderID, ActionText)
	if err != nil {
		monitoring.TrackAction(string(ActionText), "rejected")
		return nil, err
	}

	msg, err := s.log.Append(ctx, chatID, senderID, models.MessageText, content, nil)
	if err != nil {
		monitoring.TrackAction(string(ActionText), "error")
		return nil, err
	}

	monitoring.TrackAction(string(ActionText), "success")
	s.publish(chat, senderID, msg)
	return msg, nil
}

// MakeOffer places a buyer's offer. The chat must be active, the sender
// must be the buyer, and the price must satisfy the offer bounds against
// the ticket's asking price.
func (s *NegotiationService) MakeOffer(ctx context.Context, chatID, senderID string, price int64) (*models.Message, error) {
	release, err := s.locks.Acquire(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	chat, err := s.loadForAction(ctx, chatID, senderID, ActionOffer)
	if err != nil {
		monitoring.TrackAction(string(ActionOffer), "rejected")
		return nil, err
	}
	if senderID != chat.BuyerID {
		monitoring.TrackAction(string(ActionOffer), "rejected")
		return nil, status.ErrNotAuthorized
	}

	ticket, err := s.tickets.Get(ctx, chat.TicketID)
	if err != nil {
		return nil, err
	}
	if err := validateOfferPrice(price, ticket.Price); err != nil {
		monitoring.TrackAction(string(ActionOffer), "invalid_price")
		return nil, err
	}

	msg, err := s.applyStaying(ctx, chat, &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		Type:       models.MessageOffer,
		Content:    fmt.Sprintf("Offered %d", price),
		OfferPrice: &price,
	})
	if err != nil {
		monitoring.TrackAction(string(ActionOffer), "error")
		return nil, err
	}

	monitoring.TrackAction(string(ActionOffer), "success")
	s.publish(chat, senderID, msg)
	return msg, nil
}

// CounterOffer places a counter by either party once the other party has an
// offer on the table. Bounds are checked against the original asking price,
// not the prior offer.
func (s *NegotiationService) CounterOffer(ctx context.Context, chatID, senderID string, price int64) (*models.Message, error) {
	release, err := s.locks.Acquire(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	chat, err := s.loadForAction(ctx, chatID, senderID, ActionCounterOffer)
	if err != nil {
		monitoring.TrackAction(string(ActionCounterOffer), "rejected")
		return nil, err
	}

	lastOffer, err := s.log.LastOffer(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if lastOffer == nil || lastOffer.SenderID == senderID {
		monitoring.TrackAction(string(ActionCounterOffer), "rejected")
		return nil, status.ErrInvalidState
	}

	ticket, err := s.tickets.Get(ctx, chat.TicketID)
	if err != nil {
		return nil, err
	}
	if err := validateOfferPrice(price, ticket.Price); err != nil {
		monitoring.TrackAction(string(ActionCounterOffer), "invalid_price")
		return nil, err
	}

	msg, err := s.applyStaying(ctx, chat, &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		Type:       models.MessageCounterOffer,
		Content:    fmt.Sprintf("Countered with %d", price),
		OfferPrice: &price,
	})
	if err != nil {
		monitoring.TrackAction(string(ActionCounterOffer), "error")
		return nil, err
	}

	monitoring.TrackAction(string(ActionCounterOffer), "success")
	s.publish(chat, senderID, msg)
	return msg, nil
}

// AcceptOffer closes the bargain at the given price. Only the counterparty
// of the last offer's sender may accept; the chat moves to accepted and
// final_price is recorded.
func (s *NegotiationService) AcceptOffer(ctx context.Context, chatID, senderID string, price int64) (*models.Message, error) {
	release, err := s.locks.Acquire(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	chat, err := s.loadForAction(ctx, chatID, senderID, ActionAccept)
	if err != nil {
		monitoring.TrackAction(string(ActionAccept), "rejected")
		return nil, err
	}

	if err := s.requireCounterparty(ctx, chatID, senderID); err != nil {
		monitoring.TrackAction(string(ActionAccept), "rejected")
		return nil, err
	}

	msg, err := s.chats.Transition(ctx, chatID, models.ChatActive, models.ChatAccepted, &price, &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		Type:       models.MessageAccept,
		Content:    fmt.Sprintf("Accepted at %d", price),
		OfferPrice: &price,
	})
	if err != nil {
		monitoring.TrackAction(string(ActionAccept), "error")
		return nil, err
	}

	monitoring.TrackAction(string(ActionAccept), "success")
	s.publish(chat, senderID, msg)
	return msg, nil
}

// RejectOffer turns down the outstanding offer. The chat stays active so
// negotiation can continue; the conditional update still guards against a
// racing accept, whose loser sees status.ErrInvalidState.
func (s *NegotiationService) RejectOffer(ctx context.Context, chatID, senderID string) (*models.Message, error) {
	release, err := s.locks.Acquire(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	chat, err := s.loadForAction(ctx, chatID, senderID, ActionReject)
	if err != nil {
		monitoring.TrackAction(string(ActionReject), "rejected")
		return nil, err
	}

	lastOffer, err := s.log.LastOffer(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if lastOffer == nil {
		monitoring.TrackAction(string(ActionReject), "rejected")
		return nil, status.ErrInvalidState
	}
	if lastOffer.SenderID == senderID {
		monitoring.TrackAction(string(ActionReject), "rejected")
		return nil, status.ErrNotAuthorized
	}

	msg, err := s.applyStaying(ctx, chat, &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		Type:       models.MessageReject,
		Content:    fmt.Sprintf("Rejected the offer of %d", *lastOffer.OfferPrice),
		OfferPrice: lastOffer.OfferPrice,
	})
	if err != nil {
		monitoring.TrackAction(string(ActionReject), "error")
		return nil, err
	}

	monitoring.TrackAction(string(ActionReject), "success")
	s.publish(chat, senderID, msg)
	return msg, nil
}

// requireCounterparty enforces the accept/reject authorization rule: the
// sender must be the counterparty of the last offer's sender.
func (s *NegotiationService) requireCounterparty(ctx context.Context, chatID, senderID string) error {
	lastOffer, err := s.log.LastOffer(ctx, chatID)
	if err != nil {
		return err
	}
	if lastOffer == nil {
		return status.ErrInvalidState
	}
	if lastOffer.SenderID == senderID {
		return status.ErrNotAuthorized
	}
	return nil
}

// applyStaying appends a message through the conditional update without
// changing the chat's status, so the action is atomic with respect to a
// concurrent terminal transition.
func (s *NegotiationService) applyStaying(ctx context.Context, chat *models.Chat, msg *models.Message) (*models.Message, error) {
	return s.chats.Transition(ctx, chat.ID, chat.Status, chat.Status, nil, msg)
}

// validateOfferPrice enforces the offer bounds: positive, strictly below
// asking, and at least 10% of asking. Whole-unit integer math throughout.
func validateOfferPrice(price, asking int64) error {
	if price <= 0 {
		return &status.InvalidOfferError{
			Reason: status.OfferNonPositive,
			Detail: "offer must be a positive amount",
		}
	}
	if price >= asking {
		return &status.InvalidOfferError{
			Reason: status.OfferTooHigh,
			Detail: "offer must be below the asking price",
		}
	}
	if price*10 < asking {
		return &status.InvalidOfferError{
			Reason: status.OfferTooLow,
			Detail: "offer must be at least 10% of the asking price",
		}
	}
	return nil
}

// publish fans the new message out to the chat channel and pings the
// counterparty's personal channel.
func (s *NegotiationService) publish(chat *models.Chat, senderID string, msg *models.Message) {
	if s.pubnub == nil {
		return
	}

	s.pubnub.Publish().
		Channel("chat-" + chat.ID).
		Message(map[string]any{
			"type":    "message",
			"message": msg,
		}).
		Execute()

	if other := chat.Counterparty(senderID); other != "" {
		s.pubnub.Publish().
			Channel("user-" + other).
			Message(map[string]any{
				"type":         "chat_activity",
				"chat_id":      chat.ID,
				"message_type": string(msg.Type),
			}).
			Execute()
	}
}
