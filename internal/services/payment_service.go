package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/services/bank"
	"ticket-resale/internal/status"
	"ticket-resale/models"
	"ticket-resale/monitoring"
	"ticket-resale/utils"
)

// PaymentService settles accepted negotiations: it issues a bank QR for the
// agreed price and, on the bank's transaction notification, completes the
// chat and marks the ticket sold. Completion is the one transition the
// offer state machine never performs itself.
type PaymentService struct {
	Redis    *redis.Client
	PubNub   *pubnub.PubNub
	chats    ChatStore
	log      *MessageService
	tickets  TicketStore
	bank     bank.Interface
	breaker  *utils.CircuitBreaker
	lifespan time.Duration
}

func NewPaymentService(redisClient *redis.Client, pn *pubnub.PubNub, chats ChatStore, log *MessageService, tickets TicketStore, bankClient bank.Interface, lifespan time.Duration) *PaymentService {
	service := &PaymentService{
		Redis:    redisClient,
		PubNub:   pn,
		chats:    chats,
		log:      log,
		tickets:  tickets,
		bank:     bankClient,
		breaker:  utils.NewCircuitBreaker("jdb"),
		lifespan: lifespan,
	}

	if pn != nil {
		go service.SubscribeToPaymentNotifications()
	}

	return service
}

// Breaker exposes the bank circuit breaker for the admin dashboard.
func (s *PaymentService) Breaker() *utils.CircuitBreaker {
	return s.breaker
}

// CreateSettlementQR issues a JDB QR for an accepted chat's final price.
// Only the buyer can request it. The chat id doubles as the bill number,
// so the bank notification routes straight back to the chat.
func (s *PaymentService) CreateSettlementQR(ctx context.Context, chatID, requesterID, phone string) (string, error) {
	if s.bank == nil {
		return "", status.ErrFailedPayment
	}

	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return "", err
	}
	if chat.BuyerID != requesterID {
		return "", status.ErrNotAuthorized
	}
	if chat.Status != models.ChatAccepted || chat.FinalPrice == nil {
		return "", status.ErrInvalidState
	}

	refID, err := utils.GenerateCode(4)
	if err != nil {
		return "", err
	}

	form := &status.FormQR{
		Phone:          phone,
		ReferenceLabel: fmt.Sprintf("%s-%s", chatID, refID),
		TerminalLabel:  refID,
		UUID:           chatID,
		Amount:         decimal.NewFromInt(*chat.FinalPrice),
	}

	started := time.Now()
	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.bank.GenerateQR(ctx, form)
	})
	monitoring.TrackSettlementQR(time.Since(started))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("settlement:%s", chatID)
	s.Redis.HSet(ctx, key, map[string]any{
		"chat_id":    chatID,
		"buyer_id":   requesterID,
		"ref_id":     refID,
		"amount":     *chat.FinalPrice,
		"created_at": time.Now().Unix(),
	})
	s.Redis.Expire(ctx, key, s.lifespan)

	return result.(string), nil
}

// CheckSettlement polls the bank for the chat's bill status. Useful when the
// notification feed is lagging and the client wants to confirm a scan.
func (s *PaymentService) CheckSettlement(ctx context.Context, chatID, requesterID string) (*status.Transaction, error) {
	if s.bank == nil {
		return nil, status.ErrFailedPayment
	}

	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(requesterID) {
		return nil, status.ErrNotAuthorized
	}

	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.bank.CheckTransaction(ctx, chatID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*status.Transaction), nil
}

// HandleTransaction is fed from the bank's notification channel. The
// transaction's bill UUID is the chat id.
func (s *PaymentService) HandleTransaction(ctx context.Context, tran *status.Transaction) error {
	return s.Settle(ctx, tran.UUID, tran.Amount)
}

// Settle completes an accepted chat after payment. The accepted->completed
// move goes through the conditional update, so a duplicated notification
// is a no-op failing with status.ErrInvalidState.
func (s *PaymentService) Settle(ctx context.Context, chatID string, amount decimal.Decimal) error {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Status != models.ChatAccepted || chat.FinalPrice == nil {
		return status.ErrInvalidState
	}
	if !amount.IsZero() && !amount.Equal(decimal.NewFromInt(*chat.FinalPrice)) {
		slog.Error("settlement amount mismatch",
			"chat_id", chatID,
			"expected", *chat.FinalPrice,
			"received", amount.String(),
		)
		return status.ErrFailedPayment
	}

	finalPrice := *chat.FinalPrice
	_, err = s.chats.Transition(ctx, chatID, models.ChatAccepted, models.ChatCompleted, nil, &models.Message{
		ChatID:   chatID,
		SenderID: chat.BuyerID,
		Type:     models.MessageSystem,
		Content:  fmt.Sprintf("Payment of %d received, ticket transferred", finalPrice),
	})
	if err != nil {
		return err
	}

	if err := s.tickets.MarkSold(ctx, chat.TicketID); err != nil {
		slog.Error("failed to mark ticket sold", "ticket_id", chat.TicketID, "error", err)
	}

	s.Redis.Del(ctx, fmt.Sprintf("settlement:%s", chatID))
	if s.bank != nil {
		s.bank.Unsubscribe(ctx, chatID)
	}

	monitoring.TrackSettlement()
	s.notifySettled(chat)

	return nil
}

// SubscribeToPaymentNotifications listens for simulated payment
// notifications published by the dev tooling.
func (s *PaymentService) SubscribeToPaymentNotifications() {
	listener := pubnub.NewListener()

	s.PubNub.AddListener(listener)
	s.PubNub.Subscribe().
		Channels([]string{"bank-payment-notifications"}).
		Execute()

	for message := range listener.Message {
		go s.handlePaymentNotification(message)
	}
}

func (s *PaymentService) handlePaymentNotification(message *pubnub.PNMessage) {
	var notification struct {
		ChatID string `json:"chat_id"`
		Status string `json:"status"`
	}

	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	jsonData, _ := json.Marshal(data)
	if err := json.Unmarshal(jsonData, &notification); err != nil {
		slog.Error("failed to parse payment notification", "error", err)
		return
	}

	if notification.Status != "success" {
		return
	}

	ctx := context.Background()
	if err := s.Settle(ctx, notification.ChatID, decimal.Zero); err != nil {
		slog.Error("failed to settle chat", "chat_id", notification.ChatID, "error", err)
	}
}

func (s *PaymentService) notifySettled(chat *models.Chat) {
	if s.PubNub == nil {
		return
	}

	for _, userID := range []string{chat.BuyerID, chat.SellerID} {
		s.PubNub.Publish().
			Channel("user-" + userID).
			Message(map[string]any{
				"type":    "payment_success",
				"chat_id": chat.ID,
			}).
			Execute()
	}
}
