package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// fakeStore is an in-memory ChatStore + MessageStore + TicketStore with the
// same conditional-update semantics as the SQL implementation, so the state
// machine tests exercise real transition behavior without a database.
type fakeStore struct {
	mu       sync.Mutex
	chats    map[string]*models.Chat
	messages map[string][]*models.Message
	tickets  map[string]*models.Ticket
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    make(map[string]*models.Chat),
		messages: make(map[string][]*models.Message),
		tickets:  make(map[string]*models.Ticket),
	}
}

func (f *fakeStore) addTicket(t *models.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = t
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

// ChatStore

func (f *fakeStore) Create(ctx context.Context, ticketID, buyerID, sellerID string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.chats {
		if c.TicketID == ticketID && c.BuyerID == buyerID {
			return nil, status.ErrDuplicateChat
		}
	}

	now := time.Now()
	chat := &models.Chat{
		ID:       f.nextID("chat"),
		TicketID: ticketID,
		BuyerID:  buyerID,
		SellerID: sellerID,
		Status:   models.ChatActive,
		Created:  now,
		Updated:  now,
	}
	f.chats[chat.ID] = chat

	copied := *chat
	return &copied, nil
}

func (f *fakeStore) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chat, ok := f.chats[chatID]
	if !ok {
		return nil, status.ErrChatNotFound
	}
	copied := *chat
	return &copied, nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Chat
	for _, c := range f.chats {
		if c.BuyerID == userID || c.SellerID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Updated.After(out[j].Updated)
	})
	return out, nil
}

func (f *fakeStore) CountByStatus(ctx context.Context) (map[models.ChatStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[models.ChatStatus]int)
	for _, c := range f.chats {
		counts[c.Status]++
	}
	return counts, nil
}

func (f *fakeStore) Touch(ctx context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	chat, ok := f.chats[chatID]
	if !ok {
		return status.ErrChatNotFound
	}
	chat.Updated = time.Now()
	return nil
}

func (f *fakeStore) Transition(ctx context.Context, chatID string, from, to models.ChatStatus, finalPrice *int64, msg *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chat, ok := f.chats[chatID]
	if !ok {
		return nil, status.ErrChatNotFound
	}
	if chat.Status != from {
		return nil, status.ErrInvalidState
	}

	chat.Status = to
	if finalPrice != nil {
		price := *finalPrice
		chat.FinalPrice = &price
	}
	chat.Updated = time.Now()

	return f.appendLocked(msg), nil
}

// MessageStore

func (f *fakeStore) appendLocked(msg *models.Message) *models.Message {
	stored := *msg
	stored.ID = f.nextID("msg")
	stored.Created = time.Now()
	f.messages[stored.ChatID] = append(f.messages[stored.ChatID], &stored)

	copied := stored
	return &copied
}

func (f *fakeStore) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.chats[msg.ChatID]; !ok {
		return nil, status.ErrChatNotFound
	}
	return f.appendLocked(msg), nil
}

func (f *fakeStore) List(ctx context.Context, chatID string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.messages[chatID]
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeStore) Last(ctx context.Context, chatID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.messages[chatID]
	if len(msgs) == 0 {
		return nil, nil
	}
	copied := *msgs[len(msgs)-1]
	return &copied, nil
}

func (f *fakeStore) LastOffer(ctx context.Context, chatID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.messages[chatID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type.IsOffer() {
			copied := *msgs[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CountFromOthersSince(ctx context.Context, chatID, userID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, m := range f.messages[chatID] {
		if m.SenderID != userID && m.Created.After(since) {
			count++
		}
	}
	return count, nil
}

// TicketStore

func (f *fakeStore) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[ticketID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeStore) MarkSold(ctx context.Context, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[ticketID]
	if !ok {
		return status.ErrTicketNotFound
	}
	ticket.Sold = true
	return nil
}

// fakeTickets narrows fakeStore to the TicketStore interface; the chat Get
// and ticket Get signatures collide on one receiver otherwise.
type fakeTickets struct {
	store *fakeStore
}

func (f fakeTickets) Get(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return f.store.GetTicket(ctx, ticketID)
}

func (f fakeTickets) MarkSold(ctx context.Context, ticketID string) error {
	return f.store.MarkSold(ctx, ticketID)
}

// fakeUsers resolves participant summaries; missing ids behave like
// deleted accounts.
type fakeUsers map[string]*models.UserSummary

func (f fakeUsers) Summary(ctx context.Context, userID string) (*models.UserSummary, error) {
	return f[userID], nil
}

// fakeSeen is an in-memory SeenTracker.
type fakeSeen struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func newFakeSeen() *fakeSeen {
	return &fakeSeen{marks: make(map[string]time.Time)}
}

func (f *fakeSeen) key(chatID, userID string) string {
	return chatID + "/" + userID
}

func (f *fakeSeen) MarkSeen(ctx context.Context, chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks[f.key(chatID, userID)] = time.Now()
	return nil
}

func (f *fakeSeen) LastSeen(ctx context.Context, chatID, userID string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks[f.key(chatID, userID)], nil
}
