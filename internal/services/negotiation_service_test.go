package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

const (
	testBuyer  = "buyer1"
	testSeller = "seller1"
	testAsking = int64(1_000_000)
)

func setupNegotiation(t *testing.T) (*NegotiationService, *fakeStore, string) {
	t.Helper()

	store := newFakeStore()
	store.addTicket(&models.Ticket{
		ID:       "ticket1",
		Title:    "Standing block A",
		EventAt:  time.Now().Add(48 * time.Hour),
		Price:    testAsking,
		SellerID: testSeller,
	})

	chat, err := store.Create(context.Background(), "ticket1", testBuyer, testSeller)
	require.NoError(t, err)

	service := NewNegotiationService(
		store,
		NewMessageService(store, store),
		fakeTickets{store},
		NewChatMutex(nil, time.Second),
		nil,
	)
	return service, store, chat.ID
}

func TestMakeOffer_Success(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	msg, err := service.MakeOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)
	assert.Equal(t, models.MessageOffer, msg.Type)
	require.NotNil(t, msg.OfferPrice)
	assert.Equal(t, int64(750_000), *msg.OfferPrice)
	assert.NotEmpty(t, msg.ID)

	chat, err := store.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatActive, chat.Status)
	assert.Nil(t, chat.FinalPrice)
}

func TestMakeOffer_OnlyBuyer(t *testing.T) {
	service, _, chatID := setupNegotiation(t)

	_, err := service.MakeOffer(context.Background(), chatID, testSeller, 750_000)
	assert.ErrorIs(t, err, status.ErrNotAuthorized)
}

func TestMakeOffer_Outsider(t *testing.T) {
	service, _, chatID := setupNegotiation(t)

	_, err := service.MakeOffer(context.Background(), chatID, "stranger", 750_000)
	assert.ErrorIs(t, err, status.ErrNotAuthorized)
}

func TestMakeOffer_UnknownChat(t *testing.T) {
	service, _, _ := setupNegotiation(t)

	_, err := service.MakeOffer(context.Background(), "missing", testBuyer, 750_000)
	assert.ErrorIs(t, err, status.ErrChatNotFound)
}

func TestMakeOffer_PriceBounds(t *testing.T) {
	tests := []struct {
		name   string
		price  int64
		reason status.OfferReason
	}{
		{"zero", 0, status.OfferNonPositive},
		{"negative", -500, status.OfferNonPositive},
		{"equal to asking", testAsking, status.OfferTooHigh},
		{"above asking", testAsking + 1, status.OfferTooHigh},
		{"below 10% of asking", testAsking/10 - 1, status.OfferTooLow},
		{"exactly 10% of asking", testAsking / 10, ""},
		{"just below asking", testAsking - 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, chatID := setupNegotiation(t)

			_, err := service.MakeOffer(context.Background(), chatID, testBuyer, tt.price)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, status.ErrInvalidOffer)
			var offerErr *status.InvalidOfferError
			require.ErrorAs(t, err, &offerErr)
			assert.Equal(t, tt.reason, offerErr.Reason)
		})
	}
}

func TestMakeOffer_InvalidPriceLeavesLogUntouched(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, testAsking*2)
	require.Error(t, err)

	msgs, err := store.List(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCounterOffer_Alternates(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 650_000)
	require.NoError(t, err)

	counter, err := service.CounterOffer(ctx, chatID, testSeller, 900_000)
	require.NoError(t, err)
	assert.Equal(t, models.MessageCounterOffer, counter.Type)
	assert.Equal(t, int64(900_000), *counter.OfferPrice)

	// The buyer may counter the seller's counter.
	_, err = service.CounterOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)

	// But not twice in a row.
	_, err = service.CounterOffer(ctx, chatID, testBuyer, 800_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestCounterOffer_RequiresStandingOffer(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.CounterOffer(ctx, chatID, testSeller, 900_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	// Plain text does not put an offer on the table.
	_, err = service.SendText(ctx, chatID, testBuyer, "would you take less?")
	require.NoError(t, err)
	_, err = service.CounterOffer(ctx, chatID, testSeller, 900_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestCounterOffer_BoundsAgainstAskingPrice(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 650_000)
	require.NoError(t, err)

	// Bounds are checked against the original asking price, not the prior
	// offer, so a seller counter above the last offer is fine while one at
	// or above asking is not.
	_, err = service.CounterOffer(ctx, chatID, testSeller, testAsking)
	assert.ErrorIs(t, err, status.ErrInvalidOffer)

	_, err = service.CounterOffer(ctx, chatID, testSeller, 999_999)
	assert.NoError(t, err)
}

func TestAcceptOffer_RecordsFinalPrice(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)

	msg, err := service.AcceptOffer(ctx, chatID, testSeller, 750_000)
	require.NoError(t, err)
	assert.Equal(t, models.MessageAccept, msg.Type)
	assert.Equal(t, int64(750_000), *msg.OfferPrice)

	chat, err := store.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatAccepted, chat.Status)
	require.NotNil(t, chat.FinalPrice)
	assert.Equal(t, int64(750_000), *chat.FinalPrice)
}

func TestAcceptOffer_OwnOffer(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)

	_, err = service.AcceptOffer(ctx, chatID, testBuyer, 750_000)
	assert.ErrorIs(t, err, status.ErrNotAuthorized)
}

func TestAcceptOffer_NoStandingOffer(t *testing.T) {
	service, _, chatID := setupNegotiation(t)

	_, err := service.AcceptOffer(context.Background(), chatID, testSeller, 750_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestAcceptOffer_FreezesNegotiation(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)
	_, err = service.AcceptOffer(ctx, chatID, testSeller, 750_000)
	require.NoError(t, err)

	_, err = service.MakeOffer(ctx, chatID, testBuyer, 800_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	_, err = service.CounterOffer(ctx, chatID, testSeller, 800_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	_, err = service.AcceptOffer(ctx, chatID, testSeller, 750_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	_, err = service.RejectOffer(ctx, chatID, testSeller)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	// Text stays open so the parties can arrange the handover.
	_, err = service.SendText(ctx, chatID, testBuyer, "paying now")
	assert.NoError(t, err)
}

func TestRejectOffer_KeepsChatOpen(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 500_000)
	require.NoError(t, err)

	msg, err := service.RejectOffer(ctx, chatID, testSeller)
	require.NoError(t, err)
	assert.Equal(t, models.MessageReject, msg.Type)
	require.NotNil(t, msg.OfferPrice)
	assert.Equal(t, int64(500_000), *msg.OfferPrice)

	chat, err := store.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatActive, chat.Status)

	// The buyer can come back with a better number.
	_, err = service.MakeOffer(ctx, chatID, testBuyer, 600_000)
	assert.NoError(t, err)
}

func TestRejectOffer_OwnOffer(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 500_000)
	require.NoError(t, err)

	_, err = service.RejectOffer(ctx, chatID, testBuyer)
	assert.ErrorIs(t, err, status.ErrNotAuthorized)
}

func TestRejectOffer_NoStandingOffer(t *testing.T) {
	service, _, chatID := setupNegotiation(t)

	_, err := service.RejectOffer(context.Background(), chatID, testSeller)
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestSendText(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	msg, err := service.SendText(ctx, chatID, testBuyer, "still available?")
	require.NoError(t, err)
	assert.Equal(t, models.MessageText, msg.Type)
	assert.Nil(t, msg.OfferPrice)

	_, err = service.SendText(ctx, chatID, "stranger", "hi")
	assert.ErrorIs(t, err, status.ErrNotAuthorized)

	// Completed chats are read-only.
	store.mu.Lock()
	store.chats[chatID].Status = models.ChatCompleted
	store.mu.Unlock()

	_, err = service.SendText(ctx, chatID, testBuyer, "one more thing")
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestFullNegotiationRound(t *testing.T) {
	// Asking 750k, buyer opens at 650k, seller counters 700k, buyer takes it.
	store := newFakeStore()
	store.addTicket(&models.Ticket{
		ID:       "ticket1",
		Title:    "Row 12 aisle seat",
		EventAt:  time.Now().Add(48 * time.Hour),
		Price:    750_000,
		SellerID: testSeller,
	})
	ctx := context.Background()
	chat, err := store.Create(ctx, "ticket1", testBuyer, testSeller)
	require.NoError(t, err)
	chatID := chat.ID

	service := NewNegotiationService(
		store,
		NewMessageService(store, store),
		fakeTickets{store},
		NewChatMutex(nil, time.Second),
		nil,
	)

	_, err = service.SendText(ctx, chatID, testBuyer, "is the seat together with row 12?")
	require.NoError(t, err)

	_, err = service.MakeOffer(ctx, chatID, testBuyer, 650_000)
	require.NoError(t, err)

	_, err = service.CounterOffer(ctx, chatID, testSeller, 700_000)
	require.NoError(t, err)

	_, err = service.AcceptOffer(ctx, chatID, testBuyer, 700_000)
	require.NoError(t, err)

	updated, err := store.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatAccepted, updated.Status)
	assert.Equal(t, int64(700_000), *updated.FinalPrice)

	// Negotiation is frozen at this point.
	_, err = service.MakeOffer(ctx, chatID, testBuyer, 600_000)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	msgs, err := store.List(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	wantTypes := []models.MessageType{
		models.MessageText,
		models.MessageOffer,
		models.MessageCounterOffer,
		models.MessageAccept,
	}
	for i, want := range wantTypes {
		assert.Equal(t, want, msgs[i].Type, "message %d", i)
	}
}

func TestConcurrentAccepts_OneWinner(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.AcceptOffer(ctx, chatID, testSeller, 750_000)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, status.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, wins)

	chat, err := store.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatAccepted, chat.Status)

	// Exactly one accept made it into the log.
	msgs, err := store.List(ctx, chatID)
	require.NoError(t, err)
	accepts := 0
	for _, m := range msgs {
		if m.Type == models.MessageAccept {
			accepts++
		}
	}
	assert.Equal(t, 1, accepts)
}

func TestConcurrentAcceptAndReject(t *testing.T) {
	service, store, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 750_000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var acceptErr, rejectErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = service.AcceptOffer(ctx, chatID, testSeller, 750_000)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = service.RejectOffer(ctx, chatID, testSeller)
	}()
	wg.Wait()

	// A reject that loses the race against the accept fails cleanly; it can
	// never land after the chat has left active.
	if rejectErr != nil {
		assert.ErrorIs(t, rejectErr, status.ErrInvalidState)
	}
	require.NoError(t, acceptErr)

	chat, err := store.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatAccepted, chat.Status)
	assert.Equal(t, int64(750_000), *chat.FinalPrice)
}

func TestRejectRecordsRejectedPrice(t *testing.T) {
	service, _, chatID := setupNegotiation(t)
	ctx := context.Background()

	_, err := service.MakeOffer(ctx, chatID, testBuyer, 400_000)
	require.NoError(t, err)
	_, err = service.CounterOffer(ctx, chatID, testSeller, 850_000)
	require.NoError(t, err)

	// The buyer rejects the seller's counter; the reject carries the
	// counter's price, not the original offer's.
	msg, err := service.RejectOffer(ctx, chatID, testBuyer)
	require.NoError(t, err)
	require.NotNil(t, msg.OfferPrice)
	assert.Equal(t, int64(850_000), *msg.OfferPrice)
}

func TestValidateOfferPriceUnwraps(t *testing.T) {
	err := validateOfferPrice(0, testAsking)
	assert.True(t, errors.Is(err, status.ErrInvalidOffer))
}
