package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

func setupMessageService(t *testing.T) (*MessageService, *fakeStore, string) {
	t.Helper()

	store := newFakeStore()
	store.addTicket(&models.Ticket{
		ID:       "ticket1",
		Title:    "Pit ticket",
		EventAt:  time.Now().Add(24 * time.Hour),
		Price:    testAsking,
		SellerID: testSeller,
	})

	chat, err := store.Create(context.Background(), "ticket1", testBuyer, testSeller)
	require.NoError(t, err)

	return NewMessageService(store, store), store, chat.ID
}

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	service, _, chatID := setupMessageService(t)

	msg, err := service.Append(context.Background(), chatID, testBuyer, models.MessageText, "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Created.IsZero())
}

func TestAppend_UnknownChat(t *testing.T) {
	service, _, _ := setupMessageService(t)

	_, err := service.Append(context.Background(), "missing", testBuyer, models.MessageText, "hello", nil)
	assert.ErrorIs(t, err, status.ErrChatNotFound)
}

func TestAppend_TypePriceMismatch(t *testing.T) {
	service, _, chatID := setupMessageService(t)
	ctx := context.Background()
	price := int64(500_000)

	// Offer types require a price, text forbids one.
	_, err := service.Append(ctx, chatID, testBuyer, models.MessageOffer, "Offered", nil)
	assert.Error(t, err)

	_, err = service.Append(ctx, chatID, testBuyer, models.MessageText, "hello", &price)
	assert.Error(t, err)

	_, err = service.Append(ctx, chatID, testBuyer, models.MessageOffer, "Offered", &price)
	assert.NoError(t, err)
}

func TestList_PreservesInsertionOrder(t *testing.T) {
	service, _, chatID := setupMessageService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := service.Append(ctx, chatID, testBuyer, models.MessageText, fmt.Sprintf("msg %d", i), nil)
		require.NoError(t, err)
	}

	msgs, err := service.List(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("msg %d", i), m.Content)
	}
}

func TestList_UnknownChat(t *testing.T) {
	service, _, _ := setupMessageService(t)

	_, err := service.List(context.Background(), "missing")
	assert.ErrorIs(t, err, status.ErrChatNotFound)
}

func TestListForUser_ParticipantsOnly(t *testing.T) {
	service, _, chatID := setupMessageService(t)
	ctx := context.Background()

	_, err := service.Append(ctx, chatID, testBuyer, models.MessageText, "hello", nil)
	require.NoError(t, err)

	msgs, err := service.ListForUser(ctx, chatID, testSeller)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = service.ListForUser(ctx, chatID, "stranger")
	assert.ErrorIs(t, err, status.ErrNotAuthorized)
}

func TestLastOffer_SkipsNonOffers(t *testing.T) {
	service, _, chatID := setupMessageService(t)
	ctx := context.Background()

	last, err := service.LastOffer(ctx, chatID)
	require.NoError(t, err)
	assert.Nil(t, last)

	price := int64(600_000)
	_, err = service.Append(ctx, chatID, testBuyer, models.MessageOffer, "Offered", &price)
	require.NoError(t, err)
	_, err = service.Append(ctx, chatID, testSeller, models.MessageText, "let me think", nil)
	require.NoError(t, err)

	last, err = service.LastOffer(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, models.MessageOffer, last.Type)
	assert.Equal(t, price, *last.OfferPrice)
}
