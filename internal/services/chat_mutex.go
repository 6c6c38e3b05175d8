package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-resale/internal/status"
)

// ChatMutex serializes negotiation actions on a single chat with a
// short-lived Redis lock, the same SETNX+TTL scheme used for seat locks.
// The conditional status update in the store stays the source of truth;
// the mutex just keeps read-validate-append sequences from interleaving.
type ChatMutex struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewChatMutex(redisClient *redis.Client, ttl time.Duration) *ChatMutex {
	return &ChatMutex{Redis: redisClient, TTL: ttl}
}

// Acquire takes the per-chat lock and returns its release func. Fails with
// status.ErrChatBusy when another action holds the lock.
func (m *ChatMutex) Acquire(ctx context.Context, chatID string) (func(), error) {
	if m == nil || m.Redis == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("chat:lock:%s", chatID)

	ok, err := m.Redis.SetNX(ctx, key, time.Now().Unix(), m.TTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.ErrChatBusy
	}

	return func() {
		if err := m.Redis.Del(context.Background(), key).Err(); err != nil {
			slog.Error("failed to release chat lock", "chat_id", chatID, "error", err)
		}
	}, nil
}
