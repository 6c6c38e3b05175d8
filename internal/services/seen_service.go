package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenTTL = 90 * 24 * time.Hour

// SeenService keeps a last-seen-at mark per chat participant in a Redis
// hash (`chat:seen:<chatID>`, field = user id, value = unix seconds).
// Unread counts are derived from these marks; they are volatile by nature,
// so they live next to the other coordination state rather than in SQL.
type SeenService struct {
	Redis *redis.Client
}

func NewSeenService(redisClient *redis.Client) *SeenService {
	return &SeenService{Redis: redisClient}
}

func seenKey(chatID string) string {
	return fmt.Sprintf("chat:seen:%s", chatID)
}

func (s *SeenService) MarkSeen(ctx context.Context, chatID, userID string) error {
	key := seenKey(chatID)

	if err := s.Redis.HSet(ctx, key, userID, time.Now().Unix()).Err(); err != nil {
		return err
	}
	return s.Redis.Expire(ctx, key, seenTTL).Err()
}

// LastSeen returns when userID last viewed the chat. The zero time means
// never, so every counterparty message counts as unread.
func (s *SeenService) LastSeen(ctx context.Context, chatID, userID string) (time.Time, error) {
	val, err := s.Redis.HGet(ctx, seenKey(chatID), userID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}
