package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/pocketbase/core"

	"ticket-resale/models"
)

// UserStore resolves participant summaries from the auth collection.
type UserStore struct {
	app core.App
}

func NewUserStore(app core.App) *UserStore {
	return &UserStore{app: app}
}

// Summary returns a display summary for a user, or nil if the account is
// gone (deleted accounts keep their chats readable).
func (s *UserStore) Summary(ctx context.Context, userID string) (*models.UserSummary, error) {
	rec, err := s.app.FindRecordById("users", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &models.UserSummary{
		ID:   rec.Id,
		Name: rec.GetString("name"),
	}, nil
}
