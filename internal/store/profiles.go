package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/protocol-chat/notify-backend/internal/models"
)

// ProfileStore reads public user profiles from PostgreSQL.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get returns a user's profile, or (nil, nil) when no such user exists.
// The fan-out engine treats a missing profile as "do not deliver".
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, is_active FROM users WHERE id = $1
	`, userID).Scan(&p.ID, &p.Username, &p.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
