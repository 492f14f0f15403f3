package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/synk-web/synk/pkg/memory"
)

// GetProfile implements [memory.ProfileStore].
func (s *Store) GetProfile(ctx context.Context, userID string) (*memory.UserProfile, error) {
	const q = `SELECT data FROM user_profiles WHERE user_id = $1`

	var raw []byte
	if err := s.db.QueryRow(ctx, q, userID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, memory.Wrap("profile.get", err)
	}

	var p memory.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, memory.Wrap("profile.decode", err)
	}
	return &p, nil
}

// PutProfile implements [memory.ProfileStore].
func (s *Store) PutProfile(ctx context.Context, p *memory.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return memory.Wrap("profile.encode", err)
	}

	const q = `
		INSERT INTO user_profiles (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
		    data       = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, q, p.UserID, raw, p.UpdatedAt)
	return memory.Wrap("profile.put", err)
}
