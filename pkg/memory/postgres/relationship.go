package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/synk-web/synk/pkg/memory"
)

// GetRelationship implements [memory.RelationshipStore].
func (s *Store) GetRelationship(ctx context.Context, userID, characterID string) (*memory.RelationshipData, error) {
	const q = `SELECT data FROM relationships WHERE user_id = $1 AND character_id = $2`

	var raw []byte
	err := s.db.QueryRow(ctx, q, userID, characterID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, memory.Wrap("relationship.get", err)
	}

	var rel memory.RelationshipData
	if err := json.Unmarshal(raw, &rel); err != nil {
		return nil, memory.Wrap("relationship.decode", err)
	}
	return &rel, nil
}

// PutRelationship implements [memory.RelationshipStore].
func (s *Store) PutRelationship(ctx context.Context, rel *memory.RelationshipData) error {
	raw, err := json.Marshal(rel)
	if err != nil {
		return memory.Wrap("relationship.encode", err)
	}

	const q = `
		INSERT INTO relationships
		    (user_id, character_id, intimacy, dominance_score, total_turns, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, character_id) DO UPDATE SET
		    intimacy        = EXCLUDED.intimacy,
		    dominance_score = EXCLUDED.dominance_score,
		    total_turns     = EXCLUDED.total_turns,
		    data            = EXCLUDED.data,
		    updated_at      = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, q,
		rel.UserID, rel.CharacterID,
		rel.Intimacy, rel.Dominance.Score, rel.TotalTurns,
		raw, rel.CreatedAt, rel.UpdatedAt,
	)
	return memory.Wrap("relationship.put", err)
}
