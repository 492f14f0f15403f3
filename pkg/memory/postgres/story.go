package postgres

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/synk-web/synk/pkg/memory"
)

// AppendSummary implements [memory.StorySummaryStore].
func (s *Store) AppendSummary(ctx context.Context, sum memory.StorySummary) error {
	responses := sum.CharacterResponses
	if responses == nil {
		responses = []memory.SummaryResponse{}
	}
	states := sum.CharacterStates
	if states == nil {
		states = map[string]memory.SummaryState{}
	}
	respJSON, err := json.Marshal(responses)
	if err != nil {
		return memory.Wrap("summary.encode", err)
	}
	statesJSON, err := json.Marshal(states)
	if err != nil {
		return memory.Wrap("summary.encode", err)
	}

	const q = `
		INSERT INTO story_summaries
		    (id, session_id, user_id, location, turn_number, turn_id, user_message,
		     character_responses, character_states, ai_summary, ai_analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.db.Exec(ctx, q,
		sum.ID, sum.SessionID, sum.UserID, sum.Location, sum.TurnNumber, sum.TurnID, sum.UserMessage,
		respJSON, statesJSON, sum.Summary, sum.Analysis, sum.CreatedAt,
	)
	return memory.Wrap("summary.append", err)
}

// RecentSummaries implements [memory.StorySummaryStore].
func (s *Store) RecentSummaries(ctx context.Context, sessionID string, limit int) ([]memory.StorySummary, error) {
	if limit <= 0 {
		return nil, nil
	}

	const q = `
		SELECT id, session_id, user_id, location, turn_number, turn_id, user_message,
		       character_responses, character_states, ai_summary, ai_analysis, created_at
		FROM   story_summaries
		WHERE  session_id = $1
		ORDER  BY turn_number DESC, created_at DESC
		LIMIT  $2`

	rows, err := s.db.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, memory.Wrap("summary.recent", err)
	}
	out, err := collectSummaries(rows)
	if err != nil {
		return nil, memory.Wrap("summary.recent", err)
	}
	slices.Reverse(out)
	return out, nil
}

func collectSummaries(rows pgx.Rows) ([]memory.StorySummary, error) {
	defer rows.Close()

	var out []memory.StorySummary
	for rows.Next() {
		var (
			sum                  memory.StorySummary
			respJSON, statesJSON []byte
		)
		if err := rows.Scan(
			&sum.ID, &sum.SessionID, &sum.UserID, &sum.Location, &sum.TurnNumber, &sum.TurnID, &sum.UserMessage,
			&respJSON, &statesJSON, &sum.Summary, &sum.Analysis, &sum.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(respJSON, &sum.CharacterResponses); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(statesJSON, &sum.CharacterStates); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
