package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/relationship"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/pkg/memory"
)

// ReactionRequest is an emoji reaction on one character reply.
type ReactionRequest struct {
	UserID            string `json:"user_id"`
	CharacterID       string `json:"character_id"`
	TurnID            string `json:"turn_id"`
	Emoji             string `json:"emoji"`
	UserMessage       string `json:"user_message,omitempty"`
	CharacterResponse string `json:"character_response,omitempty"`
}

// ReactionResponse carries the relationship after the reaction.
type ReactionResponse struct {
	Success      bool                     `json:"success"`
	Message      string                   `json:"message"`
	Relationship *memory.RelationshipData `json:"updated_relationship"`
	// Stale is set when the update could not be stored; Relationship is
	// then the snapshot from before the reaction.
	Stale bool `json:"stale,omitempty"`
}

// React applies an emoji reaction. An unknown emoji is rejected with
// [ErrValidation] before anything is read.
func (s *Service) React(ctx context.Context, req ReactionRequest) (*ReactionResponse, error) {
	if req.UserID == "" || req.CharacterID == "" {
		return nil, fmt.Errorf("%w: user_id and character_id are required", ErrValidation)
	}
	r, err := relationship.ParseReaction(req.Emoji)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	c, err := s.chars.Character(ctx, req.CharacterID)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	rel, err := s.rels.ProcessTurn(ctx, req.UserID, c.ID, relationship.Turn{
		TurnID:            req.TurnID,
		UserMessage:       req.UserMessage,
		CharacterResponse: req.CharacterResponse,
	}, r)
	stale := errors.Is(err, memory.ErrPersistence) && rel != nil
	if err != nil && !stale {
		return nil, fmt.Errorf("chat: react: %w", err)
	}
	return &ReactionResponse{
		Success:      true,
		Message:      r.Confirmation(c.Name),
		Relationship: rel,
		Stale:        stale,
	}, nil
}

// Relationship returns the stored relationship between a user and a
// character. It never creates one.
func (s *Service) Relationship(ctx context.Context, userID, characterID string) (*memory.RelationshipData, error) {
	rel, err := s.rels.Get(ctx, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("chat: relationship: %w", err)
	}
	if rel == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrRelationshipNotFound, userID, characterID)
	}
	return rel, nil
}

// History returns a copy of a session's conversation.
func (s *Service) History(ctx context.Context, sessionID string) (scene.History, error) {
	_, h, ok, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return h, nil
}

// Scene returns a copy of a session's scene.
func (s *Service) Scene(ctx context.Context, sessionID string) (*scene.Scene, error) {
	sc, _, ok, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sc, nil
}

// Characters returns a location and its roster.
func (s *Service) Characters(ctx context.Context, locationID string) (*character.Location, []character.Character, error) {
	loc, err := s.chars.Location(ctx, locationID)
	if err != nil {
		return nil, nil, fmt.Errorf("chat: %w", err)
	}
	roster, err := s.chars.ByLocation(ctx, locationID)
	if err != nil {
		return nil, nil, fmt.Errorf("chat: roster of %s: %w", locationID, err)
	}
	return loc, roster, nil
}
