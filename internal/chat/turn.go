package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/profile"
	"github.com/synk-web/synk/internal/reaction"
	"github.com/synk-web/synk/internal/relationship"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/internal/story"
	"github.com/synk-web/synk/pkg/memory"
)

// TurnRequest is one user message at a location.
type TurnRequest struct {
	UserID     string `json:"user_id"`
	LocationID string `json:"location_id"`
	Message    string `json:"message"`
	// SessionID continues an existing session. A new session is started
	// when it is empty or unknown.
	SessionID string `json:"session_id,omitempty"`
}

// CharacterRef names a character present at the location.
type CharacterRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// TurnResponse is the outcome of one turn.
type TurnResponse struct {
	TurnID           string                  `json:"turn_id"`
	SessionID        string                  `json:"session_id"`
	Location         string                  `json:"location"`
	AllCharacters    []CharacterRef          `json:"all_characters"`
	ConversationTurn int                     `json:"conversation_turn"`
	ReactionScope    reaction.Scope          `json:"reaction_scope"`
	MainResponses    []reaction.MainResponse `json:"main_responses"`
	SubReactions     []reaction.SubReaction  `json:"sub_reactions"`
	NoReaction       []reaction.Silent       `json:"no_reaction"`
	// StorySummary is this turn's story point, empty when nobody spoke.
	StorySummary string       `json:"story_summary,omitempty"`
	Scene        *scene.Scene `json:"scene_context"`
}

// eventActions maps main response kinds onto scene event action types.
var eventActions = map[string]string{
	reaction.KindMain:         "speak",
	reaction.KindTikiTaka:     "tikitaka",
	reaction.KindInterjection: "interject",
}

// Turn runs one user turn. It fails only for invalid input, an unknown or
// empty location, or a cancelled ctx; generation and storage problems
// degrade the result instead.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	start := s.now()
	ctx, span := observe.StartSpan(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.String("user_id", req.UserID),
			attribute.String("location_id", req.LocationID),
			attribute.String("session_id", req.SessionID),
		))
	defer span.End()

	resp, err := s.turn(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case errors.Is(err, character.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.RecordTurn(ctx, outcome, s.now().Sub(start).Seconds())
	return resp, err
}

func (s *Service) turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.LocationID == "" || req.Message == "" {
		return nil, fmt.Errorf("%w: user_id, location_id and message are required", ErrValidation)
	}

	loc, err := s.chars.Location(ctx, req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	roster, err := s.chars.ByLocation(ctx, req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("chat: roster of %s: %w", req.LocationID, err)
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("chat: no characters at %s: %w", req.LocationID, character.ErrNotFound)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = scene.NewSessionID(req.UserID, req.LocationID)
	}
	turnID := uuid.NewString()
	ctx = observe.WithLogAttrs(ctx, "session_id", sessionID, "turn_id", turnID, "user_id", req.UserID)
	log := observe.Logger(ctx)

	sess, release, err := s.sessions.Acquire(ctx, sessionID, func() (*scene.Session, error) {
		return &scene.Session{Scene: scene.New(sessionID, loc.Name, roster, s.now())}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	defer release()

	sc := sess.Scene
	if sc.Location != loc.Name {
		return nil, fmt.Errorf("%w: session %s belongs to %q, not %q", ErrValidation, sessionID, sc.Location, loc.Name)
	}

	names := make([]string, len(roster))
	for i, c := range roster {
		names[i] = c.Name
	}
	prof := s.profiles.Update(ctx, req.UserID, req.Message, profile.Scene{Location: loc.Name, Characters: names}).Value()

	for i := range roster {
		sc.Join(&roster[i])
	}
	history := append(scene.History(nil), sess.History.Tail(s.historyWindow)...)

	storyCtx, err := s.stories.Context(ctx, sessionID)
	if err != nil {
		log.Warn("chat: story context unavailable", "err", err)
	}
	rels, err := s.prefetch(ctx, req.UserID, roster)
	if err != nil {
		return nil, err
	}

	// The resolver reads the recent flags of the previous turn, so the
	// scene is reset only after resolution.
	res, err := s.engine.Resolve(ctx, reaction.Request{
		TurnID:         turnID,
		UserID:         req.UserID,
		UserMessage:    req.Message,
		Location:       loc.Name,
		Roster:         roster,
		Scene:          sc,
		History:        history,
		Relationships:  rels,
		StoryContext:   storyCtx,
		ProfileContext: profile.PromptContext(prof),
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	now := s.now()
	sess.Append(scene.SpeakerUser, "", req.Message, now)
	sc.BeginTurn(now)
	for _, m := range res.Main {
		sc.CommitMain(scene.MainCommit{
			TurnID:      turnID,
			CharacterID: m.CharacterID,
			Target:      m.Target,
			TargetName:  m.TargetName,
			ActionType:  eventActions[m.Kind],
			Response:    m.Message,
			Thought:     m.Thought,
			Mood:        moodOf(rels[m.CharacterID]),
			Now:         now,
		})
		sess.Append(m.CharacterID, m.CharacterName, m.Message, now)
	}

	var summary string
	if len(res.Main) > 0 {
		sum := s.stories.Summarize(ctx, storyInput(sessionID, turnID, req, loc.Name, sc, res)).Value()
		summary = strings.Join(strings.Fields(sum.Summary), " ")
		sc.AddStoryPoint(summary)
	}

	for _, sub := range res.Sub {
		sc.CommitObserver(sub.CharacterID, sub.Thought)
	}
	for _, silent := range res.Silent {
		sc.CommitSilent(silent.CharacterID, silent.Thought)
	}

	switch relationship.DetectEmotion(req.Message) {
	case relationship.Anger:
		sc.AdjustTension(1)
	case relationship.Joy:
		sc.AdjustTension(-1)
	}

	s.commitRelationships(ctx, req, turnID, res.Main)

	refs := make([]CharacterRef, len(roster))
	for i, c := range roster {
		refs[i] = CharacterRef{ID: c.ID, Name: c.Name, Location: loc.Name}
	}
	log.Info("chat: turn resolved",
		"scope", res.Scope, "main", len(res.Main), "sub", len(res.Sub), "silent", len(res.Silent))

	return &TurnResponse{
		TurnID:           turnID,
		SessionID:        sessionID,
		Location:         loc.Name,
		AllCharacters:    refs,
		ConversationTurn: len(sess.History),
		ReactionScope:    res.Scope,
		MainResponses:    res.Main,
		SubReactions:     res.Sub,
		NoReaction:       res.Silent,
		StorySummary:     summary,
		Scene:            sc.Clone(),
	}, nil
}

// prefetch reads the user's relationship with every character in
// parallel. A failed read leaves the character out; only cancellation
// fails the turn.
func (s *Service) prefetch(ctx context.Context, userID string, roster []character.Character) (map[string]*memory.RelationshipData, error) {
	out := make([]*memory.RelationshipData, len(roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.prefetchLimit)
	for i := range roster {
		c := &roster[i]
		g.Go(func() error {
			rel, err := s.rels.GetOrNew(gctx, userID, c)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				observe.Logger(gctx).Warn("chat: relationship prefetch failed", "character_id", c.ID, "err", err)
				return nil
			}
			out[i] = rel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("chat: prefetch relationships: %w", err)
	}

	rels := make(map[string]*memory.RelationshipData, len(roster))
	for i, rel := range out {
		if rel != nil {
			rels[roster[i].ID] = rel
		}
	}
	return rels, nil
}

// commitRelationships applies the turn to the relationship of every main
// responder. Each key is independent, so they run in parallel; failures
// are logged and leave that relationship as it was.
func (s *Service) commitRelationships(ctx context.Context, req TurnRequest, turnID string, mains []reaction.MainResponse) {
	var g errgroup.Group
	g.SetLimit(s.prefetchLimit)
	for _, m := range mains {
		g.Go(func() error {
			_, err := s.rels.ProcessTurn(ctx, req.UserID, m.CharacterID, relationship.Turn{
				TurnID:            turnID,
				UserMessage:       req.Message,
				CharacterResponse: m.Message,
			}, relationship.NoReaction)
			if err != nil {
				observe.Logger(ctx).Warn("chat: relationship update failed", "character_id", m.CharacterID, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// moodOf derives a main responder's mood from the relationship as it stood
// before the turn.
func moodOf(rel *memory.RelationshipData) string {
	if rel != nil && rel.EmotionalStats.JoyPeaks > rel.EmotionalStats.AngerPeaks {
		return "happy"
	}
	return "neutral"
}

func storyInput(sessionID, turnID string, req TurnRequest, location string, sc *scene.Scene, res *reaction.Result) story.Input {
	in := story.Input{
		SessionID:   sessionID,
		UserID:      req.UserID,
		Location:    location,
		TurnID:      turnID,
		TurnNumber:  sc.TotalTurns,
		UserMessage: req.Message,
		States:      make(map[string]memory.SummaryState, len(sc.Roster)),
		Order:       append([]string(nil), sc.Roster...),
	}
	for _, m := range res.Main {
		in.Responses = append(in.Responses, memory.SummaryResponse{
			CharacterID:   m.CharacterID,
			CharacterName: m.CharacterName,
			Action:        m.Action,
			Message:       m.Message,
			InnerThought:  m.Thought.Text(),
		})
	}
	for _, id := range sc.Roster {
		st := sc.States[id]
		in.States[id] = memory.SummaryState{
			CharacterName: st.CharacterName,
			Recent:        st.Recent,
			Attention:     string(st.Attention),
			CurrentMood:   st.Mood,
			InnerThought:  st.InnerThought.Text(),
		}
	}
	return in
}
