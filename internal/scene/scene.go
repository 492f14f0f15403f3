// Package scene holds the shared per-session state of a location: who is
// present, who spoke last, what each character is paying attention to and
// the running story of the conversation.
//
// A [Scene] is plain data mutated by the rule methods in rules.go. Sessions
// live in a [Manager], which bounds their number, expires idle ones and
// serialises turns per session.
package scene

import (
	"fmt"
	"strings"
	"time"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/thought"
)

// Attention is where a character's focus currently lies.
type Attention string

const (
	AttentionUser      Attention = "user"
	AttentionCharacter Attention = "character"
	// AttentionNone marks a disengaged character (asleep, absorbed in
	// something else). It is never replaced by AttentionObserving.
	AttentionNone      Attention = "none"
	AttentionObserving Attention = "observing"
)

// Bounds on the scene's rolling logs.
const (
	MaxRecentEvents = 10
	MaxStoryArc     = 20

	DefaultTension    = 5
	DefaultAtmosphere = "neutral"

	// UserTarget is the target id for replies addressed to the user.
	UserTarget = "user"

	initialThought = "새로운 사람이 왔군..."
)

// CharacterState is one character's place in the scene.
type CharacterState struct {
	CharacterID   string `json:"character_id"`
	CharacterName string `json:"character_name"`

	// Recent is true only for characters that gave a main response in the
	// last resolved turn.
	Recent      bool       `json:"recent"`
	LastSpokeAt *time.Time `json:"last_spoke_at,omitempty"`
	TurnCount   int        `json:"turn_count"`

	Attention       Attention `json:"attention"`
	AttentionTarget string    `json:"attention_target,omitempty"`

	Mood          string `json:"current_mood"`
	MoodIntensity int    `json:"mood_intensity"`
	Posture       string `json:"current_posture"`
	LastAction    string `json:"last_action,omitempty"`

	InnerThought *thought.Record `json:"inner_thought,omitempty"`
}

func (s *CharacterState) clone() *CharacterState {
	c := *s
	if s.LastSpokeAt != nil {
		t := *s.LastSpokeAt
		c.LastSpokeAt = &t
	}
	c.InnerThought = s.InnerThought.Clone()
	return &c
}

// RecentEvent is one main response in the scene's event log.
type RecentEvent struct {
	TurnID      string    `json:"turn_id"`
	SpeakerID   string    `json:"speaker_id"`
	SpeakerName string    `json:"speaker_name"`
	Target      string    `json:"target"`
	TargetName  string    `json:"target_name"`
	ActionType  string    `json:"action_type"`
	Summary     string    `json:"summary"`
	Timestamp   time.Time `json:"timestamp"`
}

// Scene is the shared context of one session.
type Scene struct {
	SessionID string `json:"session_id"`
	Location  string `json:"location"`

	StoryArc     []string      `json:"story_arc"`
	RecentEvents []RecentEvent `json:"recent_events"`

	// Roster is the character ids in the order they were placed in the
	// scene. States has one entry per roster id.
	Roster []string                   `json:"roster"`
	States map[string]*CharacterState `json:"character_states"`

	CurrentFocus    string `json:"current_focus"`
	LastSpeakerID   string `json:"last_speaker_id,omitempty"`
	LastSpeakerName string `json:"last_speaker_name,omitempty"`
	LastTarget      string `json:"last_target,omitempty"`

	Tension    int    `json:"tension_level"`
	Atmosphere string `json:"atmosphere"`

	// TotalTurns counts user turns resolved in this scene.
	TotalTurns int       `json:"total_turns"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New places roster in a fresh scene. Every character starts observing,
// in their default mood and posture.
func New(sessionID, location string, roster []character.Character, now time.Time) *Scene {
	s := &Scene{
		SessionID:  sessionID,
		Location:   location,
		States:     make(map[string]*CharacterState, len(roster)),
		Tension:    DefaultTension,
		Atmosphere: DefaultAtmosphere,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i := range roster {
		s.Join(&roster[i])
	}
	return s
}

// Join adds c to the scene if it is not already present.
func (s *Scene) Join(c *character.Character) {
	if _, ok := s.States[c.ID]; ok {
		return
	}
	s.Roster = append(s.Roster, c.ID)
	s.States[c.ID] = &CharacterState{
		CharacterID:   c.ID,
		CharacterName: c.Name,
		Attention:     AttentionObserving,
		Mood:          c.Mood(),
		MoodIntensity: 5,
		Posture:       c.Posture(),
		InnerThought:  thought.Plain(initialThought),
	}
}

// State returns the state of the character with id, or nil.
func (s *Scene) State(id string) *CharacterState {
	if s == nil {
		return nil
	}
	return s.States[id]
}

// IsRecent reports whether id gave a main response last turn. Nil-safe.
func (s *Scene) IsRecent(id string) bool {
	st := s.State(id)
	return st != nil && st.Recent
}

// AttentionOf returns id's attention, or "" when id is not in the scene.
func (s *Scene) AttentionOf(id string) Attention {
	if st := s.State(id); st != nil {
		return st.Attention
	}
	return ""
}

// RecentSpeakers returns the ids flagged recent, in roster order.
func (s *Scene) RecentSpeakers() []string {
	var out []string
	for _, id := range s.Roster {
		if s.States[id].Recent {
			out = append(out, id)
		}
	}
	return out
}

// WatchingUser returns the ids whose attention is on the user.
func (s *Scene) WatchingUser() []string {
	var out []string
	for _, id := range s.Roster {
		if s.States[id].Attention == AttentionUser {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := *s
	c.StoryArc = append([]string(nil), s.StoryArc...)
	c.RecentEvents = append([]RecentEvent(nil), s.RecentEvents...)
	c.Roster = append([]string(nil), s.Roster...)
	c.States = make(map[string]*CharacterState, len(s.States))
	for id, st := range s.States {
		c.States[id] = st.clone()
	}
	return &c
}

// Summary is the condensed view used by inner-thought prompts.
func (s *Scene) Summary() *thought.SceneSummary {
	if s == nil {
		return nil
	}
	sum := &thought.SceneSummary{Location: s.Location, Atmosphere: s.Atmosphere, Tension: s.Tension}
	for _, e := range s.RecentEvents {
		sum.RecentEvents = append(sum.RecentEvents, e.Summary)
	}
	return sum
}

// ── Prompt rendering ─────────────────────────────────────────────────────────

var attentionLabels = map[Attention]string{
	AttentionUser:      "유저 주시 중",
	AttentionNone:      "관심 없음",
	AttentionObserving: "상황 관찰 중",
}

// PromptContext renders the state of one character.
func (st *CharacterState) PromptContext() string {
	status := "○ 대화 안함"
	if st.Recent {
		status = "● 최근 대화함"
	}
	attention, ok := attentionLabels[st.Attention]
	if st.Attention == AttentionCharacter {
		attention, ok = st.AttentionTarget+" 주시 중", true
	}
	if !ok {
		attention = "알 수 없음"
	}
	return fmt.Sprintf("[%s] %s\n- 시선: %s\n- 기분: %s (강도: %d/10)\n- 마지막 행동: %s\n- 속마음: %q\n",
		st.CharacterName, status, attention, st.Mood, st.MoodIntensity, st.LastAction, st.InnerThought.Text())
}

// PromptContext renders the whole scene for a generation prompt: place and
// mood, the last five story points and events, and every character's state.
func (s *Scene) PromptContext() string {
	const rule = "─────────────────────────────────────"
	var b strings.Builder

	b.WriteString("[씬 컨텍스트]\n\n")
	fmt.Fprintf(&b, "📍 장소: %s\n", s.Location)
	fmt.Fprintf(&b, "🎭 분위기: %s (긴장도: %d/10)\n", s.Atmosphere, s.Tension)
	fmt.Fprintf(&b, "🎯 현재 대화: %s\n", orNone(s.CurrentFocus))
	fmt.Fprintf(&b, "💬 마지막 화자: %s\n", orNone(s.LastSpeakerName))

	fmt.Fprintf(&b, "\n%s\n📖 스토리 흐름\n%s\n", rule, rule)
	if len(s.StoryArc) == 0 {
		b.WriteString("없음\n")
	}
	for _, p := range tail(s.StoryArc, 5) {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	fmt.Fprintf(&b, "\n%s\n⏰ 최근 대화\n%s\n", rule, rule)
	if len(s.RecentEvents) == 0 {
		b.WriteString("없음\n")
	}
	for _, e := range tail(s.RecentEvents, 5) {
		fmt.Fprintf(&b, "- %s → %s: %s\n", e.SpeakerName, e.TargetName, e.Summary)
	}

	fmt.Fprintf(&b, "\n%s\n👥 캐릭터 상태\n%s\n", rule, rule)
	if len(s.Roster) == 0 {
		b.WriteString("없음\n")
	}
	for _, id := range s.Roster {
		b.WriteString(s.States[id].PromptContext())
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "없음"
	}
	return s
}

func tail[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
