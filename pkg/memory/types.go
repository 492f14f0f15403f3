package memory

import (
	"slices"
	"time"
)

// Bounds on the relationship and profile collections. When a collection
// grows past its bound the oldest entries are dropped first, except trigger
// keywords, which drop the least confident.
const (
	MaxDominanceHistory = 50
	MaxCoreMemories     = 10
	MaxTriggerKeywords  = 20
	MaxTraits           = 10
	MaxFacts            = 30
	MaxActions          = 50
	MaxImpressionEvents = 10
)

// ─────────────────────────────────────────────────────────────────────────────
// Relationship
// ─────────────────────────────────────────────────────────────────────────────

// EmotionalStats counts how often each emotion peaked in the relationship.
// Counters only ever increase.
type EmotionalStats struct {
	JoyPeaks        int `json:"joy_peaks" msgpack:"joy_peaks"`
	AngerPeaks      int `json:"anger_peaks" msgpack:"anger_peaks"`
	ExcitementPeaks int `json:"excitement_peaks" msgpack:"excitement_peaks"`
	SadnessPeaks    int `json:"sadness_peaks" msgpack:"sadness_peaks"`
	FearPeaks       int `json:"fear_peaks" msgpack:"fear_peaks"`
}

// Dominance tracks which side leads the relationship. Score lies in [-1, 1]:
// negative means the user leads, positive means the character leads.
type Dominance struct {
	Score   float64   `json:"score" msgpack:"score"`
	History []float64 `json:"history" msgpack:"history"`
}

// CoreMemory is a narratively significant turn. It is never modified after
// creation.
type CoreMemory struct {
	Summary         string    `json:"summary" msgpack:"summary"`
	MemorableQuote  string    `json:"memorable_quote,omitempty" msgpack:"memorable_quote,omitempty"`
	Timestamp       time.Time `json:"timestamp" msgpack:"timestamp"`
	TriggerKeywords []string  `json:"trigger_keywords,omitempty" msgpack:"trigger_keywords,omitempty"`
	Emotion         string    `json:"emotion,omitempty" msgpack:"emotion,omitempty"`
}

// TriggerKeyword is a word that reliably provokes an emotion from the
// character. Keyword is unique within one relationship.
type TriggerKeyword struct {
	Keyword         string    `json:"keyword" msgpack:"keyword"`
	Emotion         string    `json:"emotion" msgpack:"emotion"`
	OccurrenceCount int       `json:"occurrence_count" msgpack:"occurrence_count"`
	Confidence      float64   `json:"confidence" msgpack:"confidence"`
	FirstOccurrence time.Time `json:"first_occurrence" msgpack:"first_occurrence"`
}

// RelationshipData is the durable state of one (user, character) pair.
type RelationshipData struct {
	UserID      string `json:"user_id" msgpack:"user_id"`
	CharacterID string `json:"character_id" msgpack:"character_id"`

	// Intimacy lies in [0, 10].
	Intimacy       float64          `json:"intimacy" msgpack:"intimacy"`
	Dominance      Dominance        `json:"dominance" msgpack:"dominance"`
	EmotionalStats EmotionalStats   `json:"emotional_stats" msgpack:"emotional_stats"`
	CoreMemories   []CoreMemory     `json:"core_memories" msgpack:"core_memories"`
	Triggers       []TriggerKeyword `json:"trigger_keywords" msgpack:"trigger_keywords"`
	TotalTurns     int              `json:"total_turns" msgpack:"total_turns"`

	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// NewRelationship returns a fresh relationship whose dominance starts at
// defaultDominance.
func NewRelationship(userID, characterID string, defaultDominance float64, now time.Time) *RelationshipData {
	return &RelationshipData{
		UserID:       userID,
		CharacterID:  characterID,
		Dominance:    Dominance{Score: defaultDominance, History: []float64{}},
		CoreMemories: []CoreMemory{},
		Triggers:     []TriggerKeyword{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy of r so callers can mutate it without affecting
// stored or shared values.
func (r *RelationshipData) Clone() *RelationshipData {
	if r == nil {
		return nil
	}
	c := *r
	c.Dominance.History = slices.Clone(r.Dominance.History)
	c.CoreMemories = make([]CoreMemory, len(r.CoreMemories))
	for i, m := range r.CoreMemories {
		m.TriggerKeywords = slices.Clone(m.TriggerKeywords)
		c.CoreMemories[i] = m
	}
	c.Triggers = slices.Clone(r.Triggers)
	if c.Triggers == nil {
		c.Triggers = []TriggerKeyword{}
	}
	if c.Dominance.History == nil {
		c.Dominance.History = []float64{}
	}
	return &c
}

// TriggerWords returns the keyword text of every recorded trigger.
func (r *RelationshipData) TriggerWords() []string {
	out := make([]string, len(r.Triggers))
	for i, t := range r.Triggers {
		out[i] = t.Keyword
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Story summaries
// ─────────────────────────────────────────────────────────────────────────────

// SummaryResponse is one character line captured in a [StorySummary].
type SummaryResponse struct {
	CharacterID   string `json:"character_id" msgpack:"character_id"`
	CharacterName string `json:"character_name" msgpack:"character_name"`
	Action        string `json:"action,omitempty" msgpack:"action,omitempty"`
	Message       string `json:"message" msgpack:"message"`
	InnerThought  string `json:"inner_thought,omitempty" msgpack:"inner_thought,omitempty"`
}

// SummaryState is one character's scene state captured in a [StorySummary].
type SummaryState struct {
	CharacterName string `json:"character_name" msgpack:"character_name"`
	Recent        bool   `json:"recent" msgpack:"recent"`
	Attention     string `json:"attention" msgpack:"attention"`
	CurrentMood   string `json:"current_mood" msgpack:"current_mood"`
	InnerThought  string `json:"inner_thought,omitempty" msgpack:"inner_thought,omitempty"`
}

// StorySummary is the narrative record of one turn within a session.
type StorySummary struct {
	ID                 string                  `json:"id" msgpack:"id"`
	SessionID          string                  `json:"session_id" msgpack:"session_id"`
	UserID             string                  `json:"user_id" msgpack:"user_id"`
	Location           string                  `json:"location" msgpack:"location"`
	TurnNumber         int                     `json:"turn_number" msgpack:"turn_number"`
	TurnID             string                  `json:"turn_id" msgpack:"turn_id"`
	UserMessage        string                  `json:"user_message" msgpack:"user_message"`
	CharacterResponses []SummaryResponse       `json:"character_responses" msgpack:"character_responses"`
	CharacterStates    map[string]SummaryState `json:"character_states" msgpack:"character_states"`
	Summary            string                  `json:"ai_summary" msgpack:"ai_summary"`
	Analysis           string                  `json:"ai_analysis" msgpack:"ai_analysis"`
	CreatedAt          time.Time               `json:"created_at" msgpack:"created_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// User profile
// ─────────────────────────────────────────────────────────────────────────────

// Ability describes a power the user claims to have.
type Ability struct {
	Name        string `json:"name,omitempty" msgpack:"name,omitempty"`
	Description string `json:"description,omitempty" msgpack:"description,omitempty"`
	Rank        string `json:"rank,omitempty" msgpack:"rank,omitempty"`
	Type        string `json:"type,omitempty" msgpack:"type,omitempty"`
}

// UserAction is a notable thing the user did in a scene.
type UserAction struct {
	Action             string    `json:"action" msgpack:"action"`
	Location           string    `json:"location" msgpack:"location"`
	InvolvedCharacters []string  `json:"involved_characters" msgpack:"involved_characters"`
	Timestamp          time.Time `json:"timestamp" msgpack:"timestamp"`
}

// CharacterImpression is how one character sees the user.
type CharacterImpression struct {
	Status      string    `json:"status" msgpack:"status"`
	Impression  string    `json:"impression" msgpack:"impression"`
	KeyEvents   []string  `json:"key_events" msgpack:"key_events"`
	LastUpdated time.Time `json:"last_updated" msgpack:"last_updated"`
}

// UserProfile accumulates what the characters have learned about the user.
type UserProfile struct {
	UserID      string                         `json:"user_id" msgpack:"user_id"`
	Nickname    string                         `json:"nickname,omitempty" msgpack:"nickname,omitempty"`
	Gender      string                         `json:"gender,omitempty" msgpack:"gender,omitempty"`
	Ability     Ability                        `json:"ability" msgpack:"ability"`
	Traits      []string                       `json:"personality_traits" msgpack:"personality_traits"`
	SpeechStyle string                         `json:"speech_style,omitempty" msgpack:"speech_style,omitempty"`
	Impressions map[string]CharacterImpression `json:"character_impressions" msgpack:"character_impressions"`
	Actions     []UserAction                   `json:"key_actions" msgpack:"key_actions"`
	Facts       []string                       `json:"mentioned_facts" msgpack:"mentioned_facts"`
	Likes       []string                       `json:"likes" msgpack:"likes"`
	Dislikes    []string                       `json:"dislikes" msgpack:"dislikes"`
	TotalTurns  int                            `json:"total_turns" msgpack:"total_turns"`
	CreatedAt   time.Time                      `json:"created_at" msgpack:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at" msgpack:"updated_at"`
}

// NewUserProfile returns an empty profile for userID.
func NewUserProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:      userID,
		Impressions: map[string]CharacterImpression{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UpdateImpression records how characterID sees the user. Empty arguments
// leave the corresponding field unchanged.
func (p *UserProfile) UpdateImpression(characterID, status, impression, event string, now time.Time) {
	if p.Impressions == nil {
		p.Impressions = map[string]CharacterImpression{}
	}
	imp, ok := p.Impressions[characterID]
	if !ok {
		imp = CharacterImpression{Status: "neutral"}
	}
	if status != "" {
		imp.Status = status
	}
	if impression != "" {
		imp.Impression = impression
	}
	if event != "" {
		imp.KeyEvents = append(imp.KeyEvents, event)
		if n := len(imp.KeyEvents); n > MaxImpressionEvents {
			imp.KeyEvents = imp.KeyEvents[n-MaxImpressionEvents:]
		}
	}
	imp.LastUpdated = now
	p.Impressions[characterID] = imp
	p.UpdatedAt = now
}

// Clone returns a deep copy of p.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Traits = slices.Clone(p.Traits)
	c.Facts = slices.Clone(p.Facts)
	c.Likes = slices.Clone(p.Likes)
	c.Dislikes = slices.Clone(p.Dislikes)
	c.Actions = make([]UserAction, len(p.Actions))
	for i, a := range p.Actions {
		a.InvolvedCharacters = slices.Clone(a.InvolvedCharacters)
		c.Actions[i] = a
	}
	c.Impressions = make(map[string]CharacterImpression, len(p.Impressions))
	for k, v := range p.Impressions {
		v.KeyEvents = slices.Clone(v.KeyEvents)
		c.Impressions[k] = v
	}
	return &c
}
