package scene

import (
	"strings"
	"time"

	"github.com/synk-web/synk/internal/thought"
)

// BeginTurn starts a new user turn: every recent flag is cleared and the
// turn counter advances. Attention is left as it was.
func (s *Scene) BeginTurn(now time.Time) {
	for _, st := range s.States {
		st.Recent = false
	}
	s.TotalTurns++
	s.UpdatedAt = now
}

// MainCommit describes one main response to fold into the scene.
type MainCommit struct {
	TurnID      string
	CharacterID string
	// Target is [UserTarget] or the id of the character being answered.
	Target     string
	TargetName string
	// ActionType labels the event: "speak", "tikitaka" or "interject".
	ActionType string
	Response   string
	// Thought replaces the inner thought when non-nil.
	Thought *thought.Record
	// Mood replaces the character's mood when non-empty.
	Mood string
	Now  time.Time
}

// CommitMain records a main response. The speaker becomes recent and turns
// their attention to the target; the event log, last speaker and focus
// follow the speaker. Unknown characters only touch the event log.
func (s *Scene) CommitMain(c MainCommit) {
	if c.Target == "" {
		c.Target, c.TargetName = UserTarget, "유저"
	}
	if c.ActionType == "" {
		c.ActionType = "speak"
	}

	st := s.States[c.CharacterID]
	name := c.CharacterID
	if st != nil {
		name = st.CharacterName
	}

	summary := SummarizeEvent(c.Response)
	s.RecentEvents = append(s.RecentEvents, RecentEvent{
		TurnID:      c.TurnID,
		SpeakerID:   c.CharacterID,
		SpeakerName: name,
		Target:      c.Target,
		TargetName:  c.TargetName,
		ActionType:  c.ActionType,
		Summary:     summary,
		Timestamp:   c.Now,
	})
	if n := len(s.RecentEvents); n > MaxRecentEvents {
		s.RecentEvents = append([]RecentEvent(nil), s.RecentEvents[n-MaxRecentEvents:]...)
	}

	s.LastSpeakerID = c.CharacterID
	s.LastSpeakerName = name
	s.LastTarget = c.Target
	if c.Target == UserTarget {
		s.CurrentFocus = "유저 ↔ " + name
	} else {
		s.CurrentFocus = name + " ↔ " + c.TargetName
	}
	s.UpdatedAt = c.Now

	if st == nil {
		return
	}
	st.Recent = true
	st.Attention = AttentionCharacter
	if c.Target == UserTarget {
		st.Attention = AttentionUser
	}
	st.AttentionTarget = c.Target
	if c.Thought != nil {
		st.InnerThought = c.Thought
	}
	at := c.Now
	st.LastSpokeAt = &at
	st.TurnCount++
	st.LastAction = summary
	if c.Mood != "" {
		st.Mood = c.Mood
	}
}

// CommitObserver records a sub-reaction. The character stays non-recent
// and switches to observing unless their attention is none.
func (s *Scene) CommitObserver(characterID string, th *thought.Record) {
	st := s.States[characterID]
	if st == nil {
		return
	}
	if th != nil {
		st.InnerThought = th
	}
	st.Recent = false
	if st.Attention != AttentionNone {
		st.Attention = AttentionObserving
	}
}

// CommitSilent records the inner thought of a character that did not
// react. Nothing else about them changes.
func (s *Scene) CommitSilent(characterID string, th *thought.Record) {
	if st := s.States[characterID]; st != nil && th != nil {
		st.InnerThought = th
	}
}

// AddStoryPoint appends a whitespace-normalised point to the story arc.
func (s *Scene) AddStoryPoint(point string) {
	point = strings.Join(strings.Fields(point), " ")
	if point == "" {
		return
	}
	s.StoryArc = append(s.StoryArc, point)
	if n := len(s.StoryArc); n > MaxStoryArc {
		s.StoryArc = append([]string(nil), s.StoryArc[n-MaxStoryArc:]...)
	}
}

// AdjustTension moves the tension level by delta within [1, 10].
func (s *Scene) AdjustTension(delta int) {
	s.Tension = min(10, max(1, s.Tension+delta))
}

const eventSummaryLimit = 50

// SummarizeEvent condenses a response into its first sentence, cut to 50
// runes with a trailing ellipsis.
func SummarizeEvent(response string) string {
	first := response
	if i := strings.IndexAny(response, ".!?"); i >= 0 {
		first = response[:i]
	}
	if r := []rune(first); len(r) > eventSummaryLimit {
		return string(r[:eventSummaryLimit]) + "..."
	}
	return first
}
