package relationship

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/pkg/memory"
)

// Trigger confidence rules.
const (
	initialConfidence = 0.5
	confidenceStep    = 0.1
)

// DetectTrigger returns the first keyword found in message, checking the
// character's built-in triggers before the relationship's learned ones.
// Matching is case-insensitive substring search; it returns "" when nothing
// matches.
func DetectTrigger(message string, c *character.Character, learned []memory.TriggerKeyword) string {
	lower := strings.ToLower(message)
	for _, kw := range builtinTriggers(c) {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	for _, t := range learned {
		if strings.Contains(lower, strings.ToLower(t.Keyword)) {
			return t.Keyword
		}
	}
	return ""
}

// builtinTriggers returns the character's trigger keywords in a stable
// order so detection does not depend on map iteration.
func builtinTriggers(c *character.Character) []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.EmotionTriggers))
	for k := range c.EmotionTriggers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// UpdateTriggers detects a trigger in message and records it. A repeat
// detection bumps the occurrence count and confidence (capped at 1); a new
// keyword starts at confidence 0.5 with emotion override, else the
// character's mapped emotion, else anger. When more than
// [memory.MaxTriggerKeywords] are held the least confident are dropped.
func UpdateTriggers(rel *memory.RelationshipData, message string, c *character.Character, override Emotion, now time.Time) {
	kw := DetectTrigger(message, c, rel.Triggers)
	if kw == "" {
		return
	}

	if i := slices.IndexFunc(rel.Triggers, func(t memory.TriggerKeyword) bool { return t.Keyword == kw }); i >= 0 {
		t := &rel.Triggers[i]
		t.OccurrenceCount++
		t.Confidence = min(1.0, t.Confidence+confidenceStep)
	} else {
		emotion := string(override)
		if emotion == "" && c != nil {
			emotion = c.EmotionTriggers[kw]
		}
		if emotion == "" {
			emotion = string(Anger)
		}
		rel.Triggers = append(rel.Triggers, memory.TriggerKeyword{
			Keyword:         kw,
			Emotion:         emotion,
			OccurrenceCount: 1,
			Confidence:      initialConfidence,
			FirstOccurrence: now,
		})
	}

	if len(rel.Triggers) > memory.MaxTriggerKeywords {
		slices.SortStableFunc(rel.Triggers, func(a, b memory.TriggerKeyword) int {
			return cmp.Compare(a.Confidence, b.Confidence)
		})
		rel.Triggers = slices.Clone(rel.Triggers[len(rel.Triggers)-memory.MaxTriggerKeywords:])
	}
}
