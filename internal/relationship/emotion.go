// Package relationship evolves the per-(user, character) relationship state
// from each processed turn.
//
// The rules are small pure functions: [DetectEmotion] classifies text,
// [DominanceDelta] scores a message pair, [UpdateTriggers] learns trigger
// keywords and [ShouldRecordMemory] decides on core memories. [Processor]
// applies them in order, persists the result and serialises concurrent
// updates per relationship key. [PromptContext] renders a relationship for
// generation prompts.
package relationship

import (
	"strings"

	"github.com/synk-web/synk/pkg/memory"
)

// Emotion is a detected emotion label. The zero value means none.
type Emotion string

const (
	Joy        Emotion = "joy"
	Anger      Emotion = "anger"
	Excitement Emotion = "excitement"
	Sadness    Emotion = "sadness"
	Fear       Emotion = "fear"
)

// emotionKeywords is checked in priority order; the first category with a
// match wins.
var emotionKeywords = []struct {
	emotion  Emotion
	keywords []string
}{
	{Joy, []string{"좋아", "행복", "기쁘", "웃", "즐거", "신나", "재미", "최고", "사랑"}},
	{Anger, []string{"화나", "짜증", "미워", "싫어", "혐오", "빡쳐", "열받", "분노", "욕"}},
	{Excitement, []string{"대단", "멋져", "최고", "완벽", "놀라", "신기", "와", "우와", "짱"}},
	{Sadness, []string{"슬퍼", "우울", "힘들", "아픔", "괴로", "후회", "미안", "죄송"}},
	{Fear, []string{"무서", "두려", "겁", "불안", "걱정", "무섭", "무서워"}},
}

// DetectEmotion returns the first emotion whose keywords occur in text, in
// the order joy, anger, excitement, sadness, fear. It returns "" when nothing
// matches.
func DetectEmotion(text string) Emotion {
	lower := strings.ToLower(text)
	for _, e := range emotionKeywords {
		if containsAny(lower, e.keywords) {
			return e.emotion
		}
	}
	return ""
}

// RecordPeak increments the counter for e. Unknown or empty emotions are
// ignored.
func RecordPeak(stats *memory.EmotionalStats, e Emotion) {
	switch e {
	case Joy:
		stats.JoyPeaks++
	case Anger:
		stats.AngerPeaks++
	case Excitement:
		stats.ExcitementPeaks++
	case Sadness:
		stats.SadnessPeaks++
	case Fear:
		stats.FearPeaks++
	}
}

// UpdateEmotionalStats counts the emotion of each side independently.
func UpdateEmotionalStats(rel *memory.RelationshipData, userMessage, characterMessage string) {
	RecordPeak(&rel.EmotionalStats, DetectEmotion(userMessage))
	RecordPeak(&rel.EmotionalStats, DetectEmotion(characterMessage))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
