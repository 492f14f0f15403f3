package relationship

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/synk-web/synk/pkg/memory"
)

var memoryKeywords = []string{"약속", "비밀", "고백", "사랑", "미워", "친구", "이별", "만남"}

// meaningfulLength is the rune count above which a message alone makes a
// turn memorable.
const meaningfulLength = 30

// ShouldRecordMemory reports whether a turn is worth a core memory: a strong
// emotion (joy, anger, excitement), a special keyword in either message, or
// either message longer than 30 runes.
func ShouldRecordMemory(userMessage, characterMessage string, e Emotion) bool {
	switch e {
	case Joy, Anger, Excitement:
		return true
	}
	if containsAny(strings.ToLower(userMessage+" "+characterMessage), memoryKeywords) {
		return true
	}
	return utf8.RuneCountInString(userMessage) > meaningfulLength ||
		utf8.RuneCountInString(characterMessage) > meaningfulLength
}

// NewCoreMemory builds a memory from a turn. The summary quotes the first 50
// runes of the user message; the memorable quote is the first 100 runes of
// the character message.
func NewCoreMemory(userMessage, characterMessage string, e Emotion, triggers []string, now time.Time) memory.CoreMemory {
	summary := "유저: " + truncate(userMessage, 50)
	if utf8.RuneCountInString(userMessage) > 50 {
		summary += "..."
	}
	return memory.CoreMemory{
		Summary:         summary,
		MemorableQuote:  truncate(characterMessage, 100),
		Timestamp:       now,
		TriggerKeywords: triggers,
		Emotion:         string(e),
	}
}

// AddCoreMemory appends m, keeping only the newest [memory.MaxCoreMemories].
func AddCoreMemory(rel *memory.RelationshipData, m memory.CoreMemory) {
	rel.CoreMemories = append(rel.CoreMemories, m)
	if n := len(rel.CoreMemories); n > memory.MaxCoreMemories {
		rel.CoreMemories = append([]memory.CoreMemory(nil), rel.CoreMemories[n-memory.MaxCoreMemories:]...)
	}
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
