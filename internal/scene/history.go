package scene

import (
	"fmt"
	"strings"
	"time"
)

// SpeakerUser is the speaker id of user turns in a [History].
const SpeakerUser = "user"

// HistoryTurn is one line of conversation.
type HistoryTurn struct {
	Speaker       string    `json:"speaker"`
	CharacterName string    `json:"character_name,omitempty"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// History is the append-only conversation log of a session.
type History []HistoryTurn

// Tail returns the last n turns.
func (h History) Tail(n int) History {
	return tail(h, n)
}

// Format renders turns one per line as "유저: ..." or "<name>: ...".
func (h History) Format() string {
	var b strings.Builder
	for _, t := range h {
		who := "유저"
		if t.Speaker != SpeakerUser {
			who = t.CharacterName
			if who == "" {
				who = t.Speaker
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", who, t.Message)
	}
	return b.String()
}
