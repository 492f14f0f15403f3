package relationship

import (
	"errors"
	"fmt"
)

// ErrUnknownReaction is returned by [ParseReaction] for an emoji that is not
// one of the four supported reactions.
var ErrUnknownReaction = errors.New("relationship: unknown reaction emoji")

// Reaction is explicit user feedback on a character reply.
type Reaction int

const (
	// NoReaction means the turn carries no emoji; emotions are detected from
	// the text instead.
	NoReaction Reaction = iota
	Heart
	AngerMark
	Fire
	Star
)

// ParseReaction maps an emoji to a [Reaction]. The bare heart without a
// variation selector is accepted as [Heart].
func ParseReaction(emoji string) (Reaction, error) {
	switch emoji {
	case "❤️", "❤":
		return Heart, nil
	case "💢":
		return AngerMark, nil
	case "🔥":
		return Fire, nil
	case "⭐":
		return Star, nil
	default:
		return NoReaction, fmt.Errorf("%w: %q", ErrUnknownReaction, emoji)
	}
}

// String returns the canonical emoji.
func (r Reaction) String() string {
	switch r {
	case Heart:
		return "❤️"
	case AngerMark:
		return "💢"
	case Fire:
		return "🔥"
	case Star:
		return "⭐"
	default:
		return ""
	}
}

// Confirmation is the user-facing acknowledgement of a reaction on a reply
// from characterName.
func (r Reaction) Confirmation(characterName string) string {
	switch r {
	case Heart:
		return "심쿵 반응이 기록되었습니다! " + characterName + "과(와)의 친밀도가 올라갔어요."
	case AngerMark:
		return "짜증 반응이 기록되었습니다. " + characterName + "의 말에서 트리거 키워드를 찾고 있어요."
	case Fire:
		return "열광 반응이 기록되었습니다! " + characterName + "의 말이 정말 인상적이었나봐요."
	case Star:
		return "이 순간이 핵심 기억으로 저장되었습니다. " + characterName + "이(가) 이 대화를 기억할 거예요."
	default:
		return ""
	}
}
