package relationship

import (
	"strings"

	"github.com/synk-web/synk/pkg/memory"
)

var (
	commandKeywords    = []string{"해줘", "해봐", "해", "해라", "해야", "해야지", "하세요", "해주세요"}
	apologyKeywords    = []string{"미안", "죄송", "사과", "잘못", "용서", "부탁"}
	refusalKeywords    = []string{"싫어", "안 해", "안돼", "거절", "못 해", "안 할래"}
	complianceKeywords = []string{"알겠어", "할게", "해줄게", "좋아", "응", "네"}
)

// MaxDominanceDelta bounds the change a single turn can make.
const MaxDominanceDelta = 0.2

// DominanceDelta scores how a message pair shifts the power balance toward
// the character (positive) or the user (negative). The result lies in
// [-MaxDominanceDelta, MaxDominanceDelta].
func DominanceDelta(userMessage, characterMessage string) float64 {
	var d float64
	u := strings.ToLower(userMessage)
	c := strings.ToLower(characterMessage)
	if containsAny(u, commandKeywords) {
		d += 0.1
	}
	if containsAny(u, apologyKeywords) {
		d -= 0.1
	}
	if containsAny(c, refusalKeywords) {
		d += 0.1
	}
	if containsAny(c, complianceKeywords) {
		d -= 0.1
	}
	return clamp(d, -MaxDominanceDelta, MaxDominanceDelta)
}

// ApplyDominance moves the score by delta, clamped to [-1, 1], and appends
// the new score to the bounded history.
func ApplyDominance(rel *memory.RelationshipData, delta float64) {
	score := clamp(rel.Dominance.Score+delta, -1, 1)
	rel.Dominance.Score = score
	rel.Dominance.History = append(rel.Dominance.History, score)
	if n := len(rel.Dominance.History); n > memory.MaxDominanceHistory {
		rel.Dominance.History = append([]float64(nil), rel.Dominance.History[n-memory.MaxDominanceHistory:]...)
	}
}

// DescribeDominance returns the Korean label for a dominance score.
func DescribeDominance(score float64) string {
	switch {
	case score < -0.5:
		return "유저가 완전히 주도"
	case score < -0.3:
		return "유저가 관계를 주도"
	case score < 0.3:
		return "균형 잡힌 관계"
	case score < 0.5:
		return "캐릭터가 관계를 주도"
	default:
		return "캐릭터가 완전히 주도"
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
