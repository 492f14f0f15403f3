package relationship

import (
	"fmt"
	"slices"
	"strings"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/pkg/memory"
)

// IntimacyLabel names the relationship stage for an intimacy value.
func IntimacyLabel(intimacy float64) string {
	switch {
	case intimacy < 1:
		return "모르는 사이"
	case intimacy < 3:
		return "아는 사이"
	case intimacy < 5:
		return "친구"
	case intimacy < 7:
		return "절친"
	case intimacy < 9:
		return "특별한 사이"
	default:
		return "연인"
	}
}

// Familiarity is the coarse three-step label used in inner-thought prompts.
func Familiarity(intimacy float64) string {
	switch {
	case intimacy >= 5:
		return "친밀함"
	case intimacy >= 2:
		return "알고 지내는 사이"
	default:
		return "낯선 사이"
	}
}

// PromptContext renders rel for a generation prompt: stage, dynamics,
// emotion history, the first three core memories, sensitive keywords and a
// tone guide. c may be nil.
func PromptContext(rel *memory.RelationshipData, c *character.Character) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n[유저와의 관계]\n")
	fmt.Fprintf(&b, "- 관계 단계: %s (친밀도: %.1f/10.0)\n", IntimacyLabel(rel.Intimacy), rel.Intimacy)
	fmt.Fprintf(&b, "- 관계 역학: %s (dominance: %.2f)\n", DescribeDominance(rel.Dominance.Score), rel.Dominance.Score)
	fmt.Fprintf(&b, "- 감정 히스토리: 기쁨 %d회, 화남 %d회, 열광 %d회\n",
		rel.EmotionalStats.JoyPeaks, rel.EmotionalStats.AngerPeaks, rel.EmotionalStats.ExcitementPeaks)

	b.WriteString("\n[핵심 기억]\n")
	b.WriteString(formatMemories(rel.CoreMemories, 3))

	b.WriteString("\n\n[주의 키워드] (언급 시 강한 반응)\n")
	if kws := sensitiveKeywords(rel, c); len(kws) > 0 {
		b.WriteString(strings.Join(kws, ", "))
	} else {
		b.WriteString("없음")
	}

	b.WriteString("\n\n[응답 톤 가이드]\n")
	switch s := rel.Dominance.Score; {
	case s < -balancedDominance:
		b.WriteString("- 유저가 관계를 주도함. 더 순종적이고 부드럽게 반응하세요.\n")
	case s > balancedDominance:
		b.WriteString("- 캐릭터가 관계를 주도함. 더 당당하고 도도하게 반응하세요.\n")
	default:
		b.WriteString("- 균형 잡힌 관계. 캐릭터 본연의 성격대로 반응하세요.\n")
	}
	switch i := rel.Intimacy; {
	case i < 2:
		b.WriteString("- 아직 친하지 않음. 거리감을 유지하세요.\n")
	case i < 5:
		b.WriteString("- 어느 정도 친해짐. 자연스럽게 대화하세요.\n")
	case i < 8:
		b.WriteString("- 매우 친함. 편하게 대하고 농담도 가능.\n")
	default:
		b.WriteString("- 특별한 관계. 속마음을 조금씩 보여줄 수 있음.\n")
	}
	if len(rel.CoreMemories) > 0 {
		b.WriteString("- 핵심 기억의 키워드가 나오면 자연스럽게 언급하세요.\n")
	}
	return b.String()
}

func formatMemories(mems []memory.CoreMemory, n int) string {
	if len(mems) == 0 {
		return "없음"
	}
	lines := make([]string, 0, n)
	for _, m := range mems[:min(n, len(mems))] {
		if m.MemorableQuote != "" {
			lines = append(lines, fmt.Sprintf("- %s (%q)", m.Summary, m.MemorableQuote))
		} else {
			lines = append(lines, "- "+m.Summary)
		}
	}
	return strings.Join(lines, "\n")
}

// sensitiveKeywords merges learned triggers with the character's built-in
// ones, without duplicates, learned first.
func sensitiveKeywords(rel *memory.RelationshipData, c *character.Character) []string {
	out := rel.TriggerWords()
	for _, kw := range builtinTriggers(c) {
		if !slices.Contains(out, kw) {
			out = append(out, kw)
		}
	}
	return out
}
