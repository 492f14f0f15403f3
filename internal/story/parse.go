package story

import (
	"fmt"
	"strings"

	"github.com/synk-web/synk/pkg/memory"
)

const (
	summaryKey  = "ai_summary:"
	analysisKey = "ai_analysis:"
	minSection  = 10
	rawPrefix   = 100
)

// Parse splits a model reply into its ai_summary and ai_analysis sections.
// Each section may continue over several lines. A missing or too-short
// section falls back to the raw reply.
func Parse(raw string) (summary, analysis string) {
	var sum, ana []string
	var cur *[]string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, summaryKey):
			cur = &sum
			sum = append(sum, strings.TrimPrefix(line, summaryKey))
		case strings.HasPrefix(line, analysisKey):
			cur = &ana
			ana = append(ana, strings.TrimPrefix(line, analysisKey))
		case cur != nil && line != "" && !strings.HasPrefix(line, "ai_"):
			*cur = append(*cur, line)
		}
	}

	summary = normalize(strings.Join(sum, " "))
	analysis = normalize(strings.Join(ana, " "))
	if summary == "" {
		summary = normalize(prefix(raw, rawPrefix) + "...")
	}
	if analysis == "" {
		analysis = normalize(raw)
	}

	unquote := strings.NewReplacer(`"`, "", "'", "")
	if len([]rune(summary)) < minSection {
		summary = strings.TrimSpace(unquote.Replace(prefix(raw, rawPrefix)) + "...")
	}
	if len([]rune(analysis)) < minSection {
		analysis = strings.TrimSpace(unquote.Replace(raw))
	}
	return summary, analysis
}

// Template builds the summary used when generation is unavailable, from the
// first main response of the turn.
func Template(userMessage string, first *memory.SummaryResponse) (summary, analysis string) {
	said := fmt.Sprintf("유저가 '%s...'라고 말했", prefix(userMessage, 40))
	switch {
	case first == nil:
		return said + "다.", "대화가 진행되었다."
	case first.Action != "":
		summary = fmt.Sprintf("%s고, %s이 %s 반응했다.", said, first.CharacterName, first.Action)
	default:
		summary = fmt.Sprintf("%s고, %s이 응답했다.", said, first.CharacterName)
	}
	return summary, first.CharacterName + "이 유저의 발언에 반응하며 상황이 전개되었다."
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func prefix(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
