package story

import (
	"fmt"
	"strings"

	"github.com/synk-web/synk/pkg/memory"
)

// Prompt renders the summary request for one turn. previous are the
// session's latest stored summaries, oldest first.
func Prompt(in Input, previous []memory.StorySummary) string {
	var responses strings.Builder
	for _, r := range in.Responses {
		responses.WriteString("- " + r.CharacterName)
		if a := strings.TrimSpace(r.Action); a != "" {
			responses.WriteString(" " + a)
		}
		fmt.Fprintf(&responses, ": %s\n", strings.TrimSpace(r.Message))
		if r.InnerThought != "" {
			fmt.Fprintf(&responses, "  💭 속마음: %s\n", r.InnerThought)
		}
	}

	var states strings.Builder
	for _, id := range in.Order {
		st, ok := in.States[id]
		if !ok || st.Recent {
			continue
		}
		fmt.Fprintf(&states, "- %s [상태: %s, 기분: %s]\n", st.CharacterName, st.Attention, st.CurrentMood)
		if st.InnerThought != "" {
			fmt.Fprintf(&states, "  💭 속마음: %s\n", st.InnerThought)
		}
	}
	if states.Len() == 0 {
		states.WriteString("없음\n")
	}

	var flow strings.Builder
	if len(previous) > 0 {
		flow.WriteString("\n[최근 스토리 흐름]\n")
		for _, p := range previous[max(0, len(previous)-promptSummaries):] {
			fmt.Fprintf(&flow, "- %s\n", p.Summary)
		}
	}

	return fmt.Sprintf(`당신은 소설이나 드라마의 시나리오 작가처럼, 대화 상황을 생생하게 묘사하는 스토리 분석가입니다.

[현재 대화 상황]
유저: %q

[캐릭터들의 행동과 대사]
%s
[주변 캐릭터들의 상태와 속마음]
%s%s
[지시사항]
1. 행동, 대사, 상황을 모두 포함하여 생생하게 묘사하세요.
   - 캐릭터가 무엇을 했고 무엇을 말했는지, 어떤 상황이 벌어졌는지, 분위기와 긴장도
2. 속마음은 그대로 옮기지 말고 캐릭터의 내면 심리로 자연스럽게 녹여 묘사하세요.
   - 나쁜 예: "속마음: '진짜 아프잖아!'"
   - 좋은 예: "주창윤은 고통을 참으며 강한 척했다"
3. 대사는 따옴표 없이 자연스럽게 문장에 포함하고, 과도하게 인용하지 마세요.

[요청]
1. ai_summary: 2-3문장으로 이번 턴의 핵심 사건을 요약하세요. 누가 누구에게 무엇을 했는지 구체적으로.
2. ai_analysis: 5-8문장으로 상황을 소설처럼 묘사하세요. 표정, 몸짓, 시선, 분위기, 관계 역학을 포함하세요.

[응답 형식 - 반드시 준수하세요]
ai_summary: [간단한 요약]
ai_analysis: [상세 분석]
`, in.UserMessage, responses.String(), states.String(), flow.String())
}
