package reaction

import (
	"fmt"
	"strings"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/relationship"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/pkg/memory"
)

// Rune limits applied to text embedded in prompts.
const (
	mainPersonalityLimit         = 500
	interjectionPersonalityLimit = 400
	rosterPersonalityLimit       = 50
	subQuoteLimit                = 50
	subQuoteTotalLimit           = 100
	interjectionQuoteLimit       = 100
)

// MainPrompt renders the long-form reply prompt for c.
func MainPrompt(req *Request, c *character.Character, rel *memory.RelationshipData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 '%s'입니다.\n\n", c.Name)
	fmt.Fprintf(&b, "[캐릭터 정보]\n%s\n\n", runePrefix(c.Personality, mainPersonalityLimit))
	fmt.Fprintf(&b, "[관계 데이터]\n%s\n", relationship.PromptContext(rel, c))
	if req.StoryContext != "" {
		fmt.Fprintf(&b, "%s\n", req.StoryContext)
	}
	if req.Scene != nil {
		b.WriteString(sceneSummary(req.Scene))
	}
	b.WriteString(rosterContext(req, c))
	if req.ProfileContext != "" {
		fmt.Fprintf(&b, "\n%s\n", req.ProfileContext)
	}
	if len(req.History) > 0 {
		fmt.Fprintf(&b, "\n%s", req.History.Format())
	}
	fmt.Fprintf(&b, "\n[현재 대화]\n유저: %s\n", req.UserMessage)
	b.WriteString(`
[⚠️ 매우 중요한 지시사항]

1. **스토리 컨텍스트 활용 (필수)**
   - 위의 "[📖 최근 스토리 흐름]"을 반드시 참고하세요.
   - 이전 대화에서 일어난 사건들을 기억하고 일관성 있게 응답하세요.
   - 스토리 흐름을 무시하지 마세요!

2. **유저 집중 (필수)**
   - 유저에게 직접 응답하세요. 유저를 소외시키지 마세요.
   - 다른 캐릭터를 언급할 수 있지만, 반드시 유저에게도 말을 걸어야 합니다.
   - 유저의 질문이나 말에 정확히 답하세요.
   - **응답의 대부분(70% 이상)은 유저에게 직접 말을 걸어야 합니다.**

[응답 지침]
- 캐릭터의 말투와 성격을 100% 유지하세요.
- 다른 캐릭터들이 주변에 있다는 것을 인지하세요.
- 자연스러운 그룹 대화의 일부처럼 반응하세요.
- 이전 대화의 맥락을 활용하여 일관성 있는 응답을 하세요.
- 응답은 대사만 작성하세요. (설명이나 행동 묘사는 *별표* 안에)
`)
	return b.String()
}

// TikiTakaPrompt renders the prompt for c answering caller, who named c in
// their reply callerMessage.
func TikiTakaPrompt(req *Request, c, caller *character.Character, callerMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 '%s'입니다.\n\n", c.Name)
	fmt.Fprintf(&b, "[캐릭터 정보]\n%s\n\n", runePrefix(c.Personality, mainPersonalityLimit))
	if req.StoryContext != "" {
		fmt.Fprintf(&b, "%s\n", req.StoryContext)
	}
	fmt.Fprintf(&b, "[현재 상황]\n장소: %s\n유저가 말했습니다: %q\n\n", req.Location, req.UserMessage)
	fmt.Fprintf(&b, "다른 캐릭터 '%s'이 당신의 이름을 부르며 말했습니다:\n%q\n\n", caller.Name, callerMessage)
	b.WriteString(consistencyRules)
	fmt.Fprintf(&b, `
[요청]
당신은 '%[1]s'이 당신을 직접 부른 것에 반응해야 합니다.
- 짧고 간결하게 응답하세요 (2-3문장)
- '%[1]s'에게 직접 말을 걸되, 유저도 인지하세요
- 캐릭터의 말투와 성격을 100%% 유지하세요
- 자연스러운 티키타카처럼 반응하세요
`, caller.Name)
	b.WriteString(lineOnly)
	return b.String()
}

// InterjectionPrompt renders the prompt for c cutting into the replies
// already given this turn.
func InterjectionPrompt(req *Request, c *character.Character, mains []MainResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 '%s'입니다.\n\n", c.Name)
	fmt.Fprintf(&b, "[캐릭터 정보]\n%s\n\n", runePrefix(c.Personality, interjectionPersonalityLimit))
	if req.StoryContext != "" {
		fmt.Fprintf(&b, "%s\n", req.StoryContext)
	}
	fmt.Fprintf(&b, "[현재 상황]\n장소: %s\n유저가 말했습니다: %q\n\n", req.Location, req.UserMessage)
	b.WriteString("다른 캐릭터들이 응답했습니다:\n")
	for _, m := range mains {
		fmt.Fprintf(&b, "%s: %s...\n", m.CharacterName, runePrefix(m.Message, interjectionQuoteLimit))
	}
	b.WriteString("\n")
	b.WriteString(consistencyRules)
	b.WriteString(`
[요청]
당신은 이 대화에 **끼어들고** 싶습니다.
캐릭터의 성격에 맞게 자연스럽게 끼어드는 대사를 작성하세요.

[규칙]
- 캐릭터의 말투와 성격을 100% 유지
- 끼어드는 것처럼 자연스럽게 (예: "*끼어들며*", "*옆에서*", "*비웃으며*")
- 2~4문장 정도
- 유저에게도 말을 걸어야 함
`)
	b.WriteString(lineOnly)
	return b.String()
}

// SubPrompt renders the short-reaction prompt for c.
func SubPrompt(req *Request, c *character.Character, mains []MainResponse) string {
	speaker := "다른 캐릭터"
	if len(mains) > 0 {
		speaker = mains[0].CharacterName
	}
	quotes := make([]string, 0, len(mains))
	for _, m := range mains {
		quotes = append(quotes, runePrefix(m.Message, subQuoteLimit))
	}
	quoted := runePrefix(strings.Join(quotes, " "), subQuoteTotalLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "당신은 '%s'입니다.\n\n", c.Name)
	fmt.Fprintf(&b, "[상황]\n유저가 말했습니다: %q\n%s가 응답했습니다: \"%s...\"\n", req.UserMessage, speaker, quoted)
	b.WriteString(`
[요청]
이 상황에 대한 **매우 짧은 반응**을 작성하세요.

[규칙]
- 1~2문장 이하로 매우 짧게
- 말투와 성격 유지
- 예시: "크큭...", "*코웃음*", "흥...", "*눈을 가늘게 뜨며*", "후후..."
`)
	b.WriteString(lineOnly)
	return b.String()
}

const consistencyRules = `[⚠️ 중요 지시사항]
1. **스토리 컨텍스트 활용**: 위의 "[📖 최근 스토리 흐름]"을 참고하여 이전 대화의 맥락을 활용하세요.
2. **일관성 유지**: 이전 대화에서 일어난 사건들을 기억하고 일관성 있게 응답하세요.
`

const lineOnly = `
[응답 형식]
대사만 작성하세요. 행동 묘사는 *별표* 안에.
`

func sceneSummary(sc *scene.Scene) string {
	events := "없음"
	if n := len(sc.RecentEvents); n > 0 {
		var parts []string
		for _, e := range sc.RecentEvents[max(0, n-3):] {
			parts = append(parts, e.Summary)
		}
		events = strings.Join(parts, ", ")
	}
	last := sc.LastSpeakerName
	if last == "" {
		last = "없음"
	}
	return fmt.Sprintf("[현재 씬 상태]\n- 분위기: %s (긴장도: %d/10)\n- 마지막 화자: %s\n- 최근 이벤트: %s\n\n",
		sc.Atmosphere, sc.Tension, last, events)
}

// rosterContext lists the other characters present and reminds c to speak
// only for itself.
func rosterContext(req *Request, c *character.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[현재 장소: %s]\n\n[함께 있는 인물]\n", req.Location)
	for i := range req.Roster {
		o := &req.Roster[i]
		if o.ID == c.ID {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s...\n", o.Name, runePrefix(o.Personality, rosterPersonalityLimit))
	}
	fmt.Fprintf(&b, "\n[당신은 '%s'입니다]\n", c.Name)
	b.WriteString("- 다른 캐릭터들을 인식하고 있습니다.\n")
	b.WriteString("- 필요하면 다른 캐릭터에게 말을 걸 수 있습니다.\n")
	b.WriteString("- 다른 캐릭터의 대사는 쓰지 마세요. 당신의 대사만 작성하세요.\n")
	return b.String()
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
