package relationship

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/pkg/memory"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDetectEmotion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want Emotion
	}{
		{"오늘 정말 행복해", Joy},
		{"최고야", Joy}, // joy outranks excitement
		{"진짜 짜증나", Anger},
		{"우와 대단하다", Excitement},
		{"너무 슬퍼", Sadness},
		{"좀 무서워", Fear},
		{"오늘 날씨", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DetectEmotion(tt.text); got != tt.want {
			t.Errorf("DetectEmotion(%q): want %q, got %q", tt.text, tt.want, got)
		}
	}
}

func TestUpdateEmotionalStats_BothSides(t *testing.T) {
	t.Parallel()

	rel := memory.NewRelationship("u", "c", 0, testNow)
	UpdateEmotionalStats(rel, "짜증나", "좋아!")
	if rel.EmotionalStats.AngerPeaks != 1 || rel.EmotionalStats.JoyPeaks != 1 {
		t.Fatalf("stats: got %+v", rel.EmotionalStats)
	}
	UpdateEmotionalStats(rel, "음", "그래")
	if rel.EmotionalStats != (memory.EmotionalStats{JoyPeaks: 1, AngerPeaks: 1}) {
		t.Fatalf("neutral turn must not count, got %+v", rel.EmotionalStats)
	}
}

func TestDominanceDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		user, chr string
		want      float64
	}{
		{"command and refusal", "똑바로 해줘", "싫어.", 0.2},
		{"apology", "미안", "...", -0.1},
		{"apology and compliance", "죄송합니다", "알겠어", -0.2},
		{"command cancelled by compliance", "해봐", "할게", 0},
		{"nothing", "안녕", "흥", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DominanceDelta(tt.user, tt.chr); !approx(got, tt.want) {
				t.Fatalf("delta: want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApplyDominance_ClampsAndBoundsHistory(t *testing.T) {
	t.Parallel()

	rel := memory.NewRelationship("u", "c", 0.9, testNow)
	ApplyDominance(rel, 0.2)
	if rel.Dominance.Score != 1 {
		t.Fatalf("score: want 1, got %v", rel.Dominance.Score)
	}
	for range 60 {
		ApplyDominance(rel, -0.2)
	}
	if rel.Dominance.Score != -1 {
		t.Fatalf("score: want -1, got %v", rel.Dominance.Score)
	}
	if len(rel.Dominance.History) != memory.MaxDominanceHistory {
		t.Fatalf("history: want %d, got %d", memory.MaxDominanceHistory, len(rel.Dominance.History))
	}
}

func TestDescribeDominance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{-0.8, "유저가 완전히 주도"},
		{-0.4, "유저가 관계를 주도"},
		{0, "균형 잡힌 관계"},
		{0.3, "캐릭터가 관계를 주도"},
		{0.5, "캐릭터가 완전히 주도"},
	}
	for _, tt := range tests {
		if got := DescribeDominance(tt.score); got != tt.want {
			t.Errorf("DescribeDominance(%v): want %q, got %q", tt.score, tt.want, got)
		}
	}
}

func TestUpdateTriggers_Repeat(t *testing.T) {
	t.Parallel()

	c := &character.Character{ID: "c", EmotionTriggers: map[string]string{"형": "anger", "투명화": "embarrassed"}}
	rel := memory.NewRelationship("u", "c", 0, testNow)

	for i := range 3 {
		UpdateTriggers(rel, "너 형보다 약하잖아", c, "", testNow.Add(time.Duration(i)*time.Minute))
	}
	if len(rel.Triggers) != 1 {
		t.Fatalf("triggers: want 1, got %d", len(rel.Triggers))
	}
	tr := rel.Triggers[0]
	if tr.OccurrenceCount != 3 || !approx(tr.Confidence, 0.7) {
		t.Fatalf("repeat: want count 3 conf 0.7, got %d %v", tr.OccurrenceCount, tr.Confidence)
	}
	if tr.Emotion != "anger" || !tr.FirstOccurrence.Equal(testNow) {
		t.Fatalf("first occurrence must be immutable: got %+v", tr)
	}

	UpdateTriggers(rel, "투명화 능력", c, "", testNow)
	if rel.Triggers[1].Emotion != "embarrassed" {
		t.Fatalf("mapped emotion: got %q", rel.Triggers[1].Emotion)
	}
}

func TestUpdateTriggers_EmotionSources(t *testing.T) {
	t.Parallel()

	c := &character.Character{EmotionTriggers: map[string]string{"배신": "sad"}}
	rel := memory.NewRelationship("u", "c", 0, testNow)
	UpdateTriggers(rel, "배신자", c, Joy, testNow)
	if rel.Triggers[0].Emotion != "joy" {
		t.Fatalf("override must win, got %q", rel.Triggers[0].Emotion)
	}

	// A learned trigger with no mapping defaults to anger.
	rel = memory.NewRelationship("u", "c", 0, testNow)
	rel.Triggers = []memory.TriggerKeyword{{Keyword: "오이", Emotion: "anger", OccurrenceCount: 1, Confidence: 0.5}}
	UpdateTriggers(rel, "오이 먹어", &character.Character{}, "", testNow)
	if rel.Triggers[0].OccurrenceCount != 2 {
		t.Fatalf("learned trigger must be re-detected, got %+v", rel.Triggers[0])
	}

	UpdateTriggers(rel, "아무 말", nil, "", testNow)
	if len(rel.Triggers) != 1 {
		t.Fatal("no keyword must leave triggers untouched")
	}
}

func TestUpdateTriggers_EvictsLeastConfident(t *testing.T) {
	t.Parallel()

	rel := memory.NewRelationship("u", "c", 0, testNow)
	for i := range memory.MaxTriggerKeywords {
		rel.Triggers = append(rel.Triggers, memory.TriggerKeyword{
			Keyword: strings.Repeat("가", i+2), Confidence: 0.6 + float64(i)*0.01,
		})
	}
	c := &character.Character{EmotionTriggers: map[string]string{"새말": "fear"}}
	UpdateTriggers(rel, "새말", c, "", testNow)

	if len(rel.Triggers) != memory.MaxTriggerKeywords {
		t.Fatalf("bound: want %d, got %d", memory.MaxTriggerKeywords, len(rel.Triggers))
	}
	for _, tr := range rel.Triggers {
		if tr.Keyword == "새말" {
			t.Fatal("new trigger at 0.5 confidence must be the one evicted")
		}
	}
}

func TestShouldRecordMemory(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("가", 31)
	tests := []struct {
		name      string
		user, chr string
		emotion   Emotion
		want      bool
	}{
		{"strong emotion", "음", "응", Anger, true},
		{"weak emotion", "음", "응", Sadness, false},
		{"special keyword", "우리 약속해", "응", "", true},
		{"long user message in runes", long, "", "", true},
		{"thirty runes is not long", strings.Repeat("가", 30), "", "", false},
		{"plain", "안녕", "어", "", false},
	}
	for _, tt := range tests {
		if got := ShouldRecordMemory(tt.user, tt.chr, tt.emotion); got != tt.want {
			t.Errorf("%s: want %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestNewCoreMemory_Truncation(t *testing.T) {
	t.Parallel()

	msg := strings.Repeat("나", 51)
	m := NewCoreMemory(msg, strings.Repeat("다", 120), Joy, []string{"형"}, testNow)
	if m.Summary != "유저: "+strings.Repeat("나", 50)+"..." {
		t.Fatalf("summary: got %q", m.Summary)
	}
	if len([]rune(m.MemorableQuote)) != 100 {
		t.Fatalf("quote: want 100 runes, got %d", len([]rune(m.MemorableQuote)))
	}
	if NewCoreMemory("짧다", "", "", nil, testNow).MemorableQuote != "" {
		t.Fatal("empty character message must yield no quote")
	}
}

func TestAddCoreMemory_Bounded(t *testing.T) {
	t.Parallel()

	rel := memory.NewRelationship("u", "c", 0, testNow)
	for i := range 15 {
		AddCoreMemory(rel, memory.CoreMemory{Summary: string(rune('a' + i))})
	}
	if len(rel.CoreMemories) != memory.MaxCoreMemories || rel.CoreMemories[0].Summary != "f" {
		t.Fatalf("want newest 10 starting at f, got %d starting %q", len(rel.CoreMemories), rel.CoreMemories[0].Summary)
	}
}

func TestApply_Reactions(t *testing.T) {
	t.Parallel()

	c := &character.Character{ID: "c", EmotionTriggers: map[string]string{"형": "anger"}}
	turn := Turn{UserMessage: "그래", CharacterResponse: "흥"}

	tests := []struct {
		name     string
		reaction Reaction
		intimacy float64
		stats    memory.EmotionalStats
		memories int
	}{
		// base 0.1 + balanced 0.1
		{"none", NoReaction, 0.2, memory.EmotionalStats{}, 0},
		// heart 0.3 + base 0.1 + joy 0.2 + balanced 0.1
		{"heart", Heart, 0.7, memory.EmotionalStats{JoyPeaks: 1}, 1},
		// base 0.1 - anger 0.1 + balanced 0.1
		{"anger", AngerMark, 0.1, memory.EmotionalStats{AngerPeaks: 1}, 1},
		{"fire", Fire, 0.2, memory.EmotionalStats{ExcitementPeaks: 1}, 1},
		{"star", Star, 0.2, memory.EmotionalStats{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rel := memory.NewRelationship("u", "c", 0, testNow)
			Apply(rel, c, turn, tt.reaction, testNow)
			if !approx(rel.Intimacy, tt.intimacy) {
				t.Errorf("intimacy: want %v, got %v", tt.intimacy, rel.Intimacy)
			}
			if rel.EmotionalStats != tt.stats {
				t.Errorf("stats: want %+v, got %+v", tt.stats, rel.EmotionalStats)
			}
			if len(rel.CoreMemories) != tt.memories {
				t.Errorf("memories: want %d, got %d", tt.memories, len(rel.CoreMemories))
			}
			if rel.TotalTurns != 1 || len(rel.Dominance.History) != 1 {
				t.Errorf("turn bookkeeping: turns %d history %d", rel.TotalTurns, len(rel.Dominance.History))
			}
		})
	}
}

func TestApply_AngerReactionLearnsFromCharacterLine(t *testing.T) {
	t.Parallel()

	c := &character.Character{ID: "c", EmotionTriggers: map[string]string{"형": "sad"}}
	rel := memory.NewRelationship("u", "c", 0, testNow)
	Apply(rel, c, Turn{UserMessage: "뭐?", CharacterResponse: "우리 형이 그랬어"}, AngerMark, testNow)

	if len(rel.Triggers) != 1 || rel.Triggers[0].Keyword != "형" || rel.Triggers[0].Emotion != "anger" {
		t.Fatalf("triggers: got %+v", rel.Triggers)
	}
}

func TestApply_InvariantsOverManyTurns(t *testing.T) {
	t.Parallel()

	c := &character.Character{ID: "c", EmotionTriggers: map[string]string{"형": "anger"}}
	rel := memory.NewRelationship("u", "c", 0.5, testNow)
	turns := []Turn{
		{UserMessage: "형 얘기 해줘 좋아", CharacterResponse: "싫어 짜증나"},
		{UserMessage: "미안 사랑해", CharacterResponse: "알겠어 좋아"},
		{UserMessage: strings.Repeat("길게 ", 20), CharacterResponse: "우와 대단해"},
	}
	var prev memory.EmotionalStats
	for i := range 200 {
		Apply(rel, c, turns[i%len(turns)], Reaction(i%5), testNow)
		s := rel.EmotionalStats
		if s.JoyPeaks < prev.JoyPeaks || s.AngerPeaks < prev.AngerPeaks || s.ExcitementPeaks < prev.ExcitementPeaks {
			t.Fatal("emotional counters must never decrease")
		}
		prev = s
		if rel.Intimacy < 0 || rel.Intimacy > 10 || rel.Dominance.Score < -1 || rel.Dominance.Score > 1 {
			t.Fatalf("out of range: intimacy %v dominance %v", rel.Intimacy, rel.Dominance.Score)
		}
		if len(rel.CoreMemories) > memory.MaxCoreMemories || len(rel.Triggers) > memory.MaxTriggerKeywords ||
			len(rel.Dominance.History) > memory.MaxDominanceHistory {
			t.Fatal("bounded collection overflow")
		}
	}
}

func TestParseReaction(t *testing.T) {
	t.Parallel()

	for emoji, want := range map[string]Reaction{"❤️": Heart, "❤": Heart, "💢": AngerMark, "🔥": Fire, "⭐": Star} {
		got, err := ParseReaction(emoji)
		if err != nil || got != want {
			t.Errorf("ParseReaction(%q): want %v, got (%v, %v)", emoji, want, got, err)
		}
	}
	if _, err := ParseReaction("👍"); err == nil {
		t.Fatal("unknown emoji must be rejected")
	}
	if Heart.Confirmation("주창윤") == "" || NoReaction.Confirmation("x") != "" {
		t.Fatal("confirmation messages")
	}
}

func TestPromptContext(t *testing.T) {
	t.Parallel()

	rel := memory.NewRelationship("u", "c", 0.4, testNow)
	rel.Intimacy = 5.5
	rel.Triggers = []memory.TriggerKeyword{{Keyword: "오이"}}
	rel.CoreMemories = []memory.CoreMemory{{Summary: "유저: 약속", MemorableQuote: "기억할게"}}
	c := &character.Character{EmotionTriggers: map[string]string{"형": "anger", "오이": "anger"}}

	got := PromptContext(rel, c)
	for _, want := range []string{
		"관계 단계: 절친 (친밀도: 5.5/10.0)",
		"캐릭터가 관계를 주도 (dominance: 0.40)",
		"- 유저: 약속 (\"기억할게\")",
		"오이, 형",
		"더 당당하고 도도하게",
		"매우 친함",
		"핵심 기억의 키워드",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt context missing %q:\n%s", want, got)
		}
	}

	empty := PromptContext(memory.NewRelationship("u", "c", 0, testNow), nil)
	if !strings.Contains(empty, "[핵심 기억]\n없음") || !strings.Contains(empty, "거리감을 유지") {
		t.Errorf("empty relationship context:\n%s", empty)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()

	if IntimacyLabel(0.5) != "모르는 사이" || IntimacyLabel(9) != "연인" {
		t.Error("intimacy labels")
	}
	if Familiarity(5) != "친밀함" || Familiarity(2) != "알고 지내는 사이" || Familiarity(1.9) != "낯선 사이" {
		t.Error("familiarity labels")
	}
}
