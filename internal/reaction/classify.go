package reaction

import (
	"strings"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/scene"
)

// Scope is how widely the user addressed the room.
type Scope string

const (
	// ScopeAll addresses everyone present.
	ScopeAll Scope = "all"
	// ScopeSelective lets every character decide individually.
	ScopeSelective Scope = "selective"
	// ScopeMen addresses the male characters.
	ScopeMen Scope = "남자들"
	// ScopeWomen addresses the female characters.
	ScopeWomen Scope = "여자들"
)

// Type is a character's role in a turn.
type Type string

const (
	TypeMain     Type = "main"
	TypeReaction Type = "reaction"
	TypeIgnore   Type = "ignore"
)

var fullScopeMarkers = []string{
	"모두", "다들", "여기 있는 사람들", "전부",
	"너희들", "니들", "야 다들", "모두에게", "다들에게",
}

// groupMarkers is ordered: the first group with a matching keyword wins.
var groupMarkers = []struct {
	scope    Scope
	keywords []string
}{
	{ScopeMen, []string{"남자", "남성", "형들"}},
	{ScopeWomen, []string{"여자", "여성", "언니들"}},
}

// ClassifyScope inspects message for group-address markers.
func ClassifyScope(message string) Scope {
	lower := strings.ToLower(message)
	for _, m := range fullScopeMarkers {
		if strings.Contains(lower, m) {
			return ScopeAll
		}
	}
	for _, g := range groupMarkers {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				return g.scope
			}
		}
	}
	return ScopeSelective
}

// Mentioned reports whether text names c, either in full or by the short
// form. Matching is by substring, so a short name inside a longer word
// counts.
func Mentioned(c *character.Character, text string) bool {
	if c.Name == "" {
		return false
	}
	if strings.Contains(text, c.Name) || strings.Contains(strings.ToLower(text), strings.ToLower(c.Name)) {
		return true
	}
	// The bare short form also matches its honorific variants (인하야,
	// 인하씨, ...).
	return strings.Contains(text, c.ShortName())
}

// Decide picks c's role in a turn. sc may be nil, in which case nobody is
// recent and nobody has lost attention. A group scope only changes the
// outcome by withholding the recent-speaker promotion.
func Decide(c *character.Character, sc *scene.Scene, scope Scope, mentioned bool) Type {
	if mentioned {
		return TypeMain
	}
	if scope == ScopeAll {
		if sc.IsRecent(c.ID) {
			return TypeMain
		}
		return TypeReaction
	}
	if scope == ScopeSelective && sc.IsRecent(c.ID) {
		return TypeMain
	}
	if sc.AttentionOf(c.ID) == scene.AttentionNone {
		return TypeIgnore
	}
	return TypeReaction
}
