package profile

import (
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/synk-web/synk/pkg/memory"
)

// SimilarityThreshold is the Jaro-Winkler score at or above which two
// entries are treated as the same fact.
const SimilarityThreshold = 0.92

// Merge folds ex into p. Nickname and ability overwrite when present;
// list entries are appended unless a near-duplicate is already stored, and
// the bounded lists drop their oldest entries. An action is recorded only
// when the scene has a location.
func Merge(p *memory.UserProfile, ex Extraction, sc Scene, now time.Time) {
	if n := strings.TrimSpace(ex.Nickname); n != "" && n != "null" {
		p.Nickname = n
	}
	if ex.Ability != nil && ex.Ability.Name != "" {
		p.Ability = *ex.Ability
	}
	for _, t := range ex.Traits {
		p.Traits = addBounded(p.Traits, t, memory.MaxTraits)
	}
	for _, f := range ex.Facts {
		p.Facts = addBounded(p.Facts, f, memory.MaxFacts)
	}
	for _, l := range ex.Likes {
		p.Likes = addBounded(p.Likes, l, 0)
	}
	for _, d := range ex.Dislikes {
		p.Dislikes = addBounded(p.Dislikes, d, 0)
	}
	if a := strings.TrimSpace(ex.Action); a != "" && a != "null" && sc.Location != "" {
		p.Actions = append(p.Actions, memory.UserAction{
			Action:             a,
			Location:           sc.Location,
			InvolvedCharacters: append([]string(nil), sc.Characters...),
			Timestamp:          now,
		})
		if n := len(p.Actions); n > memory.MaxActions {
			p.Actions = append([]memory.UserAction(nil), p.Actions[n-memory.MaxActions:]...)
		}
	}
	p.UpdatedAt = now
}

// addBounded appends entry to list unless it is blank or a near-duplicate,
// then trims list to its newest limit entries. limit 0 means unbounded.
func addBounded(list []string, entry string, limit int) []string {
	entry = strings.TrimSpace(entry)
	if entry == "" || containsSimilar(list, entry) {
		return list
	}
	list = append(list, entry)
	if limit > 0 && len(list) > limit {
		list = append([]string(nil), list[len(list)-limit:]...)
	}
	return list
}

func containsSimilar(list []string, entry string) bool {
	e := strings.ToLower(entry)
	for _, have := range list {
		h := strings.ToLower(have)
		if h == e || matchr.JaroWinkler(h, e, false) >= SimilarityThreshold {
			return true
		}
	}
	return false
}
