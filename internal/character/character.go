// Package character holds the reference data the scene engine reads but never
// writes: characters (persona, emotion triggers, default dominance, mood and
// posture) and the locations they inhabit.
//
// The [Directory] interface is implemented by [YAMLDirectory], which serves a
// hot-swappable snapshot of a YAML file, and by [PostgresDirectory], which
// reads the characters and locations tables.
package character

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a character or location id is unknown.
var ErrNotFound = errors.New("character: not found")

// Character is the immutable-per-turn identity of a non-player character.
type Character struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location" json:"location"`

	// Personality is free text fed into generation prompts.
	Personality     string   `yaml:"personality" json:"personality"`
	SpeechStyle     string   `yaml:"speech_style" json:"speech_style"`
	SpeechExamples  []string `yaml:"speech_examples" json:"speech_examples"`
	Background      string   `yaml:"background" json:"background"`
	Secrets         []string `yaml:"secrets" json:"secrets"`
	SensitiveTopics []string `yaml:"sensitive_topics" json:"sensitive_topics"`

	// UserRelationship labels the starting stance toward the user
	// ("stranger", "rival", ...).
	UserRelationship string `yaml:"user_relationship" json:"user_relationship"`

	// DominanceDefault seeds a new relationship's dominance score, in [-1, 1].
	DominanceDefault float64 `yaml:"dominance_default" json:"dominance_default"`

	// EmotionTriggers maps keywords to the emotion they provoke.
	EmotionTriggers map[string]string `yaml:"emotion_triggers" json:"emotion_triggers"`

	// Tags are free-form labels. The tags "male"/"남자들" and
	// "female"/"여자들" place the character in an addressable group.
	Tags []string `yaml:"tags" json:"tags"`

	Ability     string `yaml:"ability" json:"ability"`
	AbilityRank string `yaml:"ability_rank" json:"ability_rank"`

	DefaultMood    string `yaml:"default_emotion" json:"default_emotion"`
	DefaultPosture string `yaml:"default_posture" json:"default_posture"`
	VoiceTone      string `yaml:"voice_tone" json:"voice_tone"`
}

// Location is a place characters are rostered at.
type Location struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Atmosphere  string   `yaml:"atmosphere" json:"atmosphere"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// Validate checks the character for logical consistency. It returns a joined
// error describing every violation found, or nil if the character is valid.
func (c *Character) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("character: id must not be empty"))
	}
	if c.Name == "" {
		errs = append(errs, fmt.Errorf("character %q: name must not be empty", c.ID))
	}
	if c.Location == "" {
		errs = append(errs, fmt.Errorf("character %q: location must not be empty", c.ID))
	}
	if c.DominanceDefault < -1 || c.DominanceDefault > 1 {
		errs = append(errs, fmt.Errorf("character %q: dominance_default must be in [-1, 1], got %g", c.ID, c.DominanceDefault))
	}
	return errors.Join(errs...)
}

// Mood returns the default mood, "neutral" when unset.
func (c *Character) Mood() string {
	if c.DefaultMood == "" {
		return "neutral"
	}
	return c.DefaultMood
}

// Posture returns the default posture, "standing" when unset.
func (c *Character) Posture() string {
	if c.DefaultPosture == "" {
		return "standing"
	}
	return c.DefaultPosture
}

// ShortName returns the last two runes of the name, the form characters are
// commonly called by. Names of two runes or fewer are returned unchanged.
func (c *Character) ShortName() string {
	r := []rune(c.Name)
	if len(r) <= 2 {
		return c.Name
	}
	return string(r[len(r)-2:])
}

// Directory is the read-only character/location lookup used by the engine.
// Implementations must be safe for concurrent use.
type Directory interface {
	// Character returns the character with id or an error wrapping
	// [ErrNotFound].
	Character(ctx context.Context, id string) (*Character, error)

	// ByLocation returns the roster of a location in its configured order.
	// An unknown location yields an empty roster, not an error.
	ByLocation(ctx context.Context, locationID string) ([]Character, error)

	// Location returns the location with id or an error wrapping
	// [ErrNotFound].
	Location(ctx context.Context, id string) (*Location, error)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}
