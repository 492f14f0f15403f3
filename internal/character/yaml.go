package character

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a characters YAML file.
type File struct {
	Locations  []Location  `yaml:"locations"`
	Characters []Character `yaml:"characters"`
}

// Validate checks every character and rejects duplicate ids.
func (f *File) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(f.Characters))
	for i := range f.Characters {
		c := &f.Characters[i]
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
		if _, dup := seen[c.ID]; dup && c.ID != "" {
			errs = append(errs, fmt.Errorf("character %q: duplicate id", c.ID))
		}
		seen[c.ID] = struct{}{}
	}
	for _, l := range f.Locations {
		if l.ID == "" {
			errs = append(errs, errors.New("character: location id must not be empty"))
		}
	}
	return errors.Join(errs...)
}

// ParseFile decodes and validates a characters YAML document. Unknown fields
// are rejected.
func ParseFile(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("character: decode yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses the characters file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("character: read %s: %w", path, err)
	}
	return ParseFile(data)
}

// snapshot is an indexed, immutable view of a File.
type snapshot struct {
	byID       map[string]*Character
	byLocation map[string][]Character
	locations  map[string]*Location
}

func index(f *File) *snapshot {
	s := &snapshot{
		byID:       make(map[string]*Character, len(f.Characters)),
		byLocation: make(map[string][]Character),
		locations:  make(map[string]*Location, len(f.Locations)),
	}
	for i := range f.Characters {
		c := f.Characters[i]
		s.byID[c.ID] = &c
		s.byLocation[c.Location] = append(s.byLocation[c.Location], c)
	}
	for i := range f.Locations {
		l := f.Locations[i]
		s.locations[l.ID] = &l
	}
	// Locations referenced only by characters still resolve.
	for loc := range s.byLocation {
		if _, ok := s.locations[loc]; !ok {
			s.locations[loc] = &Location{ID: loc, Name: loc}
		}
	}
	return s
}

// YAMLDirectory serves a [File] snapshot. [YAMLDirectory.Replace] swaps the
// snapshot atomically, so readers never observe a half-loaded file.
type YAMLDirectory struct {
	snap atomic.Pointer[snapshot]
}

var _ Directory = (*YAMLDirectory)(nil)

// NewYAMLDirectory returns a directory over f.
func NewYAMLDirectory(f *File) *YAMLDirectory {
	d := &YAMLDirectory{}
	d.Replace(f)
	return d
}

// Replace atomically swaps the served data for f.
func (d *YAMLDirectory) Replace(f *File) {
	d.snap.Store(index(f))
}

// Character implements [Directory].
func (d *YAMLDirectory) Character(_ context.Context, id string) (*Character, error) {
	c, ok := d.snap.Load().byID[id]
	if !ok {
		return nil, notFound("character", id)
	}
	cp := *c
	return &cp, nil
}

// ByLocation implements [Directory].
func (d *YAMLDirectory) ByLocation(_ context.Context, locationID string) ([]Character, error) {
	roster := d.snap.Load().byLocation[locationID]
	out := make([]Character, len(roster))
	copy(out, roster)
	return out, nil
}

// Location implements [Directory].
func (d *YAMLDirectory) Location(_ context.Context, id string) (*Location, error) {
	l, ok := d.snap.Load().locations[id]
	if !ok {
		return nil, notFound("location", id)
	}
	cp := *l
	return &cp, nil
}
