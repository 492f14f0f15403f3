// Package mock provides a call-recording test double for
// [character.Directory].
package mock

import (
	"context"
	"sync"

	"github.com/synk-web/synk/internal/character"
)

// Directory is a configurable [character.Directory]. It serves Characters and
// Locations from memory; Err, when non-nil, is returned by every method.
type Directory struct {
	mu sync.Mutex

	Characters []character.Character
	Locations  []character.Location
	Err        error

	calls []string
}

var _ character.Directory = (*Directory)(nil)

// Calls returns the names of the invoked methods, in order.
func (d *Directory) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Character implements [character.Directory].
func (d *Directory) Character(_ context.Context, id string) (*character.Character, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "Character")
	if d.Err != nil {
		return nil, d.Err
	}
	for _, c := range d.Characters {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, character.ErrNotFound
}

// ByLocation implements [character.Directory].
func (d *Directory) ByLocation(_ context.Context, locationID string) ([]character.Character, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "ByLocation")
	if d.Err != nil {
		return nil, d.Err
	}
	var out []character.Character
	for _, c := range d.Characters {
		if c.Location == locationID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Location implements [character.Directory].
func (d *Directory) Location(_ context.Context, id string) (*character.Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "Location")
	if d.Err != nil {
		return nil, d.Err
	}
	for _, l := range d.Locations {
		if l.ID == id {
			return &l, nil
		}
	}
	for _, c := range d.Characters {
		if c.Location == id {
			return &character.Location{ID: id, Name: id}, nil
		}
	}
	return nil, character.ErrNotFound
}
