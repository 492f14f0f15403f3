package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the locations and characters tables. Execute it
// via [PostgresDirectory.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS locations (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    atmosphere  TEXT NOT NULL DEFAULT '',
    tags        JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS characters (
    id          TEXT PRIMARY KEY,
    location    TEXT NOT NULL,
    name        TEXT NOT NULL,
    position    INTEGER NOT NULL DEFAULT 0,
    data        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_characters_location ON characters(location, position);
`

// DB is the database interface used by [PostgresDirectory]. Both
// *pgxpool.Pool and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresDirectory is a [Directory] backed by PostgreSQL. The full character
// record lives in the data JSONB column; id, location and position are
// broken out for lookups and roster ordering.
type PostgresDirectory struct {
	db DB
}

var _ Directory = (*PostgresDirectory)(nil)

// NewPostgresDirectory creates a directory over db. The caller is responsible
// for calling [PostgresDirectory.Migrate] first.
func NewPostgresDirectory(db DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Migrate executes the [Schema] DDL.
func (d *PostgresDirectory) Migrate(ctx context.Context) error {
	if _, err := d.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("character: migrate: %w", err)
	}
	return nil
}

// Upsert creates or replaces a character. position orders the roster of its
// location.
func (d *PostgresDirectory) Upsert(ctx context.Context, c *Character, position int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("character: marshal %q: %w", c.ID, err)
	}

	const query = `
		INSERT INTO characters (id, location, name, position, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
		    location   = EXCLUDED.location,
		    name       = EXCLUDED.name,
		    position   = EXCLUDED.position,
		    data       = EXCLUDED.data,
		    updated_at = now()`

	if _, err := d.db.Exec(ctx, query, c.ID, c.Location, c.Name, position, data); err != nil {
		return fmt.Errorf("character: upsert %q: %w", c.ID, err)
	}
	return nil
}

// UpsertLocation creates or replaces a location.
func (d *PostgresDirectory) UpsertLocation(ctx context.Context, l *Location) error {
	if l.ID == "" {
		return errors.New("character: location id must not be empty")
	}
	tags, err := json.Marshal(emptySlice(l.Tags))
	if err != nil {
		return fmt.Errorf("character: marshal location tags: %w", err)
	}

	const query = `
		INSERT INTO locations (id, name, description, atmosphere, tags)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    name        = EXCLUDED.name,
		    description = EXCLUDED.description,
		    atmosphere  = EXCLUDED.atmosphere,
		    tags        = EXCLUDED.tags`

	if _, err := d.db.Exec(ctx, query, l.ID, l.Name, l.Description, l.Atmosphere, tags); err != nil {
		return fmt.Errorf("character: upsert location %q: %w", l.ID, err)
	}
	return nil
}

// Import upserts every location and character of f, keeping the file order as
// roster position.
func (d *PostgresDirectory) Import(ctx context.Context, f *File) error {
	if err := f.Validate(); err != nil {
		return err
	}
	for i := range f.Locations {
		if err := d.UpsertLocation(ctx, &f.Locations[i]); err != nil {
			return err
		}
	}
	for i := range f.Characters {
		if err := d.Upsert(ctx, &f.Characters[i], i); err != nil {
			return err
		}
	}
	return nil
}

// Character implements [Directory].
func (d *PostgresDirectory) Character(ctx context.Context, id string) (*Character, error) {
	var data []byte
	err := d.db.QueryRow(ctx, `SELECT data FROM characters WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("character", id)
		}
		return nil, fmt.Errorf("character: get %q: %w", id, err)
	}
	var c Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("character: unmarshal %q: %w", id, err)
	}
	return &c, nil
}

// ByLocation implements [Directory].
func (d *PostgresDirectory) ByLocation(ctx context.Context, locationID string) ([]Character, error) {
	const query = `SELECT data FROM characters WHERE location = $1 ORDER BY position, id`

	rows, err := d.db.Query(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("character: list %q: %w", locationID, err)
	}
	defer rows.Close()

	out := []Character{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("character: scan: %w", err)
		}
		var c Character
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("character: unmarshal: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("character: rows: %w", err)
	}
	return out, nil
}

// Location implements [Directory]. A location with characters but no row of
// its own resolves to a bare Location named after its id.
func (d *PostgresDirectory) Location(ctx context.Context, id string) (*Location, error) {
	const query = `SELECT id, name, description, atmosphere, tags FROM locations WHERE id = $1`

	var (
		l    Location
		tags []byte
	)
	err := d.db.QueryRow(ctx, query, id).Scan(&l.ID, &l.Name, &l.Description, &l.Atmosphere, &tags)
	if err == nil {
		if err := json.Unmarshal(tags, &l.Tags); err != nil {
			return nil, fmt.Errorf("character: unmarshal location tags: %w", err)
		}
		return &l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("character: get location %q: %w", id, err)
	}

	var n int
	if err := d.db.QueryRow(ctx, `SELECT count(*) FROM characters WHERE location = $1`, id).Scan(&n); err != nil {
		return nil, fmt.Errorf("character: count %q: %w", id, err)
	}
	if n == 0 {
		return nil, notFound("location", id)
	}
	return &Location{ID: id, Name: id}, nil
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
