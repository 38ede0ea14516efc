// Package store persists pins in DuckDB. Deletion is always a soft delete:
// rows are archived, never removed, and every read filters archived rows
// out.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/loveofminnesota/pinmap/internal/pin"
)

const schema = `
CREATE TABLE IF NOT EXISTS pins (
	id          VARCHAR PRIMARY KEY,
	owner_id    VARCHAR NOT NULL DEFAULT '',
	lat         DOUBLE  NOT NULL DEFAULT 0,
	lng         DOUBLE  NOT NULL DEFAULT 0,
	boundary    VARCHAR,
	description VARCHAR NOT NULL DEFAULT '',
	media_url   VARCHAR NOT NULL DEFAULT '',
	emoji       VARCHAR NOT NULL DEFAULT '',
	category    VARCHAR NOT NULL DEFAULT '',
	visibility  VARCHAR NOT NULL DEFAULT 'public',
	archived    BOOLEAN NOT NULL DEFAULT FALSE,
	views       INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
)`

const pinColumns = `id, owner_id, lat, lng, boundary, description, media_url,
	emoji, category, visibility, archived, views, created_at`

// Store is the pin repository.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// New creates a store and ensures the schema exists.
func New(db *sql.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating pins schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// List returns every pin visible to viewer: public rows plus the viewer's
// own only_me rows, never archived ones. The owner match excludes empty
// owners so ownerless only_me rows stay hidden from anonymous viewers,
// matching pin.Entity.VisibleTo.
func (s *Store) List(ctx context.Context, viewer string) ([]pin.Entity, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM pins
		 WHERE NOT archived
		   AND (visibility = ? OR (owner_id = ? AND owner_id != ''))
		 ORDER BY created_at`, pinColumns),
		string(pin.VisibilityPublic), viewer)
	if err != nil {
		return nil, fmt.Errorf("listing pins: %w", err)
	}
	defer rows.Close()

	entities := []pin.Entity{}
	for rows.Next() {
		e, err := scanPin(rows)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping unreadable pin row")
			continue
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// Get returns a pin by id; ok is false when no live row exists.
func (s *Store) Get(ctx context.Context, id string) (pin.Entity, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM pins WHERE id = ? AND NOT archived`, pinColumns), id)
	e, err := scanPin(row)
	if err == sql.ErrNoRows {
		return pin.Entity{}, false, nil
	}
	if err != nil {
		return pin.Entity{}, false, fmt.Errorf("reading pin %s: %w", id, err)
	}
	return e, true, nil
}

// Create inserts a pin, assigning an id and creation time when absent.
func (s *Store) Create(ctx context.Context, e pin.Entity) (pin.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Visibility == "" {
		e.Visibility = pin.VisibilityPublic
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var boundary any
	if len(e.Boundary) > 0 {
		data, err := json.Marshal(geojson.NewGeometry(e.Boundary))
		if err != nil {
			return pin.Entity{}, fmt.Errorf("encoding boundary: %w", err)
		}
		boundary = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pins (id, owner_id, lat, lng, boundary, description,
			media_url, emoji, category, visibility, archived, views, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, 0, ?)`,
		e.ID, e.OwnerID, e.Lat, e.Lng, boundary, e.Description,
		e.MediaURL, e.Emoji, e.Category, string(e.Visibility), e.CreatedAt)
	if err != nil {
		return pin.Entity{}, fmt.Errorf("inserting pin: %w", err)
	}
	e.Archived = false
	e.Views = 0
	return e, nil
}

// Archive soft-deletes the pin. Filtering on "not already archived" makes a
// double submission a no-op; archived reports whether this call flipped the
// row.
func (s *Store) Archive(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pins SET archived = TRUE WHERE id = ? AND NOT archived`, id)
	if err != nil {
		return false, fmt.Errorf("archiving pin %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordView increments the view counter and returns the new count.
func (s *Store) RecordView(ctx context.Context, id string) (int, error) {
	var views int
	err := s.db.QueryRowContext(ctx,
		`UPDATE pins SET views = views + 1
		 WHERE id = ? AND NOT archived RETURNING views`, id).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("pin %s not found", id)
	}
	if err != nil {
		return 0, fmt.Errorf("recording view for pin %s: %w", id, err)
	}
	return views, nil
}

// ViewCount returns the current view count.
func (s *Store) ViewCount(ctx context.Context, id string) (int, error) {
	var views int
	err := s.db.QueryRowContext(ctx,
		`SELECT views FROM pins WHERE id = ? AND NOT archived`, id).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("pin %s not found", id)
	}
	if err != nil {
		return 0, fmt.Errorf("reading view count for pin %s: %w", id, err)
	}
	return views, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPin(row rowScanner) (pin.Entity, error) {
	var (
		e          pin.Entity
		boundary   sql.NullString
		visibility string
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.Lat, &e.Lng, &boundary,
		&e.Description, &e.MediaURL, &e.Emoji, &e.Category, &visibility,
		&e.Archived, &e.Views, &e.CreatedAt)
	if err != nil {
		return pin.Entity{}, err
	}
	e.Visibility = pin.Visibility(visibility)
	if boundary.Valid && boundary.String != "" {
		g, err := geojson.UnmarshalGeometry([]byte(boundary.String))
		if err != nil {
			return pin.Entity{}, fmt.Errorf("decoding boundary: %w", err)
		}
		if poly, ok := g.Geometry().(orb.Polygon); ok {
			e.Boundary = poly
		}
	}
	return e, nil
}
