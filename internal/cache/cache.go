// Package cache is the durable local store for camera state and panel
// placements, scoped per project.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"liner-layout/internal/panel"
	"liner-layout/pkg/geometry"
)

const schema = `
CREATE TABLE IF NOT EXISTS camera (
    project  TEXT PRIMARY KEY,
    scale    REAL NOT NULL,
    offset_x REAL NOT NULL,
    offset_y REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS positions (
    project  TEXT NOT NULL,
    panel_id TEXT NOT NULL,
    x        REAL NOT NULL,
    y        REAL NOT NULL,
    rotation REAL NOT NULL,
    shape    TEXT NOT NULL,
    PRIMARY KEY (project, panel_id)
);`

// Cache is an open cache database.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: mkdir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Scope returns the view of the cache for one project.
func (c *Cache) Scope(project string) *Scope {
	return &Scope{db: c.db, project: project}
}

// Scope is a project-scoped view. It implements scene.PositionCache and
// scene.CameraCache.
type Scope struct {
	db      *sql.DB
	project string
}

// LoadPositions returns every valid cached placement. Rows that fail
// validation are deleted.
func (s *Scope) LoadPositions() (map[string]panel.Placement, error) {
	rows, err := s.db.Query(`SELECT panel_id, x, y, rotation, shape FROM positions WHERE project = ?`, s.project)
	if err != nil {
		return nil, fmt.Errorf("cache: load positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]panel.Placement)
	var bad []string
	for rows.Next() {
		var (
			id        string
			x, y, rot any
			shape     string
		)
		if err := rows.Scan(&id, &x, &y, &rot, &shape); err != nil {
			return nil, fmt.Errorf("cache: scan position: %w", err)
		}
		pl, ok := placementOf(x, y, rot, shape)
		if !ok {
			log.Printf("cache: drop %s: non-numeric position", id)
			bad = append(bad, id)
			continue
		}
		if err := panel.ValidatePlacement(pl); err != nil {
			log.Printf("cache: drop %s: %v", id, err)
			bad = append(bad, id)
			continue
		}
		out[id] = pl
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: load positions: %w", err)
	}
	rows.Close()

	for _, id := range bad {
		if err := s.DeletePosition(id); err != nil {
			log.Printf("cache: %v", err)
		}
	}
	return out, nil
}

// placementOf builds a placement from raw column values. Text left in a
// REAL column by another writer is rejected.
func placementOf(x, y, rot any, shape string) (panel.Placement, bool) {
	var pl panel.Placement
	var okX, okY, okRot bool
	pl.X, okX = asFloat(x)
	pl.Y, okY = asFloat(y)
	pl.Rotation, okRot = asFloat(rot)
	pl.Shape = panel.Shape(shape)
	return pl, okX && okY && okRot
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// SavePosition upserts the placement for id.
func (s *Scope) SavePosition(id string, pl panel.Placement) error {
	if err := panel.ValidatePlacement(pl); err != nil {
		return fmt.Errorf("cache: save %s: %w", id, err)
	}
	_, err := s.db.Exec(`
        INSERT INTO positions (project, panel_id, x, y, rotation, shape)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (project, panel_id) DO UPDATE SET
            x = excluded.x, y = excluded.y, rotation = excluded.rotation, shape = excluded.shape
    `, s.project, id, pl.X, pl.Y, pl.Rotation, string(pl.Shape))
	if err != nil {
		return fmt.Errorf("cache: save %s: %w", id, err)
	}
	return nil
}

// DeletePosition removes the placement for id.
func (s *Scope) DeletePosition(id string) error {
	if _, err := s.db.Exec(`DELETE FROM positions WHERE project = ? AND panel_id = ?`, s.project, id); err != nil {
		return fmt.Errorf("cache: delete %s: %w", id, err)
	}
	return nil
}

// LoadCamera returns the cached camera. A malformed row is deleted and
// reported as absent.
func (s *Scope) LoadCamera() (geometry.Camera, bool, error) {
	var cam geometry.Camera
	err := s.db.QueryRow(`SELECT scale, offset_x, offset_y FROM camera WHERE project = ?`, s.project).
		Scan(&cam.Scale, &cam.OffsetX, &cam.OffsetY)
	if errors.Is(err, sql.ErrNoRows) {
		return geometry.Camera{}, false, nil
	}
	if err != nil {
		return geometry.Camera{}, false, fmt.Errorf("cache: load camera: %w", err)
	}
	if !cam.IsValid() {
		log.Printf("cache: drop camera for %s: %+v", s.project, cam)
		if _, err := s.db.Exec(`DELETE FROM camera WHERE project = ?`, s.project); err != nil {
			return geometry.Camera{}, false, fmt.Errorf("cache: drop camera: %w", err)
		}
		return geometry.Camera{}, false, nil
	}
	return cam, true, nil
}

// SaveCamera upserts the camera.
func (s *Scope) SaveCamera(cam geometry.Camera) error {
	if !cam.IsValid() {
		return fmt.Errorf("cache: save camera: invalid %+v", cam)
	}
	_, err := s.db.Exec(`
        INSERT INTO camera (project, scale, offset_x, offset_y)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (project) DO UPDATE SET
            scale = excluded.scale, offset_x = excluded.offset_x, offset_y = excluded.offset_y
    `, s.project, cam.Scale, cam.OffsetX, cam.OffsetY)
	if err != nil {
		return fmt.Errorf("cache: save camera: %w", err)
	}
	return nil
}
