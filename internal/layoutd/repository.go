package layoutd

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"liner-layout/internal/remote"
)

// ErrNotFound is returned for unknown panels and credentials.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id       TEXT PRIMARY KEY,
    login    TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS panels (
    project      TEXT NOT NULL,
    id           TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    x            REAL NOT NULL,
    y            REAL NOT NULL,
    width_ft     REAL NOT NULL,
    height_ft    REAL NOT NULL,
    rotation_deg REAL NOT NULL,
    shape        TEXT NOT NULL,
    label        TEXT NOT NULL DEFAULT '',
    color        TEXT NOT NULL DEFAULT '',
    material     TEXT NOT NULL DEFAULT '',
    meta         TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (project, id)
);`

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OpenSQLite opens the database at dbPath, creating its directory.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Init creates the tables and seeds the demo account.
func (r *Repository) Init(ctx context.Context, login, password string) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if login == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (id, login, password) VALUES (?, ?, ?)
        ON CONFLICT (login) DO NOTHING
    `, uuid.NewString(), login, password)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	return nil
}

// UserByCredentials returns the user id for a login/password pair.
func (r *Repository) UserByCredentials(ctx context.Context, login, password string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE login = ? AND password = ?`, login, password).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

const panelColumns = `id, x, y, width_ft, height_ft, rotation_deg, shape, label, color, material, meta`

type scanner interface {
	Scan(dest ...any) error
}

func scanPanel(row scanner) (remote.PanelDTO, error) {
	var (
		d    remote.PanelDTO
		meta string
	)
	if err := row.Scan(&d.ID, &d.X, &d.Y, &d.WidthFt, &d.HeightFt, &d.RotationDeg, &d.Shape, &d.Label, &d.Color, &d.Material, &meta); err != nil {
		return d, err
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &d.Meta); err != nil {
			return d, fmt.Errorf("decode meta of %s: %w", d.ID, err)
		}
	}
	return d, nil
}

// Layout returns the panels of a project in z-order.
func (r *Repository) Layout(ctx context.Context, project string) ([]remote.PanelDTO, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+panelColumns+` FROM panels WHERE project = ? ORDER BY seq`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []remote.PanelDTO{}
	for rows.Next() {
		d, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Get returns one panel.
func (r *Repository) Get(ctx context.Context, project, id string) (remote.PanelDTO, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+panelColumns+` FROM panels WHERE project = ? AND id = ?`, project, id)
	d, err := scanPanel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

// Create stores d on top of the project's z-order under a new id.
func (r *Repository) Create(ctx context.Context, project string, d remote.PanelDTO) (remote.PanelDTO, error) {
	d.ID = uuid.NewString()
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return d, fmt.Errorf("encode meta: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO panels (project, id, seq, x, y, width_ft, height_ft, rotation_deg, shape, label, color, material, meta)
        VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM panels WHERE project = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, project, d.ID, project, d.X, d.Y, d.WidthFt, d.HeightFt, d.RotationDeg, d.Shape, d.Label, d.Color, d.Material, string(meta))
	if err != nil {
		return d, fmt.Errorf("insert panel: %w", err)
	}
	return d, nil
}

// Move updates the position of a panel and returns it.
func (r *Repository) Move(ctx context.Context, project, id string, m remote.MoveRequest) (remote.PanelDTO, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE panels SET x = ?, y = ?, rotation_deg = ? WHERE project = ? AND id = ?
    `, m.X, m.Y, m.RotationDeg, project, id)
	if err != nil {
		return remote.PanelDTO{}, fmt.Errorf("update panel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return remote.PanelDTO{}, ErrNotFound
	}
	return r.Get(ctx, project, id)
}

// Delete removes a panel.
func (r *Repository) Delete(ctx context.Context, project, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM panels WHERE project = ? AND id = ?`, project, id)
	if err != nil {
		return fmt.Errorf("delete panel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
