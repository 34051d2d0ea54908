package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/linuxmatters/mediactl/internal/engine"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const schema = `
	CREATE TABLE IF NOT EXISTS presets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		bands TEXT NOT NULL,
		baseline REAL NOT NULL DEFAULT 0,
		createdAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sourceId TEXT NOT NULL,
		sessionId TEXT,
		preset TEXT NOT NULL,
		gains TEXT NOT NULL,
		aggressiveness REAL NOT NULL,
		valid INTEGER NOT NULL,
		handle TEXT,
		codec TEXT,
		bitrateKbps INTEGER,
		sampleRate INTEGER,
		createdAt REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(createdAt);
`

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mediactl", "mediactl.sqlite")
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePreset inserts or replaces a preset.
func (s *Store) SavePreset(ctx context.Context, p PresetRecord) error {
	bands, err := json.Marshal(p.Bands.Slice())
	if err != nil {
		return fmt.Errorf("marshal bands: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO presets (id, name, bands, baseline, createdAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			bands = excluded.bands,
			baseline = excluded.baseline
	`, p.ID, p.Name, string(bands), p.Baseline, unixFromTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save preset %s: %w", p.ID, err)
	}
	return nil
}

// Preset returns one preset or ErrNotFound.
func (s *Store) Preset(ctx context.Context, id string) (PresetRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, bands, baseline, createdAt
		FROM presets
		WHERE id = ?
	`, id)

	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PresetRecord{}, fmt.Errorf("preset %s: %w", id, ErrNotFound)
	}
	return p, err
}

// Presets returns all saved presets ordered by name.
func (s *Store) Presets(ctx context.Context) ([]PresetRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, bands, baseline, createdAt
		FROM presets
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query presets: %w", err)
	}
	defer rows.Close()

	var out []PresetRecord
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePreset removes a preset. Missing ids are not an error.
func (s *Store) DeletePreset(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete preset %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(row scanner) (PresetRecord, error) {
	var p PresetRecord
	var bands string
	var createdAt float64
	if err := row.Scan(&p.ID, &p.Name, &bands, &p.Baseline, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PresetRecord{}, err
		}
		return PresetRecord{}, fmt.Errorf("scan preset: %w", err)
	}
	var v []float64
	if err := json.Unmarshal([]byte(bands), &v); err != nil {
		return PresetRecord{}, fmt.Errorf("decode bands of %s: %w", p.ID, err)
	}
	p.Bands = engine.GainVectorFrom(v)
	p.CreatedAt = timeFromUnix(createdAt)
	return p, nil
}

// RecordExport appends an export to the history.
func (s *Store) RecordExport(ctx context.Context, rec ExportRecord) (int64, error) {
	gains, err := json.Marshal(rec.Config.Gains.Slice())
	if err != nil {
		return 0, fmt.Errorf("marshal gains: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	cfg := rec.Config
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (sourceId, sessionId, preset, gains, aggressiveness, valid,
			handle, codec, bitrateKbps, sampleRate, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.SourceID, string(cfg.SessionID), string(cfg.Preset), string(gains), cfg.Aggressiveness,
		cfg.Valid, string(cfg.Handle), cfg.Encoding.Codec, cfg.Encoding.BitrateKbps,
		cfg.Encoding.SampleRate, unixFromTime(rec.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("record export: %w", err)
	}
	return res.LastInsertId()
}

// Exports returns the most recent exports, newest first.
func (s *Store) Exports(ctx context.Context, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sourceId, sessionId, preset, gains, aggressiveness, valid,
			handle, codec, bitrateKbps, sampleRate, createdAt
		FROM exports
		ORDER BY createdAt DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var rec ExportRecord
		var sessionID, handle, codec sql.NullString
		var bitrate, sampleRate sql.NullInt64
		var preset, gains string
		var createdAt float64
		if err := rows.Scan(&rec.ID, &rec.SourceID, &sessionID, &preset, &gains,
			&rec.Config.Aggressiveness, &rec.Config.Valid, &handle, &codec,
			&bitrate, &sampleRate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		var v []float64
		if err := json.Unmarshal([]byte(gains), &v); err != nil {
			return nil, fmt.Errorf("decode gains of export %d: %w", rec.ID, err)
		}
		rec.Config.Gains = engine.GainVectorFrom(v)
		rec.Config.Preset = engine.PresetID(preset)
		rec.Config.SessionID = engine.SessionID(sessionID.String)
		rec.Config.Handle = engine.ExportHandle(handle.String)
		rec.Config.Encoding = engine.EncodingParams{
			Codec:       codec.String,
			BitrateKbps: int(bitrate.Int64),
			SampleRate:  int(sampleRate.Int64),
		}
		rec.CreatedAt = timeFromUnix(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
