package layers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/geojson"

	"github.com/hyperjump/lmsearch/internal/geo"
)

// SQLiteRegistry implements Registry using SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS layers (
		name TEXT PRIMARY KEY,
		title TEXT,
		source_path TEXT,
		source_mtime INTEGER DEFAULT 0,
		source_size INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS features (
		layer TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		geometry_wkt TEXT NOT NULL,
		properties TEXT,
		PRIMARY KEY (layer, id, seq),
		FOREIGN KEY (layer) REFERENCES layers(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_features_layer ON features(layer, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// GetLayer returns a layer by name.
func (s *SQLiteRegistry) GetLayer(ctx context.Context, name string) (*Layer, error) {
	var l Layer
	err := s.db.QueryRowContext(ctx,
		`SELECT l.name, l.title, l.source_path, l.source_mtime, l.source_size, l.updated_at,
		        (SELECT COUNT(*) FROM features f WHERE f.layer = l.name)
		 FROM layers l WHERE l.name = ?`, name,
	).Scan(&l.Name, &l.Title, &l.SourcePath, &l.SourceMtime, &l.SourceSize, &l.UpdatedAt, &l.FeatureCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLayers returns every layer ordered by name.
func (s *SQLiteRegistry) ListLayers(ctx context.Context) ([]*Layer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.name, l.title, l.source_path, l.source_mtime, l.source_size, l.updated_at,
		        (SELECT COUNT(*) FROM features f WHERE f.layer = l.name)
		 FROM layers l ORDER BY l.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Layer
	for rows.Next() {
		var l Layer
		if err := rows.Scan(&l.Name, &l.Title, &l.SourcePath, &l.SourceMtime, &l.SourceSize, &l.UpdatedAt, &l.FeatureCount); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// DeleteLayer removes a layer and its features.
func (s *SQLiteRegistry) DeleteLayer(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE layer = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM layers WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceLayer upserts layer and replaces its features in a transaction. Features keep
// their input order; several features may share one id.
func (s *SQLiteRegistry) ReplaceLayer(ctx context.Context, layer *Layer, features []*geojson.Feature) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	layer.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO layers (name, title, source_path, source_mtime, source_size, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET title = excluded.title, source_path = excluded.source_path,
		   source_mtime = excluded.source_mtime, source_size = excluded.source_size, updated_at = excluded.updated_at`,
		layer.Name, layer.Title, layer.SourcePath, layer.SourceMtime, layer.SourceSize, layer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert layer: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE layer = ?`, layer.Name); err != nil {
		return fmt.Errorf("failed to clear features: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features (layer, id, seq, geometry_wkt, properties) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var stored int64
	for i, f := range features {
		if f.Geometry == nil {
			continue
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, layer.Name, FeatureID(f), i, geo.MarshalWKT(f.Geometry), string(props)); err != nil {
			return err
		}
		stored++
	}
	layer.FeatureCount = stored
	return tx.Commit()
}

// FeatureByID returns the features of layer stored under id.
func (s *SQLiteRegistry) FeatureByID(ctx context.Context, layer, id string) ([]*geojson.Feature, error) {
	if _, err := s.GetLayer(ctx, layer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, geometry_wkt, properties FROM features WHERE layer = ? AND id = ? ORDER BY seq`,
		layer, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeatures(rows)
}

// ListFeatures returns features of layer with offset and limit.
func (s *SQLiteRegistry) ListFeatures(ctx context.Context, layer string, offset, limit int) ([]*geojson.Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, geometry_wkt, properties FROM features WHERE layer = ? ORDER BY seq LIMIT ? OFFSET ?`,
		layer, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeatures(rows)
}

func scanFeatures(rows *sql.Rows) ([]*geojson.Feature, error) {
	out := []*geojson.Feature{}
	for rows.Next() {
		var id, wktText string
		var propsJSON sql.NullString
		if err := rows.Scan(&id, &wktText, &propsJSON); err != nil {
			return nil, err
		}
		f, err := geo.ParseWKT(wktText)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", id, err)
		}
		f.ID = id
		if propsJSON.Valid && propsJSON.String != "" && propsJSON.String != "null" {
			if err := json.Unmarshal([]byte(propsJSON.String), &f.Properties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountLayers returns the number of layers.
func (s *SQLiteRegistry) CountLayers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM layers`).Scan(&count)
	return count, err
}

// CountFeatures returns the number of features across all layers.
func (s *SQLiteRegistry) CountFeatures(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM features`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}

// FeatureID returns the identifier of f: its GeoJSON id, else its "id" property.
func FeatureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	if v, ok := f.Properties["id"]; ok && v != nil {
		switch x := v.(type) {
		case string:
			return x
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return fmt.Sprint(x)
		}
	}
	return ""
}
