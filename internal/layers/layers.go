// Package layers is the layer registry: named map layers with a title and their live
// features, persisted in SQLite.
package layers

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb/geojson"
)

// ErrLayerNotFound is returned when no layer has the requested name.
var ErrLayerNotFound = errors.New("layer not found")

// Layer describes one registered layer.
type Layer struct {
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	SourcePath   string    `json:"source_path,omitempty"`
	SourceMtime  int64     `json:"source_mtime,omitempty"`
	SourceSize   int64     `json:"source_size,omitempty"`
	FeatureCount int64     `json:"feature_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Registry defines layer and feature persistence operations.
type Registry interface {
	// Layer operations
	GetLayer(ctx context.Context, name string) (*Layer, error)
	ListLayers(ctx context.Context) ([]*Layer, error)
	DeleteLayer(ctx context.Context, name string) error

	// ReplaceLayer stores layer and replaces all of its features in one transaction.
	ReplaceLayer(ctx context.Context, layer *Layer, features []*geojson.Feature) error

	// FeatureByID returns the features stored under id in the named layer. An unknown
	// id yields an empty slice; an unknown layer yields ErrLayerNotFound.
	FeatureByID(ctx context.Context, layer, id string) ([]*geojson.Feature, error)
	ListFeatures(ctx context.Context, layer string, offset, limit int) ([]*geojson.Feature, error)

	// Stats
	CountLayers(ctx context.Context) (int64, error)
	CountFeatures(ctx context.Context) (int64, error)

	Close() error
}
