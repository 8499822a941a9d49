// Package keyword provides full-text search over imported layer features.
package keyword

import "context"

// Document is the searchable view of one layer feature.
type Document struct {
	Layer      string `json:"layer"`
	FeatureID  string `json:"fid"`
	Name       string `json:"name"`
	LayerTitle string `json:"title"`
}

// DocID returns the index identifier of a feature.
func DocID(layer, featureID string) string {
	return layer + "/" + featureID
}

// FeatureIndex defines full-text operations over layer features.
type FeatureIndex interface {
	Index(ctx context.Context, doc *Document) error
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)
	Delete(ctx context.Context, layer, featureID string) error
	DeleteLayer(ctx context.Context, layer string) (int, error)
	Close() error
	// DocCount returns the total number of features in the index.
	DocCount() (uint64, error)
}

// Hit is a single full-text match.
type Hit struct {
	Layer      string
	FeatureID  string
	Name       string
	LayerTitle string
	Score      float64
}
