package sources

import (
	"context"
	"fmt"

	"github.com/hyperjump/lmsearch/internal/keyword"
	"github.com/hyperjump/lmsearch/internal/models"
)

// KeywordSource serves suggestions from the local full-text index of imported layers.
// Records carry the layer name and feature id so they resolve against the layer registry.
// When the type attribute is the layer name attribute, hits group by layer name; otherwise
// they are typed by layer title.
type KeywordSource struct {
	index keyword.FeatureIndex
	attrs Attributes
	limit int
}

// NewKeywordSource creates a source over index returning at most limit hits.
func NewKeywordSource(index keyword.FeatureIndex, attrs Attributes, limit int) *KeywordSource {
	if limit <= 0 {
		limit = 20
	}
	return &KeywordSource{index: index, attrs: attrs, limit: limit}
}

// Name returns "local".
func (s *KeywordSource) Name() string { return "local" }

// Fetch searches feature names for query.
func (s *KeywordSource) Fetch(ctx context.Context, query string) ([]models.Record, error) {
	hits, err := s.index.Search(ctx, query, s.limit)
	if err != nil {
		return nil, fmt.Errorf("local search failed: %w", err)
	}
	recs := make([]models.Record, 0, len(hits))
	for _, h := range hits {
		rec := models.Record{}
		set(rec, s.attrs.Query, h.Name)
		set(rec, s.attrs.LayerName, h.Layer)
		set(rec, s.attrs.ID, h.FeatureID)
		set(rec, s.attrs.Title, h.LayerTitle)
		applyType(rec, s.attrs.Type, h.LayerTitle)
		recs = append(recs, rec)
	}
	return recs, nil
}

func set(rec models.Record, attr, value string) {
	if attr != "" && value != "" {
		rec[attr] = value
	}
}
