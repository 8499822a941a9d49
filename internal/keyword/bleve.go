package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// BleveIndex implements FeatureIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reused so unchanged layers are not re-imported.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a lowercased prefix of a
	// typed word matches the indexed term.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("layer", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("fid", keywordFieldMapping)
	im.AddDocumentMapping("feature", docMapping)
	im.DefaultType = "feature"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a feature under DocID(layer, fid).
func (b *BleveIndex) Index(ctx context.Context, doc *Document) error {
	return b.index.Index(DocID(doc.Layer, doc.FeatureID), doc)
}

// Search matches query against feature names. Whole terms match through a match query;
// the last term also matches as a prefix, since suggestions are requested while typing.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return nil, nil
	}
	match := bleve.NewMatchQuery(query)
	match.SetField("name")
	match.SetOperator(blevequery.MatchQueryOperatorAnd)
	prefix := bleve.NewPrefixQuery(terms[len(terms)-1])
	prefix.SetField("name")

	var q blevequery.Query = bleve.NewDisjunctionQuery(match, prefix)
	if len(terms) > 1 {
		// Earlier terms must all be present when more than one term is typed.
		head := bleve.NewMatchQuery(strings.Join(terms[:len(terms)-1], " "))
		head.SetField("name")
		head.SetOperator(blevequery.MatchQueryOperatorAnd)
		q = bleve.NewConjunctionQuery(head, q)
	}

	search := bleve.NewSearchRequest(q)
	search.Size = limit
	search.Fields = []string{"*"}
	results, err := b.index.SearchInContext(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{
			Layer:      fieldString(hit.Fields, "layer"),
			FeatureID:  fieldString(hit.Fields, "fid"),
			Name:       fieldString(hit.Fields, "name"),
			LayerTitle: fieldString(hit.Fields, "title"),
			Score:      hit.Score,
		}
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// Delete removes one feature from the index.
func (b *BleveIndex) Delete(ctx context.Context, layer, featureID string) error {
	return b.index.Delete(DocID(layer, featureID))
}

// DeleteLayer removes every feature of layer and returns how many were removed.
func (b *BleveIndex) DeleteLayer(ctx context.Context, layer string) (int, error) {
	q := bleve.NewTermQuery(layer)
	q.SetField("layer")
	removed := 0
	for {
		req := bleve.NewSearchRequest(q)
		req.Size = 1000
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return removed, fmt.Errorf("Bleve layer lookup failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return removed, nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return removed, fmt.Errorf("Bleve batch delete failed: %w", err)
		}
		removed += len(results.Hits)
	}
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of features in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
