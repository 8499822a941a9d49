package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/hyperjump/lmsearch/internal/models"
)

// ElasticSource is the remote full-text source backed by an Elasticsearch index.
type ElasticSource struct {
	cli       *elasticsearch.Client
	index     string
	fields    []string
	typeAttr  string
	typeLabel string
	size      int
}

// ElasticSourceConfig configures an ElasticSource.
type ElasticSourceConfig struct {
	Index     string
	Fields    []string
	TypeAttr  string
	TypeLabel string
	Size      int
}

type elasticSearchResponse struct {
	Hits struct {
		Hits []struct {
			Index  string        `json:"_index"`
			Source models.Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewElasticSource creates a source querying cfg.Index through cli.
func NewElasticSource(cli *elasticsearch.Client, cfg ElasticSourceConfig) *ElasticSource {
	size := cfg.Size
	if size <= 0 {
		size = 20
	}
	return &ElasticSource{
		cli:       cli,
		index:     cfg.Index,
		fields:    cfg.Fields,
		typeAttr:  cfg.TypeAttr,
		typeLabel: cfg.TypeLabel,
		size:      size,
	}
}

// Name returns "elasticsearch".
func (s *ElasticSource) Name() string { return "elasticsearch" }

// Fetch runs a bool_prefix multi_match for query and returns each hit's source document.
func (s *ElasticSource) Fetch(ctx context.Context, query string) ([]models.Record, error) {
	body, err := s.buildQuery(query)
	if err != nil {
		return nil, fmt.Errorf("error building query: %w", err)
	}
	res, err := s.cli.Search(
		s.cli.Search.WithContext(ctx),
		s.cli.Search.WithIndex(s.index),
		s.cli.Search.WithBody(body),
		s.cli.Search.WithSize(s.size),
		s.cli.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing search: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, fmt.Errorf("server returned %d", res.StatusCode)
	}

	var response elasticSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding search response: %w", err)
	}
	recs := make([]models.Record, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		if hit.Source == nil {
			continue
		}
		label := s.typeLabel
		if label == "" {
			label = hit.Index
		}
		applyType(hit.Source, s.typeAttr, label)
		recs = append(recs, hit.Source)
	}
	return recs, nil
}

func (s *ElasticSource) buildQuery(query string) (io.Reader, error) {
	mm := map[string]interface{}{
		"query": query,
		"type":  "bool_prefix",
	}
	if len(s.fields) > 0 {
		mm["fields"] = s.fields
	}
	payload := new(bytes.Buffer)
	err := json.NewEncoder(payload).Encode(map[string]interface{}{
		"query": map[string]interface{}{"multi_match": mm},
	})
	return payload, err
}
