package sources

import (
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/keyword"
)

// FromConfig builds the configured sources in query order: address, parcel, locality,
// full text, municipality, the local index and Elasticsearch. Endpoints without a URL
// are skipped, as are local and es when nil.
func FromConfig(cfg *config.Config, client *fetch.Client, local keyword.FeatureIndex, es *elasticsearch.Client) []Source {
	typeAttr := cfg.Search.LayerNameAttribute
	endpoints := []struct {
		name string
		ep   config.EndpointConfig
	}{
		{"address", cfg.Sources.Address},
		{"parcel", cfg.Sources.Parcel},
		{"locality", cfg.Sources.Locality},
		{"fulltext", cfg.Sources.FullText},
		{"municipality", cfg.Sources.Municipality},
	}
	var out []Source
	for _, e := range endpoints {
		if e.ep.URL == "" {
			continue
		}
		out = append(out, NewHTTPSource(HTTPSourceConfig{
			Name:           e.name,
			URL:            e.ep.URL,
			TypeAttr:       typeAttr,
			TypeLabel:      e.ep.Type,
			Municipalities: cfg.Sources.Municipalities,
		}, client))
	}
	if cfg.Sources.Local.Enabled && local != nil {
		out = append(out, NewKeywordSource(local, Attributes{
			Query:     cfg.Search.QueryAttribute,
			Type:      typeAttr,
			ID:        cfg.Search.IDAttribute,
			LayerName: typeAttr,
			Title:     cfg.Search.TitleAttribute,
		}, cfg.Sources.Local.Limit))
	}
	if es != nil && cfg.Sources.Elasticsearch.Index != "" {
		out = append(out, NewElasticSource(es, ElasticSourceConfig{
			Index:     cfg.Sources.Elasticsearch.Index,
			Fields:    cfg.Sources.Elasticsearch.Fields,
			TypeAttr:  typeAttr,
			TypeLabel: cfg.Sources.Elasticsearch.Type,
			Size:      cfg.Sources.Elasticsearch.Size,
		}))
	}
	return out
}
