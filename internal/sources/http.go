package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/models"
)

// URL template placeholders.
const (
	PlaceholderQuery          = "{query}"
	PlaceholderMunicipalities = "{municipalities}"
)

// HTTPSource fetches a JSON array of records from a URL template.
type HTTPSource struct {
	name           string
	urlTemplate    string
	typeAttr       string
	typeLabel      string
	municipalities string
	client         *fetch.Client
}

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	Name string
	// URL may contain {query} and {municipalities}. Without {query} the escaped
	// query is appended to the URL.
	URL string
	// TypeAttr and TypeLabel tag records that lack a type, e.g. "Adress".
	TypeAttr       string
	TypeLabel      string
	Municipalities []string
}

// NewHTTPSource creates an HTTP source.
func NewHTTPSource(cfg HTTPSourceConfig, client *fetch.Client) *HTTPSource {
	return &HTTPSource{
		name:           cfg.Name,
		urlTemplate:    cfg.URL,
		typeAttr:       cfg.TypeAttr,
		typeLabel:      cfg.TypeLabel,
		municipalities: strings.Join(cfg.Municipalities, ","),
		client:         client,
	}
}

// Name returns the source name.
func (s *HTTPSource) Name() string { return s.name }

// URL returns the request URL for query.
func (s *HTTPSource) URL(query string) string {
	q := url.QueryEscape(query)
	u := s.urlTemplate
	if strings.Contains(u, PlaceholderQuery) {
		u = strings.ReplaceAll(u, PlaceholderQuery, q)
	} else {
		u += q
	}
	return strings.ReplaceAll(u, PlaceholderMunicipalities, url.QueryEscape(s.municipalities))
}

// Fetch requests the records matching query.
func (s *HTTPSource) Fetch(ctx context.Context, query string) ([]models.Record, error) {
	var raw []models.Record
	if err := s.client.GetJSON(ctx, s.URL(query), &raw); err != nil {
		return nil, err
	}
	recs := raw[:0]
	for _, rec := range raw {
		if rec == nil {
			continue
		}
		applyType(rec, s.typeAttr, s.typeLabel)
		recs = append(recs, rec)
	}
	return recs, nil
}
