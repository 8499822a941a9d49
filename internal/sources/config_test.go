package sources

import (
	"context"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/keyword"
)

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Sources.Address.URL = "https://example.test/adress?q={query}"
	cfg.Sources.Locality.URL = "https://example.test/ort?q={query}"
	cfg.Sources.Local.Enabled = true
	cfg.Sources.Elasticsearch.Index = "places"

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{"http://127.0.0.1:9200"}})
	if err != nil {
		t.Fatal(err)
	}
	srcs := FromConfig(cfg, fetch.NewClient(time.Second), &fakeFeatureIndex{}, es)

	var names []string
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	want := []string{"address", "locality", "local", "elasticsearch"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestFromConfig_skipsMissing(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Sources.Local.Enabled = true
	if srcs := FromConfig(cfg, fetch.NewClient(time.Second), nil, nil); len(srcs) != 0 {
		t.Errorf("sources = %d, want 0", len(srcs))
	}
}

func TestFromConfig_localHitsGroupByLayerName(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Sources.Local.Enabled = true
	cfg.Search.IDAttribute = "id"
	idx := &fakeFeatureIndex{hits: []*keyword.Hit{
		{Layer: "torg", FeatureID: "7", Name: "Stora torget", LayerTitle: "Torg"},
	}}
	srcs := FromConfig(cfg, fetch.NewClient(time.Second), idx, nil)
	if len(srcs) != 1 {
		t.Fatalf("sources = %d, want 1", len(srcs))
	}
	recs, err := srcs[0].Fetch(context.Background(), "stora")
	if err != nil {
		t.Fatal(err)
	}
	if got := recs[0].String(cfg.Search.LayerNameAttribute); got != "torg" {
		t.Errorf("%s = %q, want torg", cfg.Search.LayerNameAttribute, got)
	}
	if got := recs[0].String("id"); got != "7" {
		t.Errorf("id = %q, want 7", got)
	}
}
