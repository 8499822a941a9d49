package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/indexer"
	"github.com/hyperjump/lmsearch/internal/keyword"
	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/hyperjump/lmsearch/internal/sources"
)

const bathingSites = `{
  "type": "FeatureCollection",
  "title": "Badplatser",
  "features": [
    {"type": "Feature", "id": "b1", "properties": {"name": "Stensö badplats"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[4,0],[4,4],[0,4],[0,0]]]}},
    {"type": "Feature", "id": "b2", "properties": {"name": "Ekudden"},
     "geometry": {"type": "Point", "coordinates": [10, 10]}}
  ]
}`

// TestIntegration_importSuggestSelect imports a layer file, suggests from the local
// full-text index and resolves the selection against the layer registry.
func TestIntegration_importSuggestSelect(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "layers.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Sources.Local.Enabled = true
	config.ApplyDefaults(cfg)
	cfg.Search.IDAttribute = "id"

	reg, err := layers.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()

	path := filepath.Join(dir, "badplatser.geojson")
	if err := os.WriteFile(path, []byte(bathingSites), 0600); err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(reg, kw, indexer.WithNameProperty(cfg.Layers.NameProperty))
	if imported, err := idx.ImportFile(context.Background(), path, cfg.Layers.Extensions); err != nil || !imported {
		t.Fatalf("ImportFile = %v, %v", imported, err)
	}

	srcs := sources.FromConfig(cfg, nil, kw, nil)
	if len(srcs) != 1 || srcs[0].Name() != "local" {
		t.Fatalf("sources = %v", srcs)
	}
	s := New("it", Deps{
		Config:   cfg,
		Sources:  srcs,
		Layers:   reg,
		Objects:  noDetail{},
		Coords:   noDetail{},
		Debounce: 5 * time.Millisecond,
	})
	defer s.Close()

	s.Input("stensö", models.KeyNone)
	items := waitForList(t, s.List, 1)
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	sg := items[0]
	if sg.Value != "Stensö badplats" || sg.Attr("layer") != "badplatser" || sg.Attr("id") != "b1" {
		t.Fatalf("suggestion = %+v", sg)
	}

	strategy, err := s.Dispatcher.Resolve(context.Background(), sg.Label)
	if err != nil || strategy != "id-and-layer" {
		t.Fatalf("Resolve = %q, %v", strategy, err)
	}
	snap := s.Canvas.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].Kind != render.KindFeature {
		t.Fatalf("scratch = %+v", snap.Items)
	}
	if got := snap.Items[0].Feature.Properties.MustString(render.PropName, ""); got != "Badplatser" {
		t.Errorf("feature label = %q, want layer title", got)
	}
	if snap.Zoom == nil || snap.Zoom.MaxZoom != cfg.Display.MaxZoomLevel {
		t.Errorf("zoom = %+v", snap.Zoom)
	}

	s.Input("ingenting", models.KeyNone)
	items = waitForList(t, s.List, 2)
	if len(items) != 1 || items[0].Attr("layer") != cfg.Search.NoMatchLabel {
		t.Errorf("no-match items = %+v", items)
	}
}
