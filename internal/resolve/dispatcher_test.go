package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/hyperjump/lmsearch/internal/search"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// mockLayers serves features from memory.
type mockLayers struct {
	layers   map[string]*layers.Layer
	features map[string][]*geojson.Feature
}

func (m *mockLayers) GetLayer(ctx context.Context, name string) (*layers.Layer, error) {
	l, ok := m.layers[name]
	if !ok {
		return nil, layers.ErrLayerNotFound
	}
	return l, nil
}

func (m *mockLayers) FeatureByID(ctx context.Context, layer, id string) ([]*geojson.Feature, error) {
	if _, ok := m.layers[layer]; !ok {
		return nil, layers.ErrLayerNotFound
	}
	return m.features[layer+"/"+id], nil
}

// mockDetail returns a fixed collection and records the requested id.
type mockDetail struct {
	fc    *geojson.FeatureCollection
	err   error
	calls []string
}

func (m *mockDetail) FetchByObjectID(ctx context.Context, id string) (*geojson.FeatureCollection, error) {
	m.calls = append(m.calls, id)
	return m.fc, m.err
}

func square(minX float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{minX, 0}, {minX + 1, 0}, {minX + 1, 1}, {minX, 1}, {minX, 0}}}
}

func polygons(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		fc.Append(geojson.NewFeature(square(float64(i * 10))))
	}
	return fc
}

type fixture struct {
	d      *Dispatcher
	canvas *render.Canvas
	detail *mockDetail
	ids    []string
}

func newFixture(t *testing.T, sc config.SearchConfig, showFeature string, recs ...models.Record) *fixture {
	t.Helper()
	if sc.QueryAttribute == "" {
		sc.QueryAttribute = "NAMN"
	}
	idx := search.NewIndex(sc.QueryAttribute)
	idx.Ingest(recs)
	var ids []string
	for _, s := range idx.Entries() {
		ids = append(ids, s.Label)
	}
	canvas := render.NewCanvas()
	p := render.NewPresenter(canvas.Viewer(), sc,
		config.DisplayConfig{ShowFeature: showFeature, MaxZoomLevel: 18},
		config.EstateConfig{ReportURL: "https://example.test/rapport/", ReportWidth: "700px", ReportHeight: "500px"},
	)
	feature := geojson.NewFeature(square(0))
	feature.Properties["NAMN"] = "Badplats"
	ml := &mockLayers{
		layers:   map[string]*layers.Layer{"bad": {Name: "bad", Title: "Badplatser"}},
		features: map[string][]*geojson.Feature{"bad/7": {feature}},
	}
	md := &mockDetail{fc: polygons(1)}
	return &fixture{d: NewDispatcher(sc, idx, ml, md, p), canvas: canvas, detail: md, ids: ids}
}

func TestSelect_priority(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SearchConfig
		want string
	}{
		{"id and layer", config.SearchConfig{LayerNameAttribute: "layer", IDAttribute: "id", GeometryAttribute: "geom", Title: "T"}, "id-and-layer"},
		{"geometry and layer", config.SearchConfig{GeometryAttribute: "geom", LayerName: "lager", Title: "T"}, "geometry-and-layer"},
		{"title content geometry", config.SearchConfig{TitleAttribute: "t", ContentAttribute: "c", GeometryAttribute: "geom", Title: "T"}, "title-content-geometry"},
		{"geometry and title", config.SearchConfig{GeometryAttribute: "geom", Title: "T"}, "geometry-and-title"},
		{"coordinate pair", config.SearchConfig{EastingAttribute: "e", NorthingAttribute: "n", Title: "T"}, "coordinate-pair"},
		{"layer attribute alone", config.SearchConfig{LayerNameAttribute: "layer"}, ""},
		{"coordinates without title", config.SearchConfig{EastingAttribute: "e", NorthingAttribute: "n"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Select(DefaultStrategies(), tt.cfg)
			if tt.want == "" {
				if ok {
					t.Errorf("selected %s, want none", s.Name)
				}
				return
			}
			if !ok || s.Name != tt.want {
				t.Errorf("selected %q (ok=%v), want %q", s.Name, ok, tt.want)
			}
		})
	}
}

func TestResolve_unknownAndMissingOptions(t *testing.T) {
	f := newFixture(t, config.SearchConfig{}, render.ModeGeometryOnly, models.Record{"NAMN": "x"})
	if _, err := f.d.Resolve(context.Background(), "nope"); !errors.Is(err, ErrUnknownSuggestion) {
		t.Errorf("err = %v, want ErrUnknownSuggestion", err)
	}
	if _, err := f.d.Resolve(context.Background(), f.ids[0]); !errors.Is(err, ErrNoStrategy) {
		t.Errorf("err = %v, want ErrNoStrategy", err)
	}
	if s := f.canvas.Snapshot(); s.Zoom != nil || s.Popup != nil || len(s.Items) != 0 {
		t.Error("nothing should be rendered")
	}
}

func TestResolve_idAndLayer(t *testing.T) {
	sc := config.SearchConfig{LayerNameAttribute: "layer", IDAttribute: "id", GeometryAttribute: "geom", Title: "Sök"}
	f := newFixture(t, sc, render.ModeGeometryOnly,
		models.Record{"NAMN": "Badplats", "layer": "bad", "id": "7"},
		models.Record{"NAMN": "Saknas", "layer": "bad", "id": "8", "geom": "POINT(100 200)"},
		models.Record{"NAMN": "Saknas", "layer": "bad", "id": "9"},
		models.Record{"NAMN": "Fel", "layer": "okänt", "id": "1"},
	)
	ctx := context.Background()

	name, err := f.d.Resolve(ctx, f.ids[0])
	if err != nil || name != "id-and-layer" {
		t.Fatalf("Resolve = %q, %v", name, err)
	}
	s := f.canvas.Snapshot()
	if len(s.Items) != 1 || s.Items[0].Feature.Properties["name"] != "Badplatser" {
		t.Errorf("items = %+v", s.Items)
	}

	// live feature missing: overlay at the geometry text
	if _, err := f.d.Resolve(ctx, f.ids[1]); err != nil {
		t.Fatal(err)
	}
	s = f.canvas.Snapshot()
	if s.Popup == nil || s.Popup.Coordinate != (orb.Point{100, 200}) || s.Popup.Content != "Saknas" || s.Popup.Title != "Sök" {
		t.Errorf("popup = %+v", s.Popup)
	}

	f.canvas.RemoveOverlays()
	if _, err := f.d.Resolve(ctx, f.ids[2]); err != nil {
		t.Fatal(err)
	}
	if s := f.canvas.Snapshot(); s.Popup != nil {
		t.Error("no geometry text means no overlay")
	}

	if _, err := f.d.Resolve(ctx, f.ids[3]); !errors.Is(err, layers.ErrLayerNotFound) {
		t.Errorf("err = %v, want ErrLayerNotFound", err)
	}
}

func TestResolve_geometryAndLayer(t *testing.T) {
	sc := config.SearchConfig{GeometryAttribute: "geom", LayerName: "lager"}
	f := newFixture(t, sc, render.ModePopup,
		models.Record{"NAMN": "Strand", "lager": "bad", "geom": "POLYGON((0 0,4 0,4 4,0 4,0 0))"},
	)
	if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
		t.Fatal(err)
	}
	s := f.canvas.Snapshot()
	if s.Panel == nil || s.Panel.Items[0].Title != "Badplatser" {
		t.Fatalf("panel = %+v", s.Panel)
	}
	if s.Panel.Anchor != (orb.Point{2, 2}) {
		t.Errorf("anchor = %v", s.Panel.Anchor)
	}
	if s.Panel.Items[0].Feature.Properties["NAMN"] != "Strand" {
		t.Error("parsed feature should carry the record attributes")
	}
}

func TestResolve_titleContentGeometry(t *testing.T) {
	sc := config.SearchConfig{
		LayerNameAttribute: "TYP", TitleAttribute: "TITEL", ContentAttribute: "INFO",
		GeometryAttribute: "GEOM", ParcelType: "Fastighet",
	}

	t.Run("direct geometry", func(t *testing.T) {
		f := newFixture(t, sc, render.ModeGeometryOnly,
			models.Record{"NAMN": "Kalmar", "TYP": "Ort", "TITEL": "Kalmar", "INFO": "Stad", "GEOM": "POINT(5 5)"})
		if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
			t.Fatal(err)
		}
		if len(f.detail.calls) != 0 {
			t.Error("non-parcel records should not fetch details")
		}
		s := f.canvas.Snapshot()
		if len(s.Items) != 1 || s.Items[0].Feature.Geometry.(orb.Point) != (orb.Point{5, 5}) {
			t.Errorf("items = %+v", s.Items)
		}
	})

	t.Run("parcel merges three polygons", func(t *testing.T) {
		f := newFixture(t, sc, render.ModeGeometryOnly,
			models.Record{"NAMN": "KALMAR 1:1", "TYP": "Fastighet", "TITEL": "KALMAR 1:1", "INFO": "Info", "id": "abc"})
		f.detail.fc = polygons(3)
		if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
			t.Fatal(err)
		}
		if len(f.detail.calls) != 1 || f.detail.calls[0] != "abc" {
			t.Errorf("detail calls = %v", f.detail.calls)
		}
		items := f.canvas.Items()
		if len(items) != 2 {
			t.Fatalf("items = %d, want feature and icon", len(items))
		}
		mp, ok := items[0].Feature.Geometry.(orb.MultiPolygon)
		if !ok || len(mp) != 3 {
			t.Errorf("geometry = %#v, want multipolygon of 3", items[0].Feature.Geometry)
		}
		if items[1].Kind != render.KindIcon || items[1].Feature.Properties[render.PropObjectIdentity] != "abc" {
			t.Errorf("icon = %+v", items[1])
		}
	})

	t.Run("parcel with one polygon is unchanged", func(t *testing.T) {
		f := newFixture(t, sc, render.ModePopup,
			models.Record{"NAMN": "KALMAR 1:1", "TYP": "Fastighet", "TITEL": "KALMAR 1:1", "INFO": "Info", "id": "abc"})
		f.detail.fc = polygons(1)
		if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
			t.Fatal(err)
		}
		s := f.canvas.Snapshot()
		if s.Panel == nil {
			t.Fatal("panel expected")
		}
		if _, ok := s.Panel.Items[0].Feature.Geometry.(orb.Polygon); !ok {
			t.Errorf("geometry = %T, want unchanged polygon", s.Panel.Items[0].Feature.Geometry)
		}
		if s.Panel.Items[0].Content != "<div>Info</div>" {
			t.Errorf("content = %q", s.Panel.Items[0].Content)
		}
	})

	t.Run("parcel with zero features alerts", func(t *testing.T) {
		f := newFixture(t, sc, render.ModeGeometryOnly,
			models.Record{"NAMN": "KALMAR 1:1", "TYP": "Fastighet", "TITEL": "KALMAR 1:1", "INFO": "Info", "id": "abc"})
		f.detail.fc = polygons(0)
		if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
			t.Fatal(err)
		}
		s := f.canvas.Snapshot()
		if len(s.Alerts) != 1 || s.Alerts[0] != NoDataMessage {
			t.Errorf("alerts = %v", s.Alerts)
		}
		if len(s.Items) != 0 || s.Zoom != nil {
			t.Error("nothing should be rendered")
		}
	})

	t.Run("parcel fetch failure aborts silently", func(t *testing.T) {
		f := newFixture(t, sc, render.ModeGeometryOnly,
			models.Record{"NAMN": "KALMAR 1:1", "TYP": "Fastighet", "TITEL": "KALMAR 1:1", "INFO": "Info", "id": "abc"})
		f.detail.err = &fetch.StatusError{StatusCode: 500}
		if _, err := f.d.Resolve(context.Background(), f.ids[0]); err == nil {
			t.Error("expected error")
		}
		s := f.canvas.Snapshot()
		if len(s.Alerts) != 0 || len(s.Items) != 0 {
			t.Error("fetch failure should not alert or render")
		}
	})

	t.Run("non polygon collection is not merged", func(t *testing.T) {
		f := newFixture(t, sc, render.ModeGeometryOnly,
			models.Record{"NAMN": "KALMAR 1:1", "TYP": "Fastighet", "TITEL": "KALMAR 1:1", "INFO": "Info", "id": "abc"})
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(orb.Point{1, 1}))
		fc.Append(geojson.NewFeature(square(0)))
		f.detail.fc = fc
		if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
			t.Fatal(err)
		}
		if _, ok := f.canvas.Items()[0].Feature.Geometry.(orb.Point); !ok {
			t.Error("first feature should be rendered unchanged")
		}
	})
}

func TestResolve_geometryAndTitle(t *testing.T) {
	f := newFixture(t, config.SearchConfig{GeometryAttribute: "wkt", Title: "Adress", ProjectionCode: "EPSG:3006"}, render.ModePopup,
		models.Record{"NAMN": "Storgatan 1", "wkt": "SRID=3006;POINT(10 20)"})
	if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
		t.Fatal(err)
	}
	s := f.canvas.Snapshot()
	if s.Panel == nil || s.Panel.Items[0].Title != "Adress" || s.Panel.Items[0].Content != "<div>Storgatan 1</div>" {
		t.Errorf("panel = %+v", s.Panel)
	}
}

func TestResolve_geometryAndTitleBadGeometry(t *testing.T) {
	f := newFixture(t, config.SearchConfig{GeometryAttribute: "wkt", Title: "Adress"}, render.ModePopup,
		models.Record{"NAMN": "Storgatan 1", "wkt": "not geometry"})
	if _, err := f.d.Resolve(context.Background(), f.ids[0]); err == nil {
		t.Error("expected parse error")
	}
}

func TestResolve_geometryAndTitleForeignProjection(t *testing.T) {
	sc := config.SearchConfig{GeometryAttribute: "wkt", Title: "Adress", ProjectionCode: "EPSG:3006"}
	f := newFixture(t, sc, render.ModePopup,
		models.Record{"NAMN": "Storgatan 1", "wkt": "SRID=4326;POINT(16.36 56.66)"})
	if _, err := f.d.Resolve(context.Background(), f.ids[0]); !errors.Is(err, geo.ErrProjectionMismatch) {
		t.Errorf("err = %v, want ErrProjectionMismatch", err)
	}
	if items := f.canvas.Items(); len(items) != 0 {
		t.Errorf("canvas items = %d, want 0", len(items))
	}
}

func TestResolve_coordinatePair(t *testing.T) {
	f := newFixture(t, config.SearchConfig{EastingAttribute: "E", NorthingAttribute: "N", Title: "Ort"}, render.ModeGeometryOnly,
		models.Record{"NAMN": "Kalmar", "E": 584000.0, "N": "6284000"},
		models.Record{"NAMN": "Trasig", "E": "öst"},
	)
	if _, err := f.d.Resolve(context.Background(), f.ids[0]); err != nil {
		t.Fatal(err)
	}
	s := f.canvas.Snapshot()
	if s.Popup == nil || s.Popup.Coordinate != (orb.Point{584000, 6284000}) || s.Popup.Title != "Ort" {
		t.Errorf("popup = %+v", s.Popup)
	}
	if _, err := f.d.Resolve(context.Background(), f.ids[1]); err == nil {
		t.Error("expected error for unusable coordinates")
	}
}
