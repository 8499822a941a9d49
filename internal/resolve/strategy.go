package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// NoDataMessage is shown when a detail lookup returns no features.
const NoDataMessage = "There is no data available for this object!"

// Strategy is one way of turning a selected record into map state. Applies looks only
// at which search attributes are configured.
type Strategy struct {
	Name    string
	Applies func(cfg config.SearchConfig) bool
	Run     func(ctx context.Context, d *Dispatcher, rec models.Record) error
}

// DefaultStrategies returns the strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "id-and-layer",
			Applies: func(c config.SearchConfig) bool {
				return c.LayerNameAttribute != "" && c.IDAttribute != ""
			},
			Run: runIDAndLayer,
		},
		{
			Name: "geometry-and-layer",
			Applies: func(c config.SearchConfig) bool {
				return c.GeometryAttribute != "" && c.LayerName != ""
			},
			Run: runGeometryAndLayer,
		},
		{
			Name: "title-content-geometry",
			Applies: func(c config.SearchConfig) bool {
				return c.TitleAttribute != "" && c.ContentAttribute != "" && c.GeometryAttribute != ""
			},
			Run: runTitleContentGeometry,
		},
		{
			Name: "geometry-and-title",
			Applies: func(c config.SearchConfig) bool {
				return c.GeometryAttribute != "" && c.Title != ""
			},
			Run: runGeometryAndTitle,
		},
		{
			Name: "coordinate-pair",
			Applies: func(c config.SearchConfig) bool {
				return c.EastingAttribute != "" && c.NorthingAttribute != "" && c.Title != ""
			},
			Run: runCoordinatePair,
		},
	}
}

// Select returns the first strategy that applies to cfg.
func Select(strategies []Strategy, cfg config.SearchConfig) (Strategy, bool) {
	for _, s := range strategies {
		if s.Applies(cfg) {
			return s, true
		}
	}
	return Strategy{}, false
}

func runIDAndLayer(ctx context.Context, d *Dispatcher, rec models.Record) error {
	name := rec.String(d.search.LayerNameAttribute)
	id := rec.String(d.search.IDAttribute)
	layer, err := d.layers.GetLayer(ctx, name)
	if err != nil {
		return fmt.Errorf("get layer %q: %w", name, err)
	}
	features, err := d.layers.FeatureByID(ctx, name, id)
	if err != nil {
		return fmt.Errorf("get feature %q from %q: %w", id, name, err)
	}
	if len(features) > 0 {
		d.presenter.ShowFeatureInfo(features, layer.Title, render.AttributesHTML(features[0]), "")
		return nil
	}
	if d.search.GeometryAttribute == "" || !rec.Has(d.search.GeometryAttribute) {
		d.logger.Info("feature not found", zap.String("layer", name), zap.String("id", id))
		return nil
	}
	f, err := d.parseGeometry(rec)
	if err != nil {
		return err
	}
	d.presenter.ShowOverlay(rec, geo.Centroid(f.Geometry))
	return nil
}

func runGeometryAndLayer(ctx context.Context, d *Dispatcher, rec models.Record) error {
	f, err := d.parseGeometry(rec)
	if err != nil {
		return err
	}
	name := rec.String(d.search.LayerName)
	title := name
	if layer, err := d.layers.GetLayer(ctx, name); err == nil {
		title = layer.Title
	} else {
		d.logger.Warn("layer not found, using its name as title", zap.String("layer", name), zap.Error(err))
	}
	d.presenter.ShowFeatureInfo([]*geojson.Feature{f}, title, render.AttributesHTML(f), "")
	return nil
}

func runTitleContentGeometry(ctx context.Context, d *Dispatcher, rec models.Record) error {
	title := rec.String(d.search.TitleAttribute)
	content := render.Div(rec.String(d.search.ContentAttribute))

	parcel := d.search.LayerNameAttribute != "" && d.search.ParcelType != "" &&
		rec.String(d.search.LayerNameAttribute) == d.search.ParcelType
	if !parcel {
		f, err := d.parseGeometry(rec)
		if err != nil {
			return err
		}
		d.presenter.ShowFeatureInfo([]*geojson.Feature{f}, title, content, "")
		return nil
	}

	objectID := rec.String(d.idAttr)
	fc, err := d.detail.FetchByObjectID(ctx, objectID)
	if err != nil && !errors.Is(err, fetch.ErrNoFeatures) {
		return fmt.Errorf("fetch detail of %q: %w", objectID, err)
	}
	if err != nil || len(fc.Features) == 0 {
		d.presenter.Viewer().Alerter.Alert(NoDataMessage)
		return nil
	}
	features := fc.Features
	if len(features) > 1 {
		d.logger.Debug("merging feature collection into a multi-polygon", zap.Int("features", len(features)))
		if err := geo.MergePolygons(features); err != nil {
			d.logger.Info("feature collection does not contain polygons, not merged", zap.String("id", objectID))
		}
	}
	d.presenter.ShowFeatureInfo(features, title, content, objectID)
	return nil
}

func runGeometryAndTitle(ctx context.Context, d *Dispatcher, rec models.Record) error {
	f, err := d.parseGeometry(rec)
	if err != nil {
		return err
	}
	d.presenter.ShowFeatureInfo([]*geojson.Feature{f}, d.search.Title, render.Div(rec.String(d.search.QueryAttribute)), "")
	return nil
}

func runCoordinatePair(ctx context.Context, d *Dispatcher, rec models.Record) error {
	e, okE := rec.Float(d.search.EastingAttribute)
	n, okN := rec.Float(d.search.NorthingAttribute)
	if !okE || !okN {
		return fmt.Errorf("record has no usable %s/%s coordinate", d.search.EastingAttribute, d.search.NorthingAttribute)
	}
	d.presenter.ShowOverlay(rec, orb.Point{e, n})
	return nil
}
