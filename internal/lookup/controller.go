// Package lookup implements the click-driven reverse lookup: an exclusive map tool that
// fetches the parcel under a clicked coordinate and draws it with derived labels.
package lookup

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/hyperjump/lmsearch/internal/mode"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Name identifies the tool in mode events.
const Name = "lmsearch"

// ResultTitle heads the feature-info panel of a lookup result.
const ResultTitle = "Fastighet"

// Outcome says what a map click did.
type Outcome string

const (
	OutcomeIgnored Outcome = "ignored"
	OutcomeReport  Outcome = "report"
	OutcomeShown   Outcome = "shown"
	OutcomeEmpty   Outcome = "empty"
	OutcomeFailed  Outcome = "failed"
)

// CoordinateFetcher returns the features at a map coordinate.
type CoordinateFetcher interface {
	FetchByCoordinate(ctx context.Context, easting, northing float64) (*geojson.FeatureCollection, error)
}

// Controller owns the reverse lookup tool state of one viewer.
type Controller struct {
	presenter    *render.Presenter
	detail       CoordinateFetcher
	modes        *mode.Coordinator
	enabled      bool
	initial      bool
	onDeactivate func()
	logger       *zap.Logger

	mu          sync.Mutex
	active      bool
	unsubscribe func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithEnabled makes the toggle available. Without it Toggle does nothing.
func WithEnabled(enabled bool) Option {
	return func(c *Controller) { c.enabled = enabled }
}

// WithInitialState sets the state broadcast by Start: "active" or "initial".
func WithInitialState(state string) Option {
	return func(c *Controller) { c.initial = state == "active" }
}

// WithOnDeactivate replaces what happens when the tool is switched off. The default
// clears the scratch layer.
func WithOnDeactivate(fn func()) Option {
	return func(c *Controller) { c.onDeactivate = fn }
}

// NewController creates a controller and subscribes it to modes.
func NewController(p *render.Presenter, detail CoordinateFetcher, modes *mode.Coordinator, opts ...Option) *Controller {
	c := &Controller{
		presenter: p,
		detail:    detail,
		modes:     modes,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onDeactivate == nil {
		c.onDeactivate = p.Viewer().Scratch.Clear
	}
	c.unsubscribe = modes.Subscribe(c.OnModeChanged)
	return c
}

// Start broadcasts the initial state when the tool is enabled.
func (c *Controller) Start() {
	if c.enabled {
		c.modes.SetActive(Name, c.initial)
	}
}

// Close unsubscribes from mode events.
func (c *Controller) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Enabled reports whether the toggle is available.
func (c *Controller) Enabled() bool { return c.enabled }

// Active reports whether clicks perform lookups.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Toggle broadcasts the opposite of the current state.
func (c *Controller) Toggle() {
	if !c.enabled {
		return
	}
	c.modes.SetActive(Name, !c.Active())
}

// OnModeChanged activates the tool when it is addressed and active, and deactivates
// it on every other event.
func (c *Controller) OnModeChanged(ev mode.Event) {
	on := ev.Name == Name && ev.Active
	c.mu.Lock()
	c.active = on
	c.mu.Unlock()
	if !on {
		c.onDeactivate()
	}
}

// OnMapClick handles a click at coordinate. A click on a report icon opens the report
// and nothing else; otherwise an active tool looks up the parcel at the coordinate.
func (c *Controller) OnMapClick(ctx context.Context, coordinate orb.Point) Outcome {
	viewer := c.presenter.Viewer()
	if hit, ok := viewer.Scratch.HitTest(coordinate, c.presenter.HitTolerance()); ok && c.presenter.OpenReport(hit) {
		return OutcomeReport
	}
	if !c.Active() {
		return OutcomeIgnored
	}

	fc, err := c.detail.FetchByCoordinate(ctx, coordinate[0], coordinate[1])
	if errors.Is(err, fetch.ErrNoFeatures) {
		c.logger.Info("There is no data available for this object!", zap.Float64s("coordinate", coordinate[:]))
		return OutcomeEmpty
	}
	if err != nil {
		c.logger.Error("coordinate lookup failed", zap.Float64s("coordinate", coordinate[:]), zap.Error(err))
		return OutcomeFailed
	}
	features := nonEmpty(fc.Features)
	if len(features) == 0 {
		c.logger.Info("There is no data available for this object!", zap.Float64s("coordinate", coordinate[:]))
		return OutcomeEmpty
	}

	popup := c.presenter.Mode() == render.ModePopup
	if len(features) > 1 && popup {
		c.logger.Debug("merging feature collection into a multi-polygon", zap.Int("features", len(features)))
		if err := geo.MergePolygons(features); err != nil {
			c.logger.Info("feature collection does not contain polygons, not merged")
		}
	}

	viewer.Scratch.Clear()
	if popup {
		c.showPanel(viewer, features[0])
	} else {
		c.showGeometries(viewer, features, coordinate)
	}
	return OutcomeShown
}

// showPanel opens the feature-info panel at the point of the feature closest to the
// north-west corner of the view, where it covers the least of the feature.
func (c *Controller) showPanel(viewer render.Viewer, f *geojson.Feature) {
	extent := viewer.View.CurrentExtent()
	anchor := geo.ClosestPoint(f.Geometry, orb.Point{extent.Min[0], extent.Max[1]})
	c.presenter.Clear()
	viewer.Panel.Render([]render.InfoItem{{
		Title:   ResultTitle,
		Content: render.Div(ParentName(featureName(f))),
		Feature: f,
	}}, render.PanelModeOverlay, anchor)
}

// showGeometries draws every feature. Several features each get a short label at
// their centroid. The parent name is placed at the click point, plus a report icon
// when the first feature carries an object identity.
func (c *Controller) showGeometries(viewer render.Viewer, features []*geojson.Feature, at orb.Point) {
	var items []render.Item
	if len(features) > 1 {
		for _, f := range features {
			items = append(items,
				render.Item{Kind: render.KindFeature, Feature: f},
				labelItem(geo.Centroid(f.Geometry), ShortLabel(featureName(f))))
		}
	} else {
		items = append(items, render.Item{Kind: render.KindFeature, Feature: features[0]})
	}
	items = append(items, labelItem(at, ParentName(featureName(features[0]))))

	if id := models.Record(features[0].Properties).String(render.PropObjectIdentity); id != "" && c.presenter.ReportsEnabled() {
		items = append(items, c.presenter.ReportIcon(id, at))
	}
	viewer.Scratch.Add(items...)
}

func labelItem(at orb.Point, text string) render.Item {
	return render.Item{Kind: render.KindLabel, Feature: geojson.NewFeature(at), Label: text}
}

func featureName(f *geojson.Feature) string {
	return models.Record(f.Properties).String(render.PropName)
}

func nonEmpty(features []*geojson.Feature) []*geojson.Feature {
	out := features[:0:0]
	for _, f := range features {
		if f != nil && f.Geometry != nil {
			out = append(out, f)
		}
	}
	return out
}
