package render

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Properties of report icon features.
const (
	PropName           = "name"
	PropObjectIdentity = "objektidentitet"
	PropEstateReport   = "pageEstateReport"

	ReportIconName = "Fastighetsinformation"
)

// IconSVG returns the report icon image wrapping iconText.
func IconSVG(iconText string) string {
	return `<svg width="50" height="50" version="1.1" xmlns="http://www.w3.org/2000/svg">` +
		`<rect width="50" height="50" style="fill:rgba(255,255,255,0.5);stroke-width:5;stroke:rgb(0,0,0)" />` +
		iconText + `</svg>`
}

// StylesFrom builds the snapshot styles from configuration.
func StylesFrom(display config.DisplayConfig, estate config.EstateConfig) Styles {
	return Styles{
		Feature: display.FeatureStyle,
		Label:   display.Label,
		Icon:    IconSVG(estate.IconText),
	}
}

// Div wraps content in a block element.
func Div(content string) string {
	return "<div>" + content + "</div>"
}

// AttributesHTML lists the properties of f, sorted by name, as an HTML list.
func AttributesHTML(f *geojson.Feature) string {
	if f == nil || len(f.Properties) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f.Properties))
	for k, v := range f.Properties {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("<ul>")
	for _, k := range keys {
		fmt.Fprintf(&b, "<li><b>%s</b>: %s</li>",
			html.EscapeString(k), html.EscapeString(models.Record(f.Properties).String(k)))
	}
	b.WriteString("</ul>")
	return b.String()
}

// Presenter renders resolved features into a Viewer according to the display settings.
type Presenter struct {
	viewer  Viewer
	search  config.SearchConfig
	display config.DisplayConfig
	estate  config.EstateConfig
	logger  *zap.Logger
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Presenter) { p.logger = l }
}

// NewPresenter creates a presenter drawing into v.
func NewPresenter(v Viewer, search config.SearchConfig, display config.DisplayConfig, estate config.EstateConfig, opts ...Option) *Presenter {
	p := &Presenter{
		viewer:  v,
		search:  search,
		display: display,
		estate:  estate,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Viewer returns the services the presenter draws into.
func (p *Presenter) Viewer() Viewer { return p.viewer }

// Mode returns the display mode, popup or geometryOnly.
func (p *Presenter) Mode() string {
	if p.display.ShowFeature == ModePopup {
		return ModePopup
	}
	return ModeGeometryOnly
}

// HitTolerance is the click hit-test radius in map units.
func (p *Presenter) HitTolerance() float64 { return p.display.HitTolerance }

// ReportsEnabled reports whether a detail-report URL is configured.
func (p *Presenter) ReportsEnabled() bool { return p.estate.ReportURL != "" }

// Clear empties the feature-info panel and removes popups.
func (p *Presenter) Clear() {
	p.viewer.Panel.Clear()
	p.viewer.Overlays.RemoveOverlays()
}

// ShowFeatureInfo shows the first of features. In popup mode it opens the feature-info
// panel at the feature's centroid; otherwise it replaces the scratch layer with the
// feature, plus a report icon when objectID is set and reports are enabled. Either way
// the view zooms to the feature.
func (p *Presenter) ShowFeatureInfo(features []*geojson.Feature, title, content, objectID string) {
	if len(features) == 0 || features[0] == nil || features[0].Geometry == nil {
		p.logger.Warn("no geometry to show", zap.String("title", title))
		return
	}
	first := features[0]
	center := geo.Centroid(first.Geometry)
	if p.Mode() == ModePopup {
		p.Clear()
		p.viewer.Panel.Render([]InfoItem{{Title: title, Content: content, Feature: first}}, PanelModeOverlay, center)
	} else {
		p.viewer.Scratch.Clear()
		f := geojson.NewFeature(first.Geometry)
		f.Properties[PropName] = title
		items := []Item{{Kind: KindFeature, Feature: f}}
		if objectID != "" && p.ReportsEnabled() {
			items = append(items, p.ReportIcon(objectID, center))
		}
		p.viewer.Scratch.Add(items...)
	}
	p.viewer.View.ZoomToExtent(first.Geometry, p.display.MaxZoomLevel)
}

// ShowOverlay opens a popup at coord with the record's display value under the
// configured title and zooms to the point.
func (p *Presenter) ShowOverlay(rec models.Record, coord orb.Point) {
	p.Clear()
	p.viewer.Overlays.ShowPopup(Popup{
		Coordinate: coord,
		Title:      p.search.Title,
		Content:    rec.String(p.search.QueryAttribute),
	})
	p.viewer.View.ZoomToExtent(coord, p.display.MaxZoomLevel)
}

// ReportFrame returns the iframe markup of the detail report for objectID.
func (p *Presenter) ReportFrame(objectID string) string {
	return fmt.Sprintf(`<iframe src="%s" style="width: %s; height: %s;display: block;"></iframe>`,
		html.EscapeString(p.estate.ReportURL+objectID), p.estate.ReportWidth, p.estate.ReportHeight)
}

// ReportIcon returns an icon item at the given point carrying the report of objectID.
func (p *Presenter) ReportIcon(objectID string, at orb.Point) Item {
	f := geojson.NewFeature(at)
	f.Properties[PropName] = ReportIconName
	f.Properties[PropObjectIdentity] = objectID
	f.Properties[PropEstateReport] = p.ReportFrame(objectID)
	return Item{Kind: KindIcon, Feature: f}
}

// OpenReport opens the report carried by it in the modal. It reports false when the
// item has no report or reports are disabled.
func (p *Presenter) OpenReport(it Item) bool {
	if it.Feature == nil || !p.ReportsEnabled() {
		return false
	}
	props := models.Record(it.Feature.Properties)
	if !props.Has(PropEstateReport) {
		return false
	}
	p.viewer.Modal.Open(props.String(PropName), props.String(PropEstateReport))
	return true
}
