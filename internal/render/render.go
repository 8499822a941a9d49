// Package render defines the map viewer services lmsearch draws into, a headless
// implementation of them, and the presenter that turns resolved features into map state.
package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Display modes.
const (
	ModePopup        = "popup"
	ModeGeometryOnly = "geometryOnly"
)

// PanelModeOverlay is the feature-info panel mode used for search results.
const PanelModeOverlay = "overlay"

// ItemKind tells a renderer how to style a scratch layer item.
type ItemKind string

const (
	KindFeature ItemKind = "feature"
	KindLabel   ItemKind = "label"
	KindIcon    ItemKind = "icon"
)

// Item is one feature on the scratch layer.
type Item struct {
	Kind    ItemKind         `json:"kind"`
	Feature *geojson.Feature `json:"feature"`
	// Label is the text drawn for label items.
	Label string `json:"label,omitempty"`
}

// Popup is a plain overlay popup.
type Popup struct {
	Coordinate orb.Point `json:"coordinate"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
}

// InfoItem is one entry of the feature-info panel.
type InfoItem struct {
	Title   string           `json:"title"`
	Content string           `json:"content"`
	Feature *geojson.Feature `json:"feature"`
}

// ScratchLayer is the vector layer owned by lmsearch for transient results.
type ScratchLayer interface {
	Clear()
	Add(items ...Item)
	Items() []Item
	// HitTest returns the topmost item covering p within tolerance map units.
	HitTest(p orb.Point, tolerance float64) (Item, bool)
}

// View controls the map extent.
type View interface {
	ZoomToExtent(g orb.Geometry, maxZoom int)
	CurrentExtent() orb.Bound
}

// Overlays shows and removes popups.
type Overlays interface {
	ShowPopup(p Popup)
	RemoveOverlays()
}

// FeatureInfoPanel is the viewer's feature-info control.
type FeatureInfoPanel interface {
	Render(items []InfoItem, mode string, anchor orb.Point)
	Clear()
}

// Modal opens a dialog.
type Modal interface {
	Open(title, content string)
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(message string)
}

// Viewer bundles the services of one map viewer.
type Viewer struct {
	Scratch  ScratchLayer
	View     View
	Overlays Overlays
	Panel    FeatureInfoPanel
	Modal    Modal
	Alerter  Alerter
}
