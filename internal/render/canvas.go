package render

import (
	"sync"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/paulmach/orb"
)

// Extent is a bound written as [minX, minY, maxX, maxY].
type Extent [4]float64

// ExtentOf converts b to an Extent.
func ExtentOf(b orb.Bound) Extent {
	return Extent{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Bound converts e back to an orb.Bound.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e[0], e[1]}, Max: orb.Point{e[2], e[3]}}
}

// Zoom records the last ZoomToExtent call.
type Zoom struct {
	Extent  Extent `json:"extent"`
	MaxZoom int    `json:"max_zoom"`
}

// Panel is the rendered state of the feature-info panel.
type Panel struct {
	Mode   string     `json:"mode"`
	Anchor orb.Point  `json:"anchor"`
	Items  []InfoItem `json:"items"`
}

// Dialog is an open modal.
type Dialog struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Styles are reported with a snapshot so a client can draw the scratch layer.
type Styles struct {
	Feature config.FeatureStyle `json:"feature"`
	Label   config.LabelStyle   `json:"label"`
	Icon    string              `json:"icon,omitempty"`
}

// Snapshot is the observable state of a Canvas.
type Snapshot struct {
	Items  []Item   `json:"items"`
	Extent Extent   `json:"extent"`
	Zoom   *Zoom    `json:"zoom,omitempty"`
	Popup  *Popup   `json:"popup,omitempty"`
	Panel  *Panel   `json:"panel,omitempty"`
	Modal  *Dialog  `json:"modal,omitempty"`
	Alerts []string `json:"alerts,omitempty"`
	Styles *Styles  `json:"styles,omitempty"`
}

// Canvas is a headless viewer. It implements every viewer service and records what
// was drawn so a remote client or a test can read it back.
type Canvas struct {
	mu     sync.Mutex
	items  []Item
	extent orb.Bound
	zoom   *Zoom
	popup  *Popup
	panel  *Panel
	modal  *Dialog
	alerts []string
	styles *Styles
}

// CanvasOption configures a Canvas.
type CanvasOption func(*Canvas)

// WithExtent sets the initial view extent.
func WithExtent(b orb.Bound) CanvasOption {
	return func(c *Canvas) { c.extent = b }
}

// WithStyles attaches styles to snapshots.
func WithStyles(s Styles) CanvasOption {
	return func(c *Canvas) { c.styles = &s }
}

// NewCanvas creates an empty canvas.
func NewCanvas(opts ...CanvasOption) *Canvas {
	c := &Canvas{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Viewer returns c as every viewer service.
func (c *Canvas) Viewer() Viewer {
	return Viewer{Scratch: c, View: c, Overlays: c, Panel: infoPanel{c}, Modal: c, Alerter: c}
}

// infoPanel adapts the canvas to FeatureInfoPanel, whose Clear differs from the scratch layer's.
type infoPanel struct{ c *Canvas }

func (p infoPanel) Render(items []InfoItem, mode string, anchor orb.Point) {
	p.c.mu.Lock()
	p.c.panel = &Panel{Mode: mode, Anchor: anchor, Items: items}
	p.c.mu.Unlock()
}

func (p infoPanel) Clear() {
	p.c.mu.Lock()
	p.c.panel = nil
	p.c.mu.Unlock()
}

func (c *Canvas) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

func (c *Canvas) Add(items ...Item) {
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

func (c *Canvas) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Canvas) HitTest(p orb.Point, tolerance float64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.items) - 1; i >= 0; i-- {
		it := c.items[i]
		if it.Feature == nil || it.Kind == KindLabel {
			continue
		}
		if geo.Contains(it.Feature.Geometry, p, tolerance) {
			return it, true
		}
	}
	return Item{}, false
}

// ZoomToExtent fits the view to g. The headless view takes the geometry bound as its new extent.
func (c *Canvas) ZoomToExtent(g orb.Geometry, maxZoom int) {
	if g == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extent = g.Bound()
	c.zoom = &Zoom{Extent: ExtentOf(c.extent), MaxZoom: maxZoom}
}

func (c *Canvas) CurrentExtent() orb.Bound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extent
}

// SetExtent records the extent reported by the client.
func (c *Canvas) SetExtent(b orb.Bound) {
	c.mu.Lock()
	c.extent = b
	c.mu.Unlock()
}

func (c *Canvas) ShowPopup(p Popup) {
	c.mu.Lock()
	c.popup = &p
	c.mu.Unlock()
}

func (c *Canvas) RemoveOverlays() {
	c.mu.Lock()
	c.popup = nil
	c.mu.Unlock()
}

func (c *Canvas) Open(title, content string) {
	c.mu.Lock()
	c.modal = &Dialog{Title: title, Content: content}
	c.mu.Unlock()
}

// CloseModal dismisses the open modal.
func (c *Canvas) CloseModal() {
	c.mu.Lock()
	c.modal = nil
	c.mu.Unlock()
}

func (c *Canvas) Alert(message string) {
	c.mu.Lock()
	c.alerts = append(c.alerts, message)
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Items:  make([]Item, len(c.items)),
		Extent: ExtentOf(c.extent),
		Zoom:   c.zoom,
		Popup:  c.popup,
		Panel:  c.panel,
		Modal:  c.modal,
		Styles: c.styles,
	}
	copy(s.Items, c.items)
	if len(c.alerts) > 0 {
		s.Alerts = append([]string(nil), c.alerts...)
	}
	return s
}
