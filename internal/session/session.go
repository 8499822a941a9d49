// Package session holds the per-viewer state of lmsearch: the suggestion index and
// list, the scratch layer, the interaction mode and the components acting on them.
package session

import (
	"sync"
	"time"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/lookup"
	"github.com/hyperjump/lmsearch/internal/mode"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/hyperjump/lmsearch/internal/resolve"
	"github.com/hyperjump/lmsearch/internal/search"
	"github.com/hyperjump/lmsearch/internal/sources"
	"go.uber.org/zap"
)

// Deps are shared by all sessions.
type Deps struct {
	Config  *config.Config
	Sources []sources.Source
	Layers  resolve.LayerSource
	Objects resolve.ObjectFetcher
	Coords  lookup.CoordinateFetcher
	Logger  *zap.Logger
	// Debounce overrides the keystroke debounce; zero keeps the default.
	Debounce time.Duration
}

// List is the suggestion list of one viewer. Version increases on every redraw.
type List struct {
	mu      sync.Mutex
	items   []*models.Suggestion
	version uint64
}

// SetList replaces the items.
func (l *List) SetList(items []*models.Suggestion) {
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
}

// Evaluate marks the list redrawn.
func (l *List) Evaluate() {
	l.mu.Lock()
	l.version++
	l.mu.Unlock()
}

// Items returns the items and the redraw version.
func (l *List) Items() ([]*models.Suggestion, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Suggestion, len(l.items))
	copy(out, l.items)
	return out, l.version
}

// Session is one viewer.
type Session struct {
	ID      string
	Created time.Time

	Index      *search.Index
	List       *List
	Canvas     *render.Canvas
	Presenter  *render.Presenter
	Aggregator *search.Aggregator
	Dispatcher *resolve.Dispatcher
	Modes      *mode.Coordinator
	Lookup     *lookup.Controller

	mu       sync.Mutex
	lastSeen time.Time
	query    string
}

// New wires a session from deps and broadcasts the lookup tool's initial state.
func New(id string, deps Deps) *Session {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", id))

	s := &Session{
		ID:      id,
		Created: time.Now(),
		Index:   search.NewIndex(cfg.Search.QueryAttribute),
		List:    &List{},
		Canvas: render.NewCanvas(
			render.WithStyles(render.StylesFrom(cfg.Display, cfg.Estate)),
		),
		Modes: mode.NewCoordinator(),
	}
	s.lastSeen = s.Created

	s.Presenter = render.NewPresenter(s.Canvas.Viewer(), cfg.Search, cfg.Display, cfg.Estate,
		render.WithLogger(logger))
	s.Aggregator = search.NewAggregator(search.Options{
		QueryAttr:    cfg.Search.QueryAttribute,
		TypeAttr:     cfg.Search.LayerNameAttribute,
		Limit:        cfg.Search.Limit,
		MinLength:    cfg.Search.MinLength,
		NoMatchLabel: cfg.Search.NoMatchLabel,
		Debounce:     deps.Debounce,
		Timeout:      cfg.Sources.Timeout,
	}, deps.Sources, s.Index, s.List,
		search.WithLogger(logger),
		search.WithScratchLayer(s.Canvas))
	s.Dispatcher = resolve.NewDispatcher(cfg.Search, s.Index, deps.Layers, deps.Objects, s.Presenter,
		resolve.WithLogger(logger),
		resolve.WithDetailIDAttribute(cfg.Detail.IDAttribute))
	s.Lookup = lookup.NewController(s.Presenter, deps.Coords, s.Modes,
		lookup.WithLogger(logger),
		lookup.WithEnabled(cfg.Estate.Lookup),
		lookup.WithInitialState(cfg.Estate.InitialState),
		lookup.WithOnDeactivate(s.Aggregator.ClearSearchResults))
	s.Lookup.Start()
	return s
}

// Input feeds the current input text and key to the aggregator and remembers the text
// for row rendering.
func (s *Session) Input(text string, key models.Key) bool {
	s.mu.Lock()
	s.query = text
	s.mu.Unlock()
	return s.Aggregator.OnInput(text, key)
}

// Query returns the last input text.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Clear empties the suggestions, the scratch layer, the panel and popups, like the
// search box's close button.
func (s *Session) Clear() {
	s.Aggregator.ClearSearchResults()
	s.Presenter.Clear()
	s.mu.Lock()
	s.query = ""
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops pending work.
func (s *Session) Close() {
	s.Aggregator.Close()
	s.Lookup.Close()
}
