// Package resolve turns a selected suggestion into map state by running the first
// resolution strategy that the search configuration allows.
package resolve

import (
	"context"
	"errors"

	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

var (
	// ErrUnknownSuggestion is returned for an id not in the current suggestion index.
	ErrUnknownSuggestion = errors.New("unknown suggestion")
	// ErrNoStrategy is returned when the configuration enables no strategy.
	ErrNoStrategy = errors.New("search options are missing")
)

// SuggestionLookup finds a suggestion of the current query by id.
type SuggestionLookup interface {
	Lookup(id string) (*models.Suggestion, bool)
}

// LayerSource is the part of the layer registry the strategies need.
type LayerSource interface {
	GetLayer(ctx context.Context, name string) (*layers.Layer, error)
	FeatureByID(ctx context.Context, layer, id string) ([]*geojson.Feature, error)
}

// ObjectFetcher fetches the detail features of an object id.
type ObjectFetcher interface {
	FetchByObjectID(ctx context.Context, objectID string) (*geojson.FeatureCollection, error)
}

// Dispatcher resolves selected suggestions.
type Dispatcher struct {
	search     config.SearchConfig
	idAttr     string
	index      SuggestionLookup
	layers     LayerSource
	detail     ObjectFetcher
	presenter  *render.Presenter
	strategies []Strategy
	logger     *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithStrategies replaces the default strategy table.
func WithStrategies(s []Strategy) Option {
	return func(d *Dispatcher) { d.strategies = s }
}

// WithDetailIDAttribute sets the record attribute holding the object id used for
// detail fetches. Defaults to "id".
func WithDetailIDAttribute(attr string) Option {
	return func(d *Dispatcher) {
		if attr != "" {
			d.idAttr = attr
		}
	}
}

// NewDispatcher creates a dispatcher reading selections from index.
func NewDispatcher(search config.SearchConfig, index SuggestionLookup, layerSource LayerSource, detail ObjectFetcher, presenter *render.Presenter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		search:     search,
		idAttr:     "id",
		index:      index,
		layers:     layerSource,
		detail:     detail,
		presenter:  presenter,
		strategies: DefaultStrategies(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strategy returns the strategy the configuration selects.
func (d *Dispatcher) Strategy() (Strategy, bool) {
	return Select(d.strategies, d.search)
}

// Resolve renders the suggestion with the given id and returns the name of the
// strategy used. Failures are logged and returned; none of them leave partial state.
func (d *Dispatcher) Resolve(ctx context.Context, id string) (string, error) {
	s, ok := d.index.Lookup(id)
	if !ok {
		d.logger.Info("selected suggestion is not in the current result", zap.String("id", id))
		return "", ErrUnknownSuggestion
	}
	strategy, ok := d.Strategy()
	if !ok {
		d.logger.Info("search options are missing")
		return "", ErrNoStrategy
	}
	d.logger.Debug("resolving suggestion", zap.String("id", id), zap.String("strategy", strategy.Name))
	if err := strategy.Run(ctx, d, s.Record); err != nil {
		d.logger.Error("resolve failed", zap.String("strategy", strategy.Name), zap.Error(err))
		return strategy.Name, err
	}
	return strategy.Name, nil
}

// parseGeometry parses the geometry text of rec into a feature carrying the record's
// other attributes. Text tagged with a foreign SRID is rejected.
func (d *Dispatcher) parseGeometry(rec models.Record) (*geojson.Feature, error) {
	f, err := geo.ParseWKTIn(rec.String(d.search.GeometryAttribute), d.search.ProjectionCode)
	if err != nil {
		return nil, err
	}
	for k, v := range rec {
		if k != d.search.GeometryAttribute {
			f.Properties[k] = v
		}
	}
	return f, nil
}
