// Package search holds the per-query suggestion index and the aggregator that fills it
// from the configured sources.
package search

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/sources"
	"go.uber.org/zap"
)

const (
	// DefaultDebounce is the delay between the last keystroke and the request.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultLimit is the number of suggestions shown.
	DefaultLimit = 9
	// DefaultMinLength is the shortest query that triggers a request.
	DefaultMinLength = 4
	// DefaultNoMatchLabel is the type shown on the sentinel row of an empty result.
	DefaultNoMatchLabel = "Ingen träff"

	fallbackTypeAttr = "layer"
	defaultTimeout   = 10 * time.Second
)

// ListWidget is the autocomplete list the aggregator publishes to.
type ListWidget interface {
	SetList(items []*models.Suggestion)
	// Evaluate redraws the list.
	Evaluate()
}

// Clearer empties a map layer.
type Clearer interface {
	Clear()
}

// Options configures an Aggregator.
type Options struct {
	QueryAttr    string
	TypeAttr     string
	Limit        int
	MinLength    int
	NoMatchLabel string
	Debounce     time.Duration
	Timeout      time.Duration
}

func (o *Options) applyDefaults() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.NoMatchLabel == "" {
		o.NoMatchLabel = DefaultNoMatchLabel
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
}

// Grouped reports whether suggestions are ranked round-robin by type.
func (o Options) Grouped() bool {
	return o.QueryAttr != "" && o.TypeAttr != ""
}

// Aggregator turns keystrokes into a ranked suggestion list. At most one debounce
// timer is pending; each dispatched request takes a sequence number and only the
// response carrying the latest number is applied.
type Aggregator struct {
	opts    Options
	sources []sources.Source
	index   *Index
	list    ListWidget
	scratch Clearer
	logger  *zap.Logger

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	seq      uint64
	requests uint64
	closed   bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithScratchLayer sets the layer emptied by ClearSearchResults.
func WithScratchLayer(c Clearer) Option {
	return func(a *Aggregator) { a.scratch = c }
}

// NewAggregator creates an aggregator publishing to list and storing suggestions in index.
func NewAggregator(opts Options, srcs []sources.Source, index *Index, list ListWidget, options ...Option) *Aggregator {
	opts.applyDefaults()
	a := &Aggregator{
		opts:    opts,
		sources: srcs,
		index:   index,
		list:    list,
		logger:  zap.NewNop(),
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Options returns the effective options.
func (a *Aggregator) Options() Options { return a.opts }

// Index returns the suggestion index of the current query.
func (a *Aggregator) Index() *Index { return a.index }

// OnInput handles the current input text after a key event. It schedules a request
// when the text is long enough and key is not a control key, superseding any pending
// one, and reports whether it did.
func (a *Aggregator) OnInput(text string, key models.Key) bool {
	if utf8.RuneCountInString(text) < a.opts.MinLength || key.IsControl() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(a.opts.Debounce, func() {
		a.fire(gen, text)
	})
	return true
}

func (a *Aggregator) fire(gen uint64, text string) {
	a.mu.Lock()
	if gen != a.gen || a.closed {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.seq++
	seq := a.seq
	a.requests++
	// Stale rows must not show while the request is in flight.
	a.list.SetList(nil)
	a.index.Reset()
	a.mu.Unlock()

	a.logger.Debug("making new request", zap.String("query", text), zap.Uint64("seq", seq))
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.Timeout)
	defer cancel()
	recs := a.collect(ctx, text)

	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.seq || a.closed {
		a.logger.Debug("dropping superseded response", zap.Uint64("seq", seq), zap.Uint64("latest", a.seq))
		return
	}
	a.index.Reset()
	a.index.Ingest(recs)
	a.list.SetList(a.rank(a.index, a.opts.Limit))
	a.list.Evaluate()
}

// collect fetches from every source and applies the empty and error policies, so the
// returned slice is never empty.
func (a *Aggregator) collect(ctx context.Context, text string) []models.Record {
	results, err := sources.Fanout(ctx, a.sources, text)
	if err != nil {
		a.logger.Warn("suggestion fetch failed", zap.String("query", text), zap.Error(err))
		return []models.Record{a.sentinel(err.Error())}
	}
	recs := sources.Flatten(results)
	if len(recs) == 0 {
		a.logger.Debug(a.opts.NoMatchLabel, zap.String("query", text))
		return []models.Record{a.sentinel(a.opts.NoMatchLabel)}
	}
	return recs
}

func (a *Aggregator) sentinel(label string) models.Record {
	rec := models.Record{}
	if a.opts.QueryAttr != "" {
		rec[a.opts.QueryAttr] = blankValue
	}
	typeAttr := a.opts.TypeAttr
	if typeAttr == "" {
		typeAttr = fallbackTypeAttr
	}
	rec[typeAttr] = label
	return rec
}

func (a *Aggregator) rank(idx *Index, limit int) []*models.Suggestion {
	entries := idx.Entries()
	if !a.opts.Grouped() {
		return Truncate(entries, limit)
	}
	return RoundRobin(GroupByType(entries, a.opts.TypeAttr), limit)
}

// Suggest runs the fetch and ranking pipeline synchronously for text without touching
// the aggregator's list or index. limit <= 0 uses the configured limit.
func (a *Aggregator) Suggest(ctx context.Context, text string, limit int) []*models.Suggestion {
	if limit <= 0 {
		limit = a.opts.Limit
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	idx := NewIndex(a.opts.QueryAttr)
	idx.Ingest(a.collect(ctx, text))
	return a.rank(idx, limit)
}

// ClearSearchResults empties the list, the index and the scratch layer. Calling it
// again is harmless.
func (a *Aggregator) ClearSearchResults() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.list.SetList(nil)
	a.index.Reset()
	if a.scratch != nil {
		a.scratch.Clear()
	}
}

// Requests returns the number of requests dispatched so far.
func (a *Aggregator) Requests() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// Close stops the pending timer and makes later input a no-op.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
