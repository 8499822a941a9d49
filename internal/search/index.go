package search

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/lmsearch/internal/models"
)

// blankValue stands in for a missing display value; the list widget drops empty strings.
const blankValue = " "

// Index holds the suggestions of the current query keyed by generated identifier.
// It is replaced wholesale on every query and never merged.
type Index struct {
	mu        sync.RWMutex
	queryAttr string
	newID     func() string
	entries   map[string]*models.Suggestion
	order     []string
}

// NewIndex creates an empty index whose display values come from queryAttr.
func NewIndex(queryAttr string) *Index {
	return &Index{
		queryAttr: queryAttr,
		newID:     uuid.NewString,
		entries:   make(map[string]*models.Suggestion),
	}
}

// Reset removes every entry.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]*models.Suggestion)
	idx.order = nil
}

// Ingest assigns each record a fresh identifier and display value and stores it.
// Duplicate records get distinct identifiers.
func (idx *Index) Ingest(records []models.Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, rec := range records {
		id := idx.newID()
		value := rec.String(idx.queryAttr)
		if value == "" {
			value = blankValue
		}
		idx.entries[id] = &models.Suggestion{Label: id, Value: value, Record: rec}
		idx.order = append(idx.order, id)
	}
}

// Lookup returns the suggestion with the given identifier.
func (idx *Index) Lookup(id string) (*models.Suggestion, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.entries[id]
	return s, ok
}

// Entries returns the suggestions in insertion order.
func (idx *Index) Entries() []*models.Suggestion {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*models.Suggestion, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.entries[id])
	}
	return out
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
