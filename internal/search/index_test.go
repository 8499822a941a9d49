package search

import (
	"testing"

	"github.com/hyperjump/lmsearch/internal/models"
)

func TestIndex_IngestLookupRoundTrip(t *testing.T) {
	idx := NewIndex("NAMN")
	records := []models.Record{
		{"NAMN": "Storgatan 1", "TYPE": "Adress"},
		{"NAMN": "Storgatan 1", "TYPE": "Adress"},
		{"NAMN": "Kalmar 2:19", "TYPE": "Fastighet"},
	}
	idx.Ingest(records)

	entries := idx.Entries()
	if len(entries) != len(records) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(records))
	}
	seen := make(map[string]bool)
	for i, e := range entries {
		if seen[e.Label] {
			t.Errorf("duplicate identifier %q", e.Label)
		}
		seen[e.Label] = true
		got, ok := idx.Lookup(e.Label)
		if !ok {
			t.Fatalf("Lookup(%q) missing", e.Label)
		}
		if got.Value != records[i].String("NAMN") {
			t.Errorf("value = %q, want %q", got.Value, records[i].String("NAMN"))
		}
	}
}

func TestIndex_BlankValueForMissingAttribute(t *testing.T) {
	idx := NewIndex("NAMN")
	idx.Ingest([]models.Record{{"other": "x"}})
	if v := idx.Entries()[0].Value; v != " " {
		t.Errorf("value = %q, want single space", v)
	}
}

func TestIndex_Reset(t *testing.T) {
	idx := NewIndex("NAMN")
	idx.Ingest([]models.Record{{"NAMN": "a"}})
	idx.Reset()
	idx.Reset()
	if idx.Len() != 0 || len(idx.Entries()) != 0 {
		t.Error("index should be empty after Reset")
	}
	if _, ok := idx.Lookup("anything"); ok {
		t.Error("Lookup on empty index should miss")
	}
}
