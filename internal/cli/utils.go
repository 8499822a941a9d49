// Package cli provides output helpers for the lmsearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
)

// OutputFormat is the format for suggestion and layer output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one tab-separated line per row.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named s; unknown names fall back to text.
func ParseFormat(s string) OutputFormat {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputCompact:
		return OutputCompact
	case OutputJSON:
		return OutputJSON
	default:
		return OutputText
	}
}

// WriteSuggestions writes the ranked suggestions for query to w in the given format.
// typeAttr names the record attribute shown as the row type.
func WriteSuggestions(w io.Writer, query string, list []*models.Suggestion, typeAttr string, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []*models.Suggestion{}
		}
		return enc.Encode(struct {
			Query       string               `json:"query"`
			Suggestions []*models.Suggestion `json:"suggestions"`
		}{query, list})
	case OutputCompact:
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Attr(typeAttr), strings.TrimSpace(s.Value), s.Label)
		}
		return nil
	default:
		writeSuggestionsText(w, query, list, typeAttr)
		return nil
	}
}

func writeSuggestionsText(w io.Writer, query string, list []*models.Suggestion, typeAttr string) {
	fmt.Fprintf(w, "\n%d suggestions for %q\n", len(list), query)
	grouped := len(list) > 0 && list[0].Header != ""
	for _, s := range list {
		if s.Header != "" {
			fmt.Fprintf(w, "\n--- %s ---\n", s.Header)
		}
		if !grouped && s.Attr(typeAttr) != "" {
			fmt.Fprintf(w, "  [%s] %s\n", s.Attr(typeAttr), Truncate(strings.TrimSpace(s.Value), 80))
			continue
		}
		fmt.Fprintf(w, "  %s\n", Truncate(strings.TrimSpace(s.Value), 80))
	}
	fmt.Fprintln(w)
}

// WriteLayers writes the registered layers to w in the given format.
func WriteLayers(w io.Writer, list []*layers.Layer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []*layers.Layer{}
		}
		return enc.Encode(map[string]interface{}{"layers": list})
	case OutputCompact:
		for _, l := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\n", l.Name, l.Title, l.FeatureCount)
		}
		return nil
	default:
		if len(list) == 0 {
			fmt.Fprintln(w, "No layers registered.")
			return nil
		}
		for _, l := range list {
			fmt.Fprintf(w, "%-24s %-32s %6d features", l.Name, Truncate(l.Title, 32), l.FeatureCount)
			if l.SourcePath != "" {
				fmt.Fprintf(w, "  %s", l.SourcePath)
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// Truncate shortens s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
