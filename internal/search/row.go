package search

import (
	"html"
	"regexp"
	"strings"

	"github.com/hyperjump/lmsearch/internal/models"
)

// RenderRow renders one list row. The first suggestion of a group gets a heading and the
// "header" class; occurrences of query in the display value are wrapped in <mark>,
// ignoring case.
func RenderRow(s *models.Suggestion, query string) string {
	var b strings.Builder
	if s.Header != "" {
		b.WriteString(`<li aria-selected="false" class="header">`)
		b.WriteString(`<div class="heading">`)
		b.WriteString(html.EscapeString(s.Header))
		b.WriteString(`</div>`)
	} else {
		b.WriteString(`<li aria-selected="false">`)
	}
	b.WriteString(`<div class="suggestion">`)
	writeHighlighted(&b, s.Value, query)
	b.WriteString(`</div></li>`)
	return b.String()
}

// writeHighlighted matches query against the raw value and escapes each segment on its
// own, so markup never splits an entity.
func writeHighlighted(b *strings.Builder, value, query string) {
	if query == "" {
		b.WriteString(html.EscapeString(value))
		return
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	last := 0
	for _, m := range re.FindAllStringIndex(value, -1) {
		b.WriteString(html.EscapeString(value[last:m[0]]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(value[m[0]:m[1]]))
		b.WriteString("</mark>")
		last = m[1]
	}
	b.WriteString(html.EscapeString(value[last:]))
}
