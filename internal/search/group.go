package search

import "github.com/hyperjump/lmsearch/internal/models"

// Group is the suggestions of one type, in source order.
type Group struct {
	Type  string
	Items []*models.Suggestion
}

// GroupByType partitions suggestions by the typeAttr attribute. Groups appear in the
// order their type is first seen, and the first suggestion of each group gets Header set
// to the type.
func GroupByType(suggestions []*models.Suggestion, typeAttr string) []Group {
	var groups []Group
	pos := make(map[string]int)
	for _, s := range suggestions {
		t := s.Attr(typeAttr)
		i, ok := pos[t]
		if !ok {
			s.Header = t
			pos[t] = len(groups)
			groups = append(groups, Group{Type: t})
			i = len(groups) - 1
		}
		groups[i].Items = append(groups[i].Items, s)
	}
	return groups
}

// RoundRobin takes one suggestion from each non-exhausted group per pass, in group order,
// until limit suggestions are taken or every group is exhausted. No single type can
// crowd out the others, and each group keeps its internal order.
func RoundRobin(groups []Group, limit int) []*models.Suggestion {
	if limit <= 0 {
		return nil
	}
	var out []*models.Suggestion
	for turn := 0; len(out) < limit; turn++ {
		taken := false
		for _, g := range groups {
			if turn >= len(g.Items) {
				continue
			}
			out = append(out, g.Items[turn])
			taken = true
			if len(out) == limit {
				break
			}
		}
		if !taken {
			break
		}
	}
	return out
}

// Truncate returns at most limit suggestions in their given order.
func Truncate(suggestions []*models.Suggestion, limit int) []*models.Suggestion {
	if limit <= 0 || len(suggestions) <= limit {
		return suggestions
	}
	return suggestions[:limit]
}
