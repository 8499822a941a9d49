package models

import "fmt"

// SuggestQuery is a one-shot suggestion request, used by the stateless API and the CLI.
type SuggestQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate ensures the query is non-empty and normalizes the limit.
func (q *SuggestQuery) Validate(defaultLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
