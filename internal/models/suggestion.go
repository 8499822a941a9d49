package models

// Suggestion is one selectable row of the autocomplete list: a Record augmented with a
// generated identifier (Label) and a display string (Value). Header is set on the first
// suggestion of each type when suggestions are grouped.
type Suggestion struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Header string `json:"header,omitempty"`
	Record Record `json:"record"`
}

// Attr returns the record attribute named key as a string.
func (s *Suggestion) Attr(key string) string {
	if s == nil {
		return ""
	}
	return s.Record.String(key)
}
