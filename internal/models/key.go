package models

import "strings"

// Key identifies the key that produced an input event. Control keys never trigger a
// suggestion request.
type Key int

const (
	// KeyNone is any character-producing key (or no key, e.g. paste).
	KeyNone Key = iota
	KeyTab
	KeyEscape
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyEnter
)

var keyNames = map[string]Key{
	"tab":    KeyTab,
	"esc":    KeyEscape,
	"escape": KeyEscape,
	"left":   KeyLeft,
	"right":  KeyRight,
	"up":     KeyUp,
	"down":   KeyDown,
	"enter":  KeyEnter,
}

// ParseKey maps a key name ("tab", "esc", "left", ...) to a Key. Unknown names are KeyNone.
func ParseKey(name string) Key {
	if k, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k
	}
	return KeyNone
}

// IsControl reports whether k is a navigation or control key.
func (k Key) IsControl() bool {
	return k != KeyNone
}
