package lookup

import "testing"

func TestShortLabel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"five tokens", "KALMAR STENSÖ 2:19 Enhetesområde 5", "2:19>5"},
		{"five tokens short prefix", "X Y 12:3 Enhetesområde 4", "12:3>4"},
		{"six tokens", "NYBRO ÖRSJÖ BY 1:4 Enhetesområde 2", "1:4>2"},
		{"seven tokens", "KALMAR NORRA LÄNSMANS GÅRDEN 3:1 Enhetesområde 7", "3:1>7"},
		{"four tokens falls back to separator", "X 12:3 Enhetesområde 4", "X 12:3>4"},
		{"no separator", "KALMAR 1:1", "KALMAR 1:1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShortLabel(tt.in); got != tt.want {
				t.Errorf("ShortLabel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParentName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"KALMAR STENSÖ 2:19 Enhetesområde 5", "KALMAR STENSÖ 2:19 "},
		{"KALMAR STENSÖ 2:19", "KALMAR STENSÖ 2:19"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParentName(tt.in); got != tt.want {
			t.Errorf("ParentName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
