package lookup

import "strings"

const (
	// parentMarker starts the sub-parcel part of a parcel name.
	parentMarker = "Enhetesomr"
	// areaSeparator sits between parcel and sub-parcel number in a parcel name.
	areaSeparator = " Enhetesområde "
)

// labelTokens maps a name's token count to the positions joined by ShortLabel.
var labelTokens = map[int][2]int{
	5: {2, 4},
	6: {3, 5},
	7: {4, 6},
}

// ShortLabel derives the compact sub-parcel label of a parcel name, such as "2:19>5"
// for "KALMAR STENSÖ 2:19 Enhetesområde 5". Names with an unexpected token count get
// their first area separator replaced by ">".
func ShortLabel(name string) string {
	tokens := strings.Fields(name)
	if pos, ok := labelTokens[len(tokens)]; ok {
		return tokens[pos[0]] + ">" + tokens[pos[1]]
	}
	return strings.Replace(name, areaSeparator, ">", 1)
}

// ParentName returns the part of a parcel name before the sub-parcel marker, or the
// whole name when there is no marker.
func ParentName(name string) string {
	if i := strings.Index(name, parentMarker); i >= 0 {
		return name[:i]
	}
	return name
}
