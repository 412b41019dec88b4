package domain

import "strings"

// Direction tags one travel direction of a route. It replaces the
// marker-suffix string convention everywhere inside the service; the
// suffix form survives only in route identifiers and caller tokens.
type Direction int

const (
	DirectionForward Direction = iota
	DirectionReverse
)

// ReverseMarker is the suffix appended to a forward route id to form
// its reverse companion's id.
const ReverseMarker = "R"

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// ParseDirection maps the wire names used by the leg-removal endpoint.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(s) {
	case "forward", "normal":
		return DirectionForward, true
	case "reverse":
		return DirectionReverse, true
	}
	return DirectionForward, false
}

// ParseRouteToken splits a caller-supplied route token into the base
// route id and the direction it seeks. A trailing reversal marker means
// reverse; the base id is the token with the marker stripped. This must
// stay in lockstep with ReverseRouteID or lookups silently miss.
func ParseRouteToken(token string) (baseID string, dir Direction) {
	if strings.HasSuffix(token, ReverseMarker) && len(token) > len(ReverseMarker) {
		return strings.TrimSuffix(token, ReverseMarker), DirectionReverse
	}
	return token, DirectionForward
}

// ReverseRouteID forms the identifier of the reverse companion.
func ReverseRouteID(forwardID string) string {
	return forwardID + ReverseMarker
}

// IsReverseRouteID reports whether an id already carries the marker.
// Routes that carry it are never re-reversed.
func IsReverseRouteID(id string) bool {
	return strings.HasSuffix(id, ReverseMarker) && len(id) > len(ReverseMarker)
}
