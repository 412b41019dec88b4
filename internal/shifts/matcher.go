package shifts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	// eligibilityDays is the forward reach of the service-date window,
	// inclusive at both ends: [queryDate, queryDate+eligibilityDays].
	eligibilityDays = 2
)

// Match is the projection of one eligible shift leg. Only the resolved
// direction's leg is carried; the other leg is omitted from the record
// entirely rather than included as null.
type Match struct {
	ShiftID   string          `json:"shift_id"`
	RouteID   string          `json:"route_id"`
	VehicleID string          `json:"vehicle_id"`
	Direction string          `json:"direction"`
	Leg       domain.ShiftLeg `json:"leg"`
}

// Matcher selects shift legs that can still serve a query instant.
type Matcher struct {
	db     docstore.Store
	logger *slog.Logger
}

func NewMatcher(db docstore.Store, logger *slog.Logger) *Matcher {
	return &Matcher{db: db, logger: logger.With("component", "shift_matcher")}
}

// Match resolves the route token into a base id and direction, scans
// shifts bound to that base route, and filters their direction-matching
// legs through the eligibility window. Legs with unparsable dates or
// times are silently ineligible. Results are sorted by shift id; the
// eligibility contract itself promises no order.
func (m *Matcher) Match(ctx context.Context, routeToken, queryDate, queryClock string) ([]Match, error) {
	if routeToken == "" {
		return nil, fmt.Errorf("route token: %w", domain.ErrValidation)
	}
	day, ok := parseDate(queryDate)
	if !ok {
		return nil, fmt.Errorf("query date %q: %w", queryDate, domain.ErrValidation)
	}
	clock, ok := parseClock(queryClock)
	if !ok {
		return nil, fmt.Errorf("query time %q: %w", queryClock, domain.ErrValidation)
	}
	queryInstant := day.Add(clock)

	baseID, dir := domain.ParseRouteToken(routeToken)

	docs, err := m.db.QueryEquals(ctx, docstore.CollectionShifts, "route_id", baseID)
	if err != nil {
		return nil, fmt.Errorf("scan shifts for route %s: %w", baseID, err)
	}

	var matches []Match
	for _, raw := range docs {
		var shift domain.Shift
		if err := json.Unmarshal(raw, &shift); err != nil {
			m.logger.Warn("skipping undecodable shift document", "error", err)
			continue
		}

		leg := legFor(shift, dir)
		if leg == nil {
			continue
		}
		if !eligible(*leg, day, queryInstant) {
			continue
		}

		matches = append(matches, Match{
			ShiftID:   shift.ID,
			RouteID:   shift.RouteID,
			VehicleID: shift.VehicleID,
			Direction: dir.String(),
			Leg:       *leg,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ShiftID < matches[j].ShiftID })
	return matches, nil
}

func legFor(shift domain.Shift, dir domain.Direction) *domain.ShiftLeg {
	if dir == domain.DirectionReverse {
		return shift.Reverse
	}
	return shift.Normal
}

// eligible applies both temporal checks: the service date must fall in
// the inclusive window, and the leg's end instant must still be ahead
// of the query instant. Any parse failure makes the leg ineligible.
func eligible(leg domain.ShiftLeg, queryDay, queryInstant time.Time) bool {
	serviceDay, ok := parseDate(leg.Date)
	if !ok {
		return false
	}
	if serviceDay.Before(queryDay) || serviceDay.After(queryDay.AddDate(0, 0, eligibilityDays)) {
		return false
	}

	endClock, ok := parseClock(leg.End)
	if !ok {
		return false
	}
	return serviceDay.Add(endClock).After(queryInstant)
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseClock(s string) (time.Duration, bool) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}
