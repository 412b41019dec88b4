package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
	"fleetline/internal/shifts"
)

// SearchOptions is the one configuration point for a stop-pair search.
// IncludeUnserved keeps routes that matched both stops but have no
// eligible shift legs; callers wanting bare route metadata set it.
type SearchOptions struct {
	IncludeUnserved bool
}

// RouteMatch pairs a route with the shift legs eligible for the query.
type RouteMatch struct {
	Route  domain.Route   `json:"route"`
	Shifts []shifts.Match `json:"shifts"`
}

// Search answers stop-pair queries: which routes pass through both
// stops, and which shift legs serve them around the query instant.
type Search struct {
	db      docstore.Store
	matcher *shifts.Matcher
	logger  *slog.Logger
}

func NewSearch(db docstore.Store, matcher *shifts.Matcher, logger *slog.Logger) *Search {
	return &Search{db: db, matcher: matcher, logger: logger.With("component", "route_search")}
}

// Find enumerates routes containing both stops in any order, then
// enriches each through the shift matcher using the route's own id as
// the direction-carrying token. Containment deliberately ignores stop
// order; a reverse companion matching "backwards" is accepted.
func (s *Search) Find(ctx context.Context, startStop, endStop, date, clock string, opts SearchOptions) ([]RouteMatch, error) {
	if startStop == "" || endStop == "" {
		return nil, fmt.Errorf("start and end stops are required: %w", domain.ErrValidation)
	}

	docs, err := s.db.QueryContains(ctx, docstore.CollectionRoutes, "stops", startStop)
	if err != nil {
		return nil, fmt.Errorf("scan routes by stop %q: %w", startStop, err)
	}

	var result []RouteMatch
	for _, raw := range docs {
		var route domain.Route
		if err := json.Unmarshal(raw, &route); err != nil {
			s.logger.Warn("skipping undecodable route document", "error", err)
			continue
		}
		if !containsStop(route.Stops, endStop) {
			continue
		}

		s.checkPair(ctx, route)

		matches, err := s.matcher.Match(ctx, route.ID, date, clock)
		if err != nil {
			return nil, fmt.Errorf("match shifts for route %s: %w", route.ID, err)
		}
		if len(matches) == 0 && !opts.IncludeUnserved {
			continue
		}
		result = append(result, RouteMatch{Route: route, Shifts: matches})
	}
	return result, nil
}

// checkPair detects a forward route whose companion derivation was lost
// mid-write. Detection only; repair is an operator decision.
func (s *Search) checkPair(ctx context.Context, route domain.Route) {
	if !derivable(route) {
		return
	}
	_, err := s.db.Get(ctx, docstore.CollectionRoutes, domain.ReverseRouteID(route.ID))
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("forward route has no reverse companion", "route_id", route.ID)
	}
}

func containsStop(stops []string, stopID string) bool {
	for _, s := range stops {
		if s == stopID {
			return true
		}
	}
	return false
}
