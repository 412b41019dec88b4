package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
)

// reverseNameSuffix is appended when a route name has no single
// dash-separated pair to swap.
const reverseNameSuffix = " (reverse)"

// Store owns route documents, including the derived reverse companions.
// Derivation is a two-phase write: forward first, companion second.
// The pair is not written atomically; a crash between the phases leaves
// a lone forward route, which reads detect and log (see Search).
type Store struct {
	db     docstore.Store
	logger *slog.Logger
}

func NewStore(db docstore.Store, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "route_store")}
}

// Add persists a forward route and, when it has at least two stops,
// derives its reverse companion. An existing route under the companion
// id is left untouched: creation is non-destructive toward routes that
// were independently created under that identifier.
func (s *Store) Add(ctx context.Context, route domain.Route) error {
	if route.ID == "" {
		return fmt.Errorf("route id: %w", domain.ErrValidation)
	}
	if err := s.checkStops(ctx, route.Stops); err != nil {
		return err
	}

	if err := s.db.Set(ctx, docstore.CollectionRoutes, route.ID, route, docstore.Overwrite); err != nil {
		return fmt.Errorf("persist route %s: %w", route.ID, err)
	}

	if !derivable(route) {
		return nil
	}

	companionID := domain.ReverseRouteID(route.ID)
	if _, err := s.db.Get(ctx, docstore.CollectionRoutes, companionID); err == nil {
		s.logger.Debug("companion already exists, keeping it", "route_id", route.ID, "companion_id", companionID)
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check companion %s: %w", companionID, err)
	}

	companion := reverseOf(route)
	if err := s.db.Set(ctx, docstore.CollectionRoutes, companionID, companion, docstore.Overwrite); err != nil {
		return fmt.Errorf("persist companion %s: %w", companionID, err)
	}
	s.logger.Info("derived reverse companion", "route_id", route.ID, "companion_id", companionID)
	return nil
}

// Update overwrites the forward route and unconditionally re-derives
// its companion, replacing whatever was stored under the companion id.
// This asymmetry with Add is deliberate: updates are authoritative.
func (s *Store) Update(ctx context.Context, id string, route domain.Route) error {
	if id == "" {
		return fmt.Errorf("route id: %w", domain.ErrValidation)
	}
	route.ID = id
	if err := s.checkStops(ctx, route.Stops); err != nil {
		return err
	}

	if err := s.db.Set(ctx, docstore.CollectionRoutes, id, route, docstore.Overwrite); err != nil {
		return fmt.Errorf("persist route %s: %w", id, err)
	}

	if !derivable(route) {
		return nil
	}

	companion := reverseOf(route)
	if err := s.db.Set(ctx, docstore.CollectionRoutes, companion.ID, companion, docstore.Overwrite); err != nil {
		return fmt.Errorf("persist companion %s: %w", companion.ID, err)
	}
	return nil
}

// Delete removes only the named route. It never cascades to the
// companion in either direction.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("route id: %w", domain.ErrValidation)
	}
	return s.db.Delete(ctx, docstore.CollectionRoutes, id)
}

// Get fetches a single route by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Route, error) {
	raw, err := s.db.Get(ctx, docstore.CollectionRoutes, id)
	if err != nil {
		return domain.Route{}, err
	}
	var route domain.Route
	if err := json.Unmarshal(raw, &route); err != nil {
		return domain.Route{}, fmt.Errorf("decode route %s: %w", id, err)
	}
	return route, nil
}

// List returns every stored route, forward and derived alike.
func (s *Store) List(ctx context.Context) ([]domain.Route, error) {
	docs, err := s.db.List(ctx, docstore.CollectionRoutes)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Route, 0, len(docs))
	for _, raw := range docs {
		var route domain.Route
		if err := json.Unmarshal(raw, &route); err != nil {
			s.logger.Warn("skipping undecodable route document", "error", err)
			continue
		}
		result = append(result, route)
	}
	return result, nil
}

// Exists reports whether a route document is present under id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.db.Get(ctx, docstore.CollectionRoutes, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) checkStops(ctx context.Context, stops []string) error {
	for _, stopID := range stops {
		_, err := s.db.Get(ctx, docstore.CollectionStops, stopID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("stop %q: %w", stopID, domain.ErrUnknownStop)
		}
		if err != nil {
			return fmt.Errorf("check stop %q: %w", stopID, err)
		}
	}
	return nil
}

// derivable gates companion derivation: a meaningful reversal needs at
// least two stops, and routes already carrying the marker are never
// re-reversed.
func derivable(route domain.Route) bool {
	return len(route.Stops) > 1 && !domain.IsReverseRouteID(route.ID)
}

func reverseOf(route domain.Route) domain.Route {
	stops := make([]string, len(route.Stops))
	for i, stop := range route.Stops {
		stops[len(route.Stops)-1-i] = stop
	}
	return domain.Route{
		ID:    domain.ReverseRouteID(route.ID),
		Name:  reverseName(route.Name),
		Stops: stops,
	}
}

// reverseName swaps the halves of a "X - Y" style name. Names without
// exactly one dash get the reversal suffix instead.
func reverseName(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) != 2 {
		return name + reverseNameSuffix
	}
	return strings.TrimSpace(parts[1]) + " - " + strings.TrimSpace(parts[0])
}
