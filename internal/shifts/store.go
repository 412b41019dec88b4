package shifts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
)

// Store owns shift documents. Writes validate the base-route reference
// against the routes collection; legs can be cleared independently
// without touching the rest of the document.
type Store struct {
	db     docstore.Store
	logger *slog.Logger
}

func NewStore(db docstore.Store, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "shift_store")}
}

// Add persists a new shift, assigning a uuid when the caller left the
// id empty. Returns the stored shift so callers see the assigned id.
func (s *Store) Add(ctx context.Context, shift domain.Shift) (domain.Shift, error) {
	if err := s.validate(ctx, shift); err != nil {
		return domain.Shift{}, err
	}
	if shift.ID == "" {
		shift.ID = uuid.New().String()
	}
	if err := s.db.Set(ctx, docstore.CollectionShifts, shift.ID, shift, docstore.Overwrite); err != nil {
		return domain.Shift{}, fmt.Errorf("persist shift %s: %w", shift.ID, err)
	}
	return shift, nil
}

// Update overwrites the full shift document after revalidating the
// route reference.
func (s *Store) Update(ctx context.Context, id string, shift domain.Shift) error {
	if id == "" {
		return fmt.Errorf("shift id: %w", domain.ErrValidation)
	}
	shift.ID = id
	if err := s.validate(ctx, shift); err != nil {
		return err
	}
	if err := s.db.Set(ctx, docstore.CollectionShifts, id, shift, docstore.Overwrite); err != nil {
		return fmt.Errorf("persist shift %s: %w", id, err)
	}
	return nil
}

// Delete removes the shift document.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("shift id: %w", domain.ErrValidation)
	}
	return s.db.Delete(ctx, docstore.CollectionShifts, id)
}

// Get fetches a single shift by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Shift, error) {
	raw, err := s.db.Get(ctx, docstore.CollectionShifts, id)
	if err != nil {
		return domain.Shift{}, err
	}
	var shift domain.Shift
	if err := json.Unmarshal(raw, &shift); err != nil {
		return domain.Shift{}, fmt.Errorf("decode shift %s: %w", id, err)
	}
	return shift, nil
}

// RemoveLeg clears one directional leg and persists the remainder of
// the document unchanged.
func (s *Store) RemoveLeg(ctx context.Context, id string, dir domain.Direction) error {
	shift, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch dir {
	case domain.DirectionForward:
		shift.Normal = nil
	case domain.DirectionReverse:
		shift.Reverse = nil
	}
	if err := s.db.Set(ctx, docstore.CollectionShifts, id, shift, docstore.Overwrite); err != nil {
		return fmt.Errorf("persist shift %s: %w", id, err)
	}
	s.logger.Debug("removed leg", "shift_id", id, "direction", dir.String())
	return nil
}

func (s *Store) validate(ctx context.Context, shift domain.Shift) error {
	if shift.RouteID == "" {
		return fmt.Errorf("route reference: %w", domain.ErrValidation)
	}
	if shift.VehicleID == "" {
		return domain.ErrMissingVehicle
	}
	_, err := s.db.Get(ctx, docstore.CollectionRoutes, shift.RouteID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("route %q: %w", shift.RouteID, domain.ErrUnknownRoute)
	}
	if err != nil {
		return fmt.Errorf("check route %q: %w", shift.RouteID, err)
	}
	return nil
}
