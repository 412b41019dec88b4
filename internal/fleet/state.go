package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
)

// Publisher is the real-time transport's publish primitive. Implemented
// by the websocket hub and the NATS relay; State never waits on it.
type Publisher interface {
	Publish(channel string, event domain.PositionEvent)
}

// Locator is the external geolocation fallback. Best-effort only.
type Locator interface {
	Locate(ctx context.Context) (lat, lon float64, err error)
}

// StateMetrics counts geolocation fallback outcomes. nil disables it.
type StateMetrics interface {
	GeoFallbackInc(ok bool)
}

// MultiPublisher fans one publish call across several transports.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(channel string, event domain.PositionEvent) {
	for _, p := range m {
		p.Publish(channel, event)
	}
}

// State owns the live position, capacity and alarm fields of vehicles
// and the positions of passengers. Every mutation is a store write
// followed by an independent fire-and-forget publish; the two effects
// share no lock, so observers and store readers may see them in either
// order.
type State struct {
	db        docstore.Store
	publisher Publisher
	locator   Locator
	metrics   StateMetrics
	logger    *slog.Logger
}

func NewState(db docstore.Store, publisher Publisher, locator Locator, m StateMetrics, logger *slog.Logger) *State {
	return &State{
		db:        db,
		publisher: publisher,
		locator:   locator,
		metrics:   m,
		logger:    logger.With("component", "fleet_state"),
	}
}

// ReportVehiclePosition persists the coordinates unconditionally, then
// publishes to the vehicle channel.
func (s *State) ReportVehiclePosition(ctx context.Context, vehicleID string, lat, lon float64) error {
	if vehicleID == "" {
		return fmt.Errorf("vehicle id: %w", domain.ErrValidation)
	}

	patch := map[string]any{"id": vehicleID, "lat": lat, "lon": lon}
	if err := s.db.Set(ctx, docstore.CollectionVehicles, vehicleID, patch, docstore.Merge); err != nil {
		return fmt.Errorf("persist vehicle position %s: %w", vehicleID, err)
	}

	s.publisher.Publish(domain.ChannelVehicleLocation, domain.PositionEvent{ID: vehicleID, Lat: lat, Lon: lon})
	return nil
}

// ReportPassengerPosition mirrors ReportVehiclePosition on the
// passenger channel.
func (s *State) ReportPassengerPosition(ctx context.Context, passengerID string, lat, lon float64) error {
	if passengerID == "" {
		return fmt.Errorf("passenger id: %w", domain.ErrValidation)
	}

	patch := map[string]any{"id": passengerID, "lat": lat, "lon": lon}
	if err := s.db.Set(ctx, docstore.CollectionPassengers, passengerID, patch, docstore.Merge); err != nil {
		return fmt.Errorf("persist passenger position %s: %w", passengerID, err)
	}

	s.publisher.Publish(domain.ChannelPassengerLocation, domain.PositionEvent{ID: passengerID, Lat: lat, Lon: lon})
	return nil
}

// ReportCapacity flips only the capacity flag; coordinates and the
// alarm flag stay untouched.
func (s *State) ReportCapacity(ctx context.Context, vehicleID string, full bool) error {
	return s.setFlag(ctx, vehicleID, "full", full)
}

// ReportAlarm flips only the alarm flag.
func (s *State) ReportAlarm(ctx context.Context, vehicleID string, alarm bool) error {
	return s.setFlag(ctx, vehicleID, "alarm", alarm)
}

func (s *State) setFlag(ctx context.Context, vehicleID, field string, value bool) error {
	if vehicleID == "" {
		return fmt.Errorf("vehicle id: %w", domain.ErrValidation)
	}
	patch := map[string]any{"id": vehicleID, field: value}
	if err := s.db.Set(ctx, docstore.CollectionVehicles, vehicleID, patch, docstore.Merge); err != nil {
		return fmt.Errorf("persist vehicle %s %s flag: %w", vehicleID, field, err)
	}
	return nil
}

// Vehicle reads one vehicle. A vehicle still at the origin default
// gets a one-shot geolocation fallback: on success the coordinates are
// persisted, on failure the stored record is returned as-is.
func (s *State) Vehicle(ctx context.Context, vehicleID string) (domain.Vehicle, error) {
	raw, err := s.db.Get(ctx, docstore.CollectionVehicles, vehicleID)
	if err != nil {
		return domain.Vehicle{}, err
	}
	var vehicle domain.Vehicle
	if err := json.Unmarshal(raw, &vehicle); err != nil {
		return domain.Vehicle{}, fmt.Errorf("decode vehicle %s: %w", vehicleID, err)
	}

	if vehicle.AtOrigin() && s.locator != nil {
		lat, lon, err := s.locator.Locate(ctx)
		if s.metrics != nil {
			s.metrics.GeoFallbackInc(err == nil)
		}
		if err != nil {
			s.logger.Debug("geolocation fallback failed", "vehicle_id", vehicleID, "error", err)
			return vehicle, nil
		}
		vehicle.Lat, vehicle.Lon = lat, lon
		patch := map[string]any{"lat": lat, "lon": lon}
		if err := s.db.Set(ctx, docstore.CollectionVehicles, vehicleID, patch, docstore.Merge); err != nil {
			s.logger.Debug("geolocation fallback persist failed", "vehicle_id", vehicleID, "error", err)
		}
	}

	return vehicle, nil
}

// Passenger reads one passenger record.
func (s *State) Passenger(ctx context.Context, passengerID string) (domain.Passenger, error) {
	raw, err := s.db.Get(ctx, docstore.CollectionPassengers, passengerID)
	if err != nil {
		return domain.Passenger{}, err
	}
	var p domain.Passenger
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Passenger{}, fmt.Errorf("decode passenger %s: %w", passengerID, err)
	}
	return p, nil
}

// Vehicles lists all vehicle records, used for channel snapshots.
func (s *State) Vehicles(ctx context.Context) ([]domain.Vehicle, error) {
	docs, err := s.db.List(ctx, docstore.CollectionVehicles)
	if err != nil {
		return nil, err
	}
	vehicles := make([]domain.Vehicle, 0, len(docs))
	for _, raw := range docs {
		var v domain.Vehicle
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}
