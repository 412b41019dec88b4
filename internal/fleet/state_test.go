package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturePublisher struct {
	events []struct {
		channel string
		event   domain.PositionEvent
	}
}

func (p *capturePublisher) Publish(channel string, event domain.PositionEvent) {
	p.events = append(p.events, struct {
		channel string
		event   domain.PositionEvent
	}{channel, event})
}

type fakeLocator struct {
	lat, lon float64
	err      error
	calls    int
}

func (l *fakeLocator) Locate(ctx context.Context) (float64, float64, error) {
	l.calls++
	return l.lat, l.lon, l.err
}

func seedVehicle(t *testing.T, db *docstore.MemoryStore, v domain.Vehicle) {
	t.Helper()
	if err := db.Set(context.Background(), docstore.CollectionVehicles, v.ID, v, docstore.Overwrite); err != nil {
		t.Fatalf("seed vehicle %s: %v", v.ID, err)
	}
}

func TestReportVehiclePositionPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	pub := &capturePublisher{}
	state := NewState(db, pub, nil, nil, testLogger())

	seedVehicle(t, db, domain.Vehicle{ID: "KAA-001", RouteID: "10"})

	if err := state.ReportVehiclePosition(ctx, "KAA-001", -1.28, 36.82); err != nil {
		t.Fatalf("ReportVehiclePosition: %v", err)
	}

	v, err := state.Vehicle(ctx, "KAA-001")
	if err != nil {
		t.Fatalf("Vehicle: %v", err)
	}
	if v.Lat != -1.28 || v.Lon != 36.82 {
		t.Errorf("coordinates = (%v, %v), want (-1.28, 36.82)", v.Lat, v.Lon)
	}
	if v.RouteID != "10" {
		t.Errorf("position report altered route assignment: %q", v.RouteID)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.events))
	}
	got := pub.events[0]
	if got.channel != domain.ChannelVehicleLocation {
		t.Errorf("channel = %q, want %q", got.channel, domain.ChannelVehicleLocation)
	}
	if got.event.ID != "KAA-001" || got.event.Lat != -1.28 || got.event.Lon != 36.82 {
		t.Errorf("event = %+v", got.event)
	}
}

func TestReportPassengerPositionPublishesOnPassengerChannel(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	pub := &capturePublisher{}
	state := NewState(db, pub, nil, nil, testLogger())

	if err := state.ReportPassengerPosition(ctx, "p1", 1.5, 2.5); err != nil {
		t.Fatalf("ReportPassengerPosition: %v", err)
	}

	p, err := state.Passenger(ctx, "p1")
	if err != nil {
		t.Fatalf("Passenger: %v", err)
	}
	if p.Lat != 1.5 || p.Lon != 2.5 {
		t.Errorf("passenger position = (%v, %v)", p.Lat, p.Lon)
	}

	if len(pub.events) != 1 || pub.events[0].channel != domain.ChannelPassengerLocation {
		t.Errorf("events = %+v, want one on %s", pub.events, domain.ChannelPassengerLocation)
	}
}

func TestReportCapacityLeavesOtherFieldsUntouched(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	state := NewState(db, &capturePublisher{}, nil, nil, testLogger())

	seedVehicle(t, db, domain.Vehicle{ID: "KAA-001", RouteID: "10", Lat: -1.28, Lon: 36.82, Alarm: true})

	if err := state.ReportCapacity(ctx, "KAA-001", true); err != nil {
		t.Fatalf("ReportCapacity: %v", err)
	}

	v, err := state.Vehicle(ctx, "KAA-001")
	if err != nil {
		t.Fatalf("Vehicle: %v", err)
	}
	if !v.Full {
		t.Error("capacity flag not set")
	}
	if v.Lat != -1.28 || v.Lon != 36.82 {
		t.Errorf("capacity report altered coordinates: (%v, %v)", v.Lat, v.Lon)
	}
	if !v.Alarm {
		t.Error("capacity report cleared the alarm flag")
	}
	if v.RouteID != "10" {
		t.Errorf("capacity report altered route assignment: %q", v.RouteID)
	}
}

func TestFlagReportsDoNotPublish(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	pub := &capturePublisher{}
	state := NewState(db, pub, nil, nil, testLogger())

	seedVehicle(t, db, domain.Vehicle{ID: "KAA-001"})

	if err := state.ReportAlarm(ctx, "KAA-001", true); err != nil {
		t.Fatalf("ReportAlarm: %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("flag update published events: %+v", pub.events)
	}
}

func TestVehicleGeolocationFallback(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	loc := &fakeLocator{lat: -1.3, lon: 36.9}
	state := NewState(db, &capturePublisher{}, loc, nil, testLogger())

	seedVehicle(t, db, domain.Vehicle{ID: "KAA-001"})

	v, err := state.Vehicle(ctx, "KAA-001")
	if err != nil {
		t.Fatalf("Vehicle: %v", err)
	}
	if v.Lat != -1.3 || v.Lon != 36.9 {
		t.Errorf("fallback coordinates = (%v, %v), want (-1.3, 36.9)", v.Lat, v.Lon)
	}

	// The fallback result was persisted; the next read skips the lookup.
	if _, err := state.Vehicle(ctx, "KAA-001"); err != nil {
		t.Fatalf("second Vehicle read: %v", err)
	}
	if loc.calls != 1 {
		t.Errorf("locator calls = %d, want 1", loc.calls)
	}
}

func TestVehicleGeolocationFallbackFailureAbsorbed(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	loc := &fakeLocator{err: errors.New("service down")}
	state := NewState(db, &capturePublisher{}, loc, nil, testLogger())

	seedVehicle(t, db, domain.Vehicle{ID: "KAA-001"})

	v, err := state.Vehicle(ctx, "KAA-001")
	if err != nil {
		t.Fatalf("fallback failure surfaced: %v", err)
	}
	if !v.AtOrigin() {
		t.Errorf("failed fallback altered coordinates: (%v, %v)", v.Lat, v.Lon)
	}
}

func TestVehicleSkipsFallbackWhenLocated(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	loc := &fakeLocator{lat: 9, lon: 9}
	state := NewState(db, &capturePublisher{}, loc, nil, testLogger())

	seedVehicle(t, db, domain.Vehicle{ID: "KAA-001", Lat: -1.28, Lon: 36.82})

	if _, err := state.Vehicle(ctx, "KAA-001"); err != nil {
		t.Fatalf("Vehicle: %v", err)
	}
	if loc.calls != 0 {
		t.Errorf("locator called for a located vehicle")
	}
}

func TestVehicleNotFound(t *testing.T) {
	state := NewState(docstore.NewMemoryStore(), &capturePublisher{}, nil, nil, testLogger())
	_, err := state.Vehicle(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
