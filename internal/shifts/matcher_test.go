package shifts

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

func seedShift(t *testing.T, db *docstore.MemoryStore, shift domain.Shift) {
	t.Helper()
	if err := db.Set(context.Background(), docstore.CollectionShifts, shift.ID, shift, docstore.Overwrite); err != nil {
		t.Fatalf("seed shift %s: %v", shift.ID, err)
	}
}

func TestMatchEligibilityWindow(t *testing.T) {
	leg := func(date string) *domain.ShiftLeg {
		return &domain.ShiftLeg{Start: "08:00", End: "09:00", Date: date}
	}

	tests := []struct {
		name     string
		leg      *domain.ShiftLeg
		date     string
		clock    string
		eligible bool
	}{
		{"next day, end ahead", leg("2024-01-02"), "2024-01-01", "07:00", true},
		{"same day, end ahead", leg("2024-01-01"), "2024-01-01", "07:00", true},
		{"window upper bound", leg("2024-01-03"), "2024-01-01", "07:00", true},
		{"beyond window", leg("2024-01-04"), "2024-01-01", "07:00", false},
		{"before window", leg("2023-12-31"), "2024-01-01", "07:00", false},
		{"same day, end passed", leg("2024-01-01"), "2024-01-01", "10:00", false},
		{"end equals query instant", leg("2024-01-01"), "2024-01-01", "09:00", false},
		{"unparsable leg date", &domain.ShiftLeg{Start: "08:00", End: "09:00", Date: "not-a-date"}, "2024-01-01", "07:00", false},
		{"unparsable leg end", &domain.ShiftLeg{Start: "08:00", End: "soon", Date: "2024-01-01"}, "2024-01-01", "07:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := docstore.NewMemoryStore()
			seedShift(t, db, domain.Shift{ID: "s1", RouteID: "10", VehicleID: "KAA-001", Normal: tt.leg})
			matcher := NewMatcher(db, testLogger())

			matches, err := matcher.Match(context.Background(), "10", tt.date, tt.clock)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if got := len(matches) == 1; got != tt.eligible {
				t.Errorf("eligible = %v, want %v (matches: %v)", got, tt.eligible, matches)
			}
		})
	}
}

func TestMatchDirectionIsolation(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	seedShift(t, db, domain.Shift{
		ID:        "s1",
		RouteID:   "10",
		VehicleID: "KAA-001",
		Normal:    &domain.ShiftLeg{Start: "08:00", End: "09:00", Date: "2024-01-02"},
	})
	matcher := NewMatcher(db, testLogger())

	forward, err := matcher.Match(ctx, "10", "2024-01-01", "07:00")
	if err != nil {
		t.Fatalf("forward Match: %v", err)
	}
	if len(forward) != 1 {
		t.Fatalf("forward matches = %d, want 1", len(forward))
	}
	if forward[0].Direction != "forward" {
		t.Errorf("direction = %q, want forward", forward[0].Direction)
	}
	if forward[0].Leg.Start != "08:00" {
		t.Errorf("leg start = %q, want 08:00", forward[0].Leg.Start)
	}

	// The shift has no reverse leg, so the reverse token finds nothing.
	reverse, err := matcher.Match(ctx, "10R", "2024-01-01", "07:00")
	if err != nil {
		t.Fatalf("reverse Match: %v", err)
	}
	if len(reverse) != 0 {
		t.Errorf("reverse matches = %v, want none", reverse)
	}
}

func TestMatchReverseLegOnly(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	seedShift(t, db, domain.Shift{
		ID:        "s2",
		RouteID:   "10",
		VehicleID: "KAA-002",
		Normal:    &domain.ShiftLeg{Start: "06:00", End: "07:00", Date: "2024-01-01"},
		Reverse:   &domain.ShiftLeg{Start: "17:00", End: "18:00", Date: "2024-01-01"},
	})
	matcher := NewMatcher(db, testLogger())

	matches, err := matcher.Match(ctx, "10R", "2024-01-01", "12:00")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].Leg.Start != "17:00" {
		t.Errorf("reverse match carries wrong leg: start = %q", matches[0].Leg.Start)
	}
	if matches[0].Direction != "reverse" {
		t.Errorf("direction = %q, want reverse", matches[0].Direction)
	}
}

func TestMatchSortsByShiftID(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	leg := &domain.ShiftLeg{Start: "08:00", End: "23:00", Date: "2024-01-01"}
	seedShift(t, db, domain.Shift{ID: "s9", RouteID: "10", VehicleID: "v1", Normal: leg})
	seedShift(t, db, domain.Shift{ID: "s1", RouteID: "10", VehicleID: "v2", Normal: leg})
	seedShift(t, db, domain.Shift{ID: "s5", RouteID: "10", VehicleID: "v3", Normal: leg})
	matcher := NewMatcher(db, testLogger())

	matches, err := matcher.Match(ctx, "10", "2024-01-01", "07:00")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	want := []string{"s1", "s5", "s9"}
	if len(matches) != len(want) {
		t.Fatalf("matches = %d, want %d", len(matches), len(want))
	}
	for i, id := range want {
		if matches[i].ShiftID != id {
			t.Errorf("matches[%d].ShiftID = %q, want %q", i, matches[i].ShiftID, id)
		}
	}
}

func TestMatchRejectsInvalidQuery(t *testing.T) {
	matcher := NewMatcher(docstore.NewMemoryStore(), testLogger())
	ctx := context.Background()

	if _, err := matcher.Match(ctx, "", "2024-01-01", "07:00"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty token: got %v, want ErrValidation", err)
	}
	if _, err := matcher.Match(ctx, "10", "yesterday", "07:00"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad date: got %v, want ErrValidation", err)
	}
	if _, err := matcher.Match(ctx, "10", "2024-01-01", "late"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad time: got %v, want ErrValidation", err)
	}
}

func TestMatchOtherRouteExcluded(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemoryStore()
	leg := &domain.ShiftLeg{Start: "08:00", End: "23:00", Date: "2024-01-01"}
	seedShift(t, db, domain.Shift{ID: "s1", RouteID: "10", VehicleID: "v1", Normal: leg})
	seedShift(t, db, domain.Shift{ID: "s2", RouteID: "11", VehicleID: "v2", Normal: leg})
	matcher := NewMatcher(db, testLogger())

	matches, err := matcher.Match(ctx, "10", "2024-01-01", "07:00")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].ShiftID != "s1" {
		t.Errorf("matches = %v, want only s1", matches)
	}
}
