package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
	"fleetline/internal/fleet"
	"fleetline/internal/routes"
	"fleetline/internal/shifts"
	"fleetline/internal/stops"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	mux *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	db := docstore.NewMemoryStore()

	stopCatalog := stops.NewCatalog(db, logger)
	routeStore := routes.NewStore(db, logger)
	shiftStore := shifts.NewStore(db, logger)
	matcher := shifts.NewMatcher(db, logger)
	search := routes.NewSearch(db, matcher, logger)
	state := fleet.NewState(db, noopPublisher{}, nil, nil, logger)

	admin := NewAdminHandler(stopCatalog, routeStore, shiftStore, logger)
	query := NewQueryHandler(search, matcher, routeStore, stopCatalog, false, nil, logger)
	fleetH := NewFleetHandler(state, nil, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/stops", admin.CreateStop)
	mux.HandleFunc("POST /v1/routes", admin.CreateRoute)
	mux.HandleFunc("POST /v1/shifts", admin.CreateShift)
	mux.HandleFunc("DELETE /v1/shifts/{id}/legs/{direction}", admin.RemoveShiftLeg)
	mux.HandleFunc("GET /v1/routes/search", query.SearchRoutes)
	mux.HandleFunc("GET /v1/shifts/match", query.MatchShifts)
	mux.HandleFunc("POST /v1/vehicles/{id}/position", fleetH.ReportVehiclePosition)
	mux.HandleFunc("POST /v1/vehicles/{id}/capacity", fleetH.ReportCapacity)
	mux.HandleFunc("GET /v1/vehicles/{id}", fleetH.GetVehicle)

	return &testServer{mux: mux}
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, domain.PositionEvent) {}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedScenario(t *testing.T) {
	t.Helper()
	for _, stop := range []string{"A", "B", "C"} {
		rec := s.do(t, "POST", "/v1/stops", `{"id":"`+stop+`","lat":1,"lon":1}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create stop %s: status %d body %s", stop, rec.Code, rec.Body)
		}
	}
	rec := s.do(t, "POST", "/v1/routes", `{"id":"10","name":"A - C","stops":["A","B","C"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create route: status %d body %s", rec.Code, rec.Body)
	}
	rec = s.do(t, "POST", "/v1/shifts", `{"id":"s1","route_id":"10","vehicle_id":"KAA-001","normal":{"start":"08:00","end":"09:00","date":"2024-01-02"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create shift: status %d body %s", rec.Code, rec.Body)
	}
}

func TestSearchEndpointScenario(t *testing.T) {
	s := newTestServer(t)
	s.seedScenario(t)

	rec := s.do(t, "GET", "/v1/routes/search?from=A&to=C&date=2024-01-01&time=07:00", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Routes []routes.RouteMatch `json:"routes"`
		Count  int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1 (body %s)", resp.Count, rec.Body)
	}
	if resp.Routes[0].Route.ID != "10" {
		t.Errorf("route id = %q", resp.Routes[0].Route.ID)
	}
	if len(resp.Routes[0].Shifts) != 1 || resp.Routes[0].Shifts[0].ShiftID != "s1" {
		t.Errorf("shifts = %+v", resp.Routes[0].Shifts)
	}
}

func TestSearchEndpointEmptyIsOK(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/v1/routes/search?from=A&to=C&date=2024-01-01&time=07:00", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("empty search: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"routes":[]`) {
		t.Errorf("body = %s, want empty routes array", rec.Body)
	}
}

func TestSearchEndpointMissingStopsRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/v1/routes/search?date=2024-01-01&time=07:00", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("search without stops: status %d, want 400", rec.Code)
	}
}

func TestMatchEndpointDirectionTokens(t *testing.T) {
	s := newTestServer(t)
	s.seedScenario(t)

	rec := s.do(t, "GET", "/v1/shifts/match?route=10&date=2024-01-01&time=07:00", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("match: status %d body %s", rec.Code, rec.Body)
	}
	var resp struct {
		Shifts []shifts.Match `json:"shifts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Shifts) != 1 || resp.Shifts[0].ShiftID != "s1" {
		t.Fatalf("shifts = %+v", resp.Shifts)
	}

	// Reverse token on a shift without a reverse leg: empty, still 200.
	rec = s.do(t, "GET", "/v1/shifts/match?route=10R&date=2024-01-01&time=07:00", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reverse match: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"shifts":[]`) {
		t.Errorf("reverse match body = %s, want empty shifts", rec.Body)
	}
}

func TestMatchEndpointBadDateRejected(t *testing.T) {
	s := newTestServer(t)
	s.seedScenario(t)

	rec := s.do(t, "GET", "/v1/shifts/match?route=10&date=tomorrow&time=07:00", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status %d, want 400", rec.Code)
	}
}

func TestCreateRouteUnknownStop(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/v1/routes", `{"id":"10","name":"A - C","stops":["A","C"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("route with unknown stops: status %d, want 422", rec.Code)
	}
}

func TestRemoveShiftLegEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedScenario(t)

	rec := s.do(t, "DELETE", "/v1/shifts/s1/legs/normal", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove leg: status %d body %s", rec.Code, rec.Body)
	}

	rec = s.do(t, "GET", "/v1/shifts/match?route=10&date=2024-01-01&time=07:00", "")
	if !strings.Contains(rec.Body.String(), `"shifts":[]`) {
		t.Errorf("match after leg removal = %s, want empty", rec.Body)
	}

	rec = s.do(t, "DELETE", "/v1/shifts/s1/legs/sideways", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad direction: status %d, want 400", rec.Code)
	}
}
