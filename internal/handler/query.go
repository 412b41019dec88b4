package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fleetline/internal/routes"
	"fleetline/internal/shifts"
	"fleetline/internal/stops"
)

// QueryMetrics records read-side latencies. nil disables recording.
type QueryMetrics interface {
	SearchObserve(d time.Duration)
	MatchObserve(d time.Duration)
}

// QueryHandler serves the passenger-facing read surface.
type QueryHandler struct {
	search          *routes.Search
	matcher         *shifts.Matcher
	routes          *routes.Store
	stops           *stops.Catalog
	includeUnserved bool
	metrics         QueryMetrics
	logger          *slog.Logger
}

func NewQueryHandler(search *routes.Search, matcher *shifts.Matcher, rs *routes.Store, c *stops.Catalog, includeUnserved bool, m QueryMetrics, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		search:          search,
		matcher:         matcher,
		routes:          rs,
		stops:           c,
		includeUnserved: includeUnserved,
		metrics:         m,
		logger:          logger,
	}
}

type searchResponse struct {
	Routes     []routes.RouteMatch `json:"routes"`
	Count      int                 `json:"count"`
	ServerTime time.Time           `json:"serverTime"`
}

// SearchRoutes answers GET /v1/routes/search?from&to&date&time.
// An empty result is a 200 with an empty collection, not an error.
func (h *QueryHandler) SearchRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	date, clock := q.Get("date"), q.Get("time")

	opts := routes.SearchOptions{IncludeUnserved: h.includeUnserved}
	if v := q.Get("includeUnserved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid includeUnserved parameter")
			return
		}
		opts.IncludeUnserved = b
	}

	start := time.Now()
	matches, err := h.search.Find(r.Context(), from, to, date, clock, opts)
	if h.metrics != nil {
		h.metrics.SearchObserve(time.Since(start))
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if matches == nil {
		matches = []routes.RouteMatch{}
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Routes:     matches,
		Count:      len(matches),
		ServerTime: time.Now(),
	})
}

type matchResponse struct {
	Shifts     []shifts.Match `json:"shifts"`
	Count      int            `json:"count"`
	ServerTime time.Time      `json:"serverTime"`
}

// MatchShifts answers GET /v1/shifts/match?route&date&time, where the
// route parameter is a direction-carrying token.
func (h *QueryHandler) MatchShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := time.Now()
	matches, err := h.matcher.Match(r.Context(), q.Get("route"), q.Get("date"), q.Get("time"))
	if h.metrics != nil {
		h.metrics.MatchObserve(time.Since(start))
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if matches == nil {
		matches = []shifts.Match{}
	}
	respondJSON(w, http.StatusOK, matchResponse{
		Shifts:     matches,
		Count:      len(matches),
		ServerTime: time.Now(),
	})
}

func (h *QueryHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	all, err := h.routes.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

func (h *QueryHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.routes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, route)
}

func (h *QueryHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	all, err := h.stops.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

func (h *QueryHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	stop, err := h.stops.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stop)
}
