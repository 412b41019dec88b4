package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's prometheus registry.
type Collector struct {
	reg *prometheus.Registry

	PositionReports *prometheus.CounterVec // channel label
	FlagUpdates     *prometheus.CounterVec // flag label: full|alarm
	GeoFallbacks    *prometheus.CounterVec // outcome label: ok|error

	ConnectedClients prometheus.Gauge

	SearchDuration prometheus.Histogram
	MatchDuration  prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PositionReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetline_position_reports_total",
			Help: "Position reports accepted, by broadcast channel.",
		}, []string{"channel"}),
		FlagUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetline_flag_updates_total",
			Help: "Capacity/alarm flag updates accepted.",
		}, []string{"flag"}),
		GeoFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetline_geo_fallbacks_total",
			Help: "Opportunistic geolocation fallback attempts.",
		}, []string{"outcome"}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetline_connected_clients",
			Help: "Currently connected websocket observers.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetline_route_search_duration_seconds",
			Help:    "Stop-pair route search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetline_shift_match_duration_seconds",
			Help:    "Shift matcher latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.PositionReports,
		c.FlagUpdates,
		c.GeoFallbacks,
		c.ConnectedClients,
		c.SearchDuration,
		c.MatchDuration,
	)
	return c
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) PositionReportInc(channel string) {
	c.PositionReports.WithLabelValues(channel).Inc()
}

func (c *Collector) FlagUpdateInc(flag string) {
	c.FlagUpdates.WithLabelValues(flag).Inc()
}

func (c *Collector) GeoFallbackInc(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.GeoFallbacks.WithLabelValues(outcome).Inc()
}

func (c *Collector) ClientConnected()    { c.ConnectedClients.Inc() }
func (c *Collector) ClientDisconnected() { c.ConnectedClients.Dec() }

func (c *Collector) SearchObserve(d time.Duration) { c.SearchDuration.Observe(d.Seconds()) }
func (c *Collector) MatchObserve(d time.Duration)  { c.MatchDuration.Observe(d.Seconds()) }
