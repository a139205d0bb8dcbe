package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server.
type Metrics struct {
	game      *Game
	startTime time.Time

	sessionsConnected *prometheus.GaugeVec
	objectsCached     prometheus.Gauge
	dirtyObjects      prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	commandsTotal     prometheus.Counter
	evalFailures      *prometheus.CounterVec
	tickDuration      prometheus.Histogram
	uptimeSeconds     prometheus.Gauge
	goroutines        prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: time.Now(),
		sessionsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gaia_sessions_connected",
			Help: "Number of currently connected sessions by transport.",
		}, []string{"transport"}),
		objectsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_objects_cached",
			Help: "Number of objects resident in the world cache.",
		}),
		dirtyObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_objects_dirty",
			Help: "Number of cached objects awaiting write-back.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gaia_connections_total",
			Help: "Total connections since server start.",
		}, []string{"transport"}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaia_commands_processed_total",
			Help: "Total input lines processed since server start.",
		}),
		evalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gaia_eval_failures_total",
			Help: "Interpreter failures by kind.",
		}, []string{"kind"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gaia_tick_duration_seconds",
			Help:    "Duration of tick scheduler sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.sessionsConnected,
		m.objectsCached,
		m.dirtyObjects,
		m.connectionsTotal,
		m.commandsTotal,
		m.evalFailures,
		m.tickDuration,
		m.uptimeSeconds,
		m.goroutines,
	)
	return m
}

// ConnectionOpened counts a new connection.
func (m *Metrics) ConnectionOpened(transport string) {
	m.connectionsTotal.WithLabelValues(transport).Inc()
}

// CommandProcessed counts one input line.
func (m *Metrics) CommandProcessed() { m.commandsTotal.Inc() }

// EvalFailure counts an interpreter failure by kind.
func (m *Metrics) EvalFailure(kind string) { m.evalFailures.WithLabelValues(kind).Inc() }

// TickObserved records a tick sweep duration.
func (m *Metrics) TickObserved(d time.Duration) { m.tickDuration.Observe(d.Seconds()) }

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	counts := map[string]int{"telnet": 0, "websocket": 0}
	for _, s := range m.game.Sessions.All() {
		counts[s.Transport.String()]++
	}
	m.sessionsConnected.WithLabelValues("telnet").Set(float64(counts["telnet"]))
	m.sessionsConnected.WithLabelValues("websocket").Set(float64(counts["websocket"]))

	m.objectsCached.Set(float64(len(m.game.Cache.CachedIDs())))
	m.dirtyObjects.Set(float64(m.game.Cache.DirtyCount()))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates gauges before serving.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}
