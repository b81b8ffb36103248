package metricsregistry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kychandar/hammer/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	handler      http.Handler
	instanceId   string
	commands     *prometheus.CounterVec
	samples      *prometheus.CounterVec
	publishLat   *prometheus.HistogramVec
	queryReplies *prometheus.CounterVec
	activeSubs   *prometheus.GaugeVec
	sessionOpen  *prometheus.GaugeVec
	wsConnGuage  *prometheus.GaugeVec
}

func New(instanceId string) services.MetricsRegistry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	commands := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hammer_bridge_commands_total",
			Help: "Commands handled by the session bridge",
		},
		[]string{"instance_id", "kind"},
	)
	registry.MustRegister(commands)

	samples := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hammer_samples_received_total",
			Help: "Samples relayed from subscriptions",
		},
		[]string{"instance_id", "key_expr"},
	)
	registry.MustRegister(samples)

	publishLat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "hammer_publish_latency_ms",
			Help: "Put latency in milli seconds",
			Buckets: []float64{
				1, 2, 5, 10, 20, 30, 40, 50, 100,
				200, 300, 500, 800, 1000, 2000, 5000,
			},
		},
		[]string{"instance_id", "success"},
	)
	registry.MustRegister(publishLat)

	queryReplies := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hammer_query_replies_total",
			Help: "Query replies relayed to the front end",
		},
		[]string{"instance_id", "ok"},
	)
	registry.MustRegister(queryReplies)

	activeSubs := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hammer_active_subscriptions",
			Help: "Number of live subscriptions",
		},
		[]string{"instance_id"},
	)
	registry.MustRegister(activeSubs)

	sessionOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hammer_session_open",
			Help: "1 while a bus session is open",
		},
		[]string{"instance_id"},
	)
	registry.MustRegister(sessionOpen)

	wsConnGuage := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections_current",
			Help: "Number of currently active WebSocket connections",
		},
		[]string{"instance_id"},
	)
	registry.MustRegister(wsConnGuage)

	return &metricsRegistry{
		instanceId:   instanceId,
		handler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		commands:     commands,
		samples:      samples,
		publishLat:   publishLat,
		queryReplies: queryReplies,
		activeSubs:   activeSubs,
		sessionOpen:  sessionOpen,
		wsConnGuage:  wsConnGuage,
	}
}

func (mr *metricsRegistry) GetHandler() http.Handler {
	return mr.handler
}

func (mr *metricsRegistry) IncCommand(kind string) {
	mr.commands.WithLabelValues(mr.instanceId, kind).Inc()
}

func (mr *metricsRegistry) IncSample(keyExpr string) {
	mr.samples.WithLabelValues(mr.instanceId, keyExpr).Inc()
}

func (mr *metricsRegistry) ObservePublish(started time.Time, success bool) {
	mr.publishLat.WithLabelValues(mr.instanceId, strconv.FormatBool(success)).Observe(float64(time.Since(started).Milliseconds()))
}

func (mr *metricsRegistry) IncQueryReply(ok bool) {
	mr.queryReplies.WithLabelValues(mr.instanceId, strconv.FormatBool(ok)).Inc()
}

func (mr *metricsRegistry) SetActiveSubscriptions(n int) {
	mr.activeSubs.WithLabelValues(mr.instanceId).Set(float64(n))
}

func (mr *metricsRegistry) SetSessionOpen(open bool) {
	v := 0.0
	if open {
		v = 1
	}
	mr.sessionOpen.WithLabelValues(mr.instanceId).Set(v)
}

func (mr *metricsRegistry) IncWsConnectionCount() {
	mr.wsConnGuage.WithLabelValues(mr.instanceId).Inc()
}

func (mr *metricsRegistry) DecWsConnectionCount() {
	mr.wsConnGuage.WithLabelValues(mr.instanceId).Dec()
}
