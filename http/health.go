package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthStatus is the body of both probes.
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version,omitempty"`
	Uptime      int64     `json:"uptime_seconds,omitempty"`
	Connections *int      `json:"connections,omitempty"`
}

type HealthChecker struct {
	ready     atomic.Bool
	live      atomic.Bool
	startTime time.Time
	version   string
	logger    *slog.Logger
	// connections reports open websocket workspaces, when set.
	connections func() int
}

// NewHealthChecker starts live but not ready.
func NewHealthChecker(logger *slog.Logger, version string) *HealthChecker {
	hc := &HealthChecker{
		startTime: time.Now(),
		version:   version,
		logger:    logger,
	}
	hc.live.Store(true)
	return hc
}

func (hc *HealthChecker) SetReady(ready bool) {
	hc.ready.Store(ready)
	if ready {
		hc.logger.Info("Service marked as ready")
	} else {
		hc.logger.Warn("Service marked as not ready")
	}
}

func (hc *HealthChecker) SetLive(live bool) {
	hc.live.Store(live)
	if !live {
		hc.logger.Error("Service marked as not alive")
	}
}

func (hc *HealthChecker) IsReady() bool {
	return hc.ready.Load()
}

func (hc *HealthChecker) IsLive() bool {
	return hc.live.Load()
}

// ReportConnections makes the readiness probe include fn's count.
func (hc *HealthChecker) ReportConnections(fn func() int) {
	hc.connections = fn
}

func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return hc.probe(hc.IsReady, "ready", "not_ready", true)
}

func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return hc.probe(hc.IsLive, "alive", "not_alive", false)
}

func (hc *HealthChecker) probe(ok func() bool, up, down string, withConnections bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ok() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(HealthStatus{Status: down, Timestamp: time.Now()})
			return
		}

		status := HealthStatus{
			Status:    up,
			Timestamp: time.Now(),
			Version:   hc.version,
			Uptime:    int64(time.Since(hc.startTime).Seconds()),
		}
		if withConnections && hc.connections != nil {
			n := hc.connections()
			status.Connections = &n
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// Mux serves both probes and, when metrics is set, /metrics.
func (hc *HealthChecker) Mux(readinessPath, livenessPath string, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(readinessPath, hc.ReadinessHandler())
	mux.HandleFunc(livenessPath, hc.LivenessHandler())
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}
