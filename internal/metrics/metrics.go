// Package metrics records service outcomes and cascade activity in
// Prometheus collectors and serves them over HTTP.
package metrics

import (
	"context"
	"errors"
	"flightcore/internal/core"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the metrics endpoint.
type Config struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":9464"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Enabled && c.Address == "" {
		return fmt.Errorf("metrics address is required")
	}
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with '/'")
	}
	return nil
}

// Recorder implements core.MetricsRecorder and core.CascadeObserver.
type Recorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	shifts     *prometheus.CounterVec
	unresolved *prometheus.GaugeVec
}

var (
	_ core.MetricsRecorder = (*Recorder)(nil)
	_ core.CascadeObserver = (*Recorder)(nil)
)

// NewRecorder registers the collectors on reg, or on the default registerer
// when reg is nil. Collectors already registered are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightcore_operations_total",
			Help: "Service operations by name and outcome",
		}, []string{"operation", "success"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightcore_operation_duration_seconds",
			Help:    "Service operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		shifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightcore_cascade_shifts_total",
			Help: "Flights moved by delay propagation",
		}, []string{"aircraft"}),
		unresolved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flightcore_cascade_unresolved",
			Help: "Overlaps left by the last cascade on an aircraft",
		}, []string{"aircraft"}),
	}
	var err error
	if r.operations, err = register(reg, r.operations); err != nil {
		return nil, err
	}
	if r.latency, err = register(reg, r.latency); err != nil {
		return nil, err
	}
	if r.shifts, err = register(reg, r.shifts); err != nil {
		return nil, err
	}
	if r.unresolved, err = register(reg, r.unresolved); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records one service operation.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.operations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveCascade records the outcome of one propagation pass.
func (r *Recorder) ObserveCascade(_ context.Context, aircraft string, shifts, unresolved int) {
	if shifts > 0 {
		r.shifts.WithLabelValues(aircraft).Add(float64(shifts))
	}
	r.unresolved.WithLabelValues(aircraft).Set(float64(unresolved))
}

// Handler returns the HTTP handler exposing gatherer, or the default
// gatherer when nil.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes gatherer on cfg.Address until ctx is cancelled.
func Serve(ctx context.Context, cfg Config, gatherer prometheus.Gatherer, logger core.Logger) error {
	cfg.SetDefaults()
	if logger == nil {
		logger = core.NewNoopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, Handler(gatherer))
	srv := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()
	logger.Info("metrics server listening", "address", cfg.Address, "path", cfg.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
