// Package core implements the flight scheduling engine: availability checks,
// the flight status machine, cascade propagation and the Service facade that
// composes them over a transactional store.
package core

import (
	"context"
	"flightcore/pkg/domain"
	"time"
)

type (
	Aircraft        = domain.Aircraft
	Flight          = domain.Flight
	FlightStatus    = domain.FlightStatus
	Propagation     = domain.Propagation
	Change          = domain.Change
	Result          = domain.Result
	Violation       = domain.Violation
	Rule            = domain.Rule
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// Logger is the structured logging surface used by the service. Arguments are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

// MetricsRecorder observes the outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// CascadeObserver is optionally implemented by a MetricsRecorder that also
// wants cascade outcomes.
type CascadeObserver interface {
	ObserveCascade(ctx context.Context, aircraft string, shifts, unresolved int)
}

// TraceSpan is ended exactly once with the operation outcome.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
