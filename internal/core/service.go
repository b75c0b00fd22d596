package core

import (
	"context"
	"errors"
	"flightcore/internal/infra/persistence/memory"
	"flightcore/pkg/domain"
	"fmt"
	"strings"
	"time"
)

// Delay reason applied when a status update requests Delayed without a
// dedicated reason.
const StatusUpdateDelayReason = "Others: Status update"

// ScheduleSettings tunes the scheduling defaults applied by the service.
type ScheduleSettings struct {
	// ManualDelay is the increment applied by ManualDelay.
	ManualDelay time.Duration
	// DefaultBlockTime fills the arrival of flights submitted without one.
	DefaultBlockTime time.Duration
	// DefaultOrigin fills the origin of flights submitted without one.
	DefaultOrigin string
	// AllowPastDepartures disables the check that new flights depart in the future.
	AllowPastDepartures bool
}

// DefaultScheduleSettings returns the stock scheduling defaults.
func DefaultScheduleSettings() ScheduleSettings {
	return ScheduleSettings{
		ManualDelay:      time.Hour,
		DefaultBlockTime: 2 * time.Hour,
		DefaultOrigin:    "BATU PAHAT",
	}
}

// Service composes the registries, availability checks, the status machine
// and the cascade propagator behind transactional operations.
type Service struct {
	store    PersistentStore
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	clock    Clock
	settings ScheduleSettings
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock sets the clock used for business timestamps. Stores that accept a
// time provider are switched to the same clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithScheduleSettings overrides the scheduling defaults. Zero durations and
// an empty origin keep the stock values.
func WithScheduleSettings(settings ScheduleSettings) Option {
	return func(s *Service) {
		defaults := DefaultScheduleSettings()
		if settings.ManualDelay <= 0 {
			settings.ManualDelay = defaults.ManualDelay
		}
		if settings.DefaultBlockTime <= 0 {
			settings.DefaultBlockTime = defaults.DefaultBlockTime
		}
		if strings.TrimSpace(settings.DefaultOrigin) == "" {
			settings.DefaultOrigin = defaults.DefaultOrigin
		}
		s.settings = settings
	}
}

type nowSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		clock:    systemClock{},
		settings: DefaultScheduleSettings(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if setter, ok := store.(nowSetter); ok {
		if _, system := svc.clock.(systemClock); !system {
			clock := svc.clock
			setter.SetNowFunc(func() time.Time { return clock.Now().UTC() })
		}
	}
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Settings returns the active scheduling defaults.
func (s *Service) Settings() ScheduleSettings {
	return s.settings
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// execute runs fn in a store transaction wrapped with tracing, metrics and logging.
func (s *Service) execute(ctx context.Context, op string, fn func(tx Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.finish(ctx, op, started, err)
	for _, warning := range res.Warnings() {
		s.logger.Warn("rule warning", "operation", op, "rule", warning.Rule, "entity_id", warning.EntityID, "message", warning.Message)
	}
	span.End(err)
	return res, err
}

// read runs fn over a read-only view wrapped with tracing and metrics.
func (s *Service) read(ctx context.Context, op string, fn func(view TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := s.store.View(ctx, fn)
	s.finish(ctx, op, started, err)
	span.End(err)
	return err
}

func (s *Service) finish(ctx context.Context, op string, started time.Time, err error) {
	duration := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err == nil {
		s.logger.Debug("operation completed", "operation", op, "duration", duration)
		return
	}
	if cause, ok := domain.BlockCauseOf(err); ok {
		s.logger.Warn("operation blocked", "operation", op, "cause", string(cause), "error", err.Error())
		return
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBlocked) {
		s.logger.Info("operation rejected", "operation", op, "error", err.Error())
		return
	}
	s.logger.Error("operation failed", "operation", op, "error", err.Error())
}

func (s *Service) reportCascade(ctx context.Context, report CascadeReport) {
	if len(report.Shifts) == 0 && len(report.Unresolved) == 0 {
		return
	}
	if observer, ok := s.metrics.(CascadeObserver); ok {
		observer.ObserveCascade(ctx, report.Aircraft, len(report.Shifts), len(report.Unresolved))
	}
	for _, shift := range report.Shifts {
		s.logger.Info("flight shifted", "aircraft", report.Aircraft, "source", shift.Source, "target", shift.Target, "delta", shift.Delta, "residual", shift.Residual)
	}
	for _, overlap := range report.Unresolved {
		s.logger.Warn("unresolved overlap", "aircraft", report.Aircraft, "source", overlap.Source, "target", overlap.Target, "overlap", overlap.Overlap, "status", string(overlap.Status))
	}
}

// AddAircraft registers a new aircraft. Its status starts Available and is
// derived from its flights from then on.
func (s *Service) AddAircraft(ctx context.Context, aircraft Aircraft) (Aircraft, Result, error) {
	aircraft.Registration = strings.ToUpper(strings.TrimSpace(aircraft.Registration))
	aircraft.Model = strings.ToUpper(strings.TrimSpace(aircraft.Model))
	aircraft.Brand = strings.TrimSpace(aircraft.Brand)
	aircraft.Status = domain.AircraftAvailable
	var created Aircraft
	res, err := s.execute(ctx, "add_aircraft", func(tx Transaction) error {
		if err := domain.ValidateAircraft(aircraft); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateAircraft(aircraft)
		return err
	})
	return created, res, err
}

// DeleteAircraft removes an aircraft that no flight references.
func (s *Service) DeleteAircraft(ctx context.Context, registration string) (Result, error) {
	return s.execute(ctx, "delete_aircraft", func(tx Transaction) error {
		return tx.DeleteAircraft(registration)
	})
}

// GetAircraft returns the aircraft with the registration.
func (s *Service) GetAircraft(ctx context.Context, registration string) (Aircraft, error) {
	var out Aircraft
	err := s.read(ctx, "get_aircraft", func(view TransactionView) error {
		a, ok := view.FindAircraft(registration)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityAircraft, ID: registration}
		}
		out = a
		return nil
	})
	return out, err
}

// ListAircraft returns every aircraft ordered by registration.
func (s *Service) ListAircraft(ctx context.Context) ([]Aircraft, error) {
	var out []Aircraft
	err := s.read(ctx, "list_aircraft", func(view TransactionView) error {
		out = view.ListAircraft()
		return nil
	})
	return out, err
}

// normalizeFlight fills defaults for fields a caller may omit.
func (s *Service) normalizeFlight(f Flight) Flight {
	f.Number = strings.ToUpper(strings.TrimSpace(f.Number))
	f.Origin = strings.ToUpper(strings.TrimSpace(f.Origin))
	f.Destination = strings.ToUpper(strings.TrimSpace(f.Destination))
	f.AircraftID = strings.ToUpper(strings.TrimSpace(f.AircraftID))
	if f.Origin == "" {
		f.Origin = s.settings.DefaultOrigin
	}
	f.Departure = f.Departure.UTC()
	if f.Arrival.IsZero() && !f.Departure.IsZero() {
		f.Arrival = f.Departure.Add(s.settings.DefaultBlockTime)
	}
	f.Arrival = f.Arrival.UTC()
	if f.Status == "" {
		f.Status = FlightScheduled
	}
	if f.Payload.Kind == "" {
		f.Payload.Kind = domain.PayloadPassenger
	}
	if f.DelayReasons == nil {
		f.DelayReasons = []string{}
	}
	return f
}

func checkCapacity(aircraft Aircraft, f Flight) error {
	if f.Payload.IsCargo() || f.Payload.Passengers <= aircraft.Capacity {
		return nil
	}
	return domain.ValidationError{
		Field:   "passengers",
		Message: fmt.Sprintf("%d booked exceeds capacity %d of %s", f.Payload.Passengers, aircraft.Capacity, aircraft.Registration),
	}
}

// AddFlight schedules a new flight. The availability check and the insert run
// in one transaction, so two overlapping requests cannot both succeed.
func (s *Service) AddFlight(ctx context.Context, flight Flight) (Flight, Result, error) {
	flight = s.normalizeFlight(flight)
	var created Flight
	res, err := s.execute(ctx, "add_flight", func(tx Transaction) error {
		if err := domain.ValidateFlight(flight); err != nil {
			return err
		}
		if flight.Status != FlightScheduled {
			return domain.ValidationError{Field: "status", Message: "new flights start Scheduled"}
		}
		if !s.settings.AllowPastDepartures && flight.Departure.Before(s.now()) {
			return domain.ValidationError{Field: "departure", Message: "must not be in the past"}
		}
		aircraft, ok := tx.FindAircraft(flight.AircraftID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityAircraft, ID: flight.AircraftID}
		}
		if err := checkCapacity(aircraft, flight); err != nil {
			return err
		}
		siblings := tx.Snapshot().FlightsForAircraft(flight.AircraftID)
		if conflicts := Conflicts(siblings, flight.AircraftID, flight.Departure, flight.Arrival); len(conflicts) > 0 {
			return domain.ConflictError{Aircraft: flight.AircraftID, Conflicting: flightNumbers(conflicts)}
		}
		var err error
		created, err = tx.CreateFlight(flight)
		if err != nil {
			return err
		}
		return syncAircraftStatus(tx, flight.AircraftID)
	})
	return created, res, err
}

// DeleteFlight removes a flight, its propagation records, and re-derives the
// status of the aircraft it referenced.
func (s *Service) DeleteFlight(ctx context.Context, number string) (Result, error) {
	return s.execute(ctx, "delete_flight", func(tx Transaction) error {
		f, ok := tx.FindFlight(number)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityFlight, ID: number}
		}
		if err := tx.DeleteFlight(number); err != nil {
			return err
		}
		return syncAircraftStatus(tx, f.AircraftID)
	})
}

// GetFlight returns the flight with the number.
func (s *Service) GetFlight(ctx context.Context, number string) (Flight, error) {
	var out Flight
	err := s.read(ctx, "get_flight", func(view TransactionView) error {
		f, ok := view.FindFlight(number)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityFlight, ID: number}
		}
		out = f
		return nil
	})
	return out, err
}

// ListFlights returns every flight ordered by number.
func (s *Service) ListFlights(ctx context.Context) ([]Flight, error) {
	var out []Flight
	err := s.read(ctx, "list_flights", func(view TransactionView) error {
		out = view.ListFlights()
		return nil
	})
	return out, err
}

// IsAircraftAvailable reports whether the aircraft has no non-cancelled flight
// overlapping [departure, arrival).
func (s *Service) IsAircraftAvailable(ctx context.Context, registration string, departure, arrival time.Time) (bool, error) {
	if arrival.Before(departure) {
		return false, domain.ValidationError{Field: "arrival", Message: "must not precede departure"}
	}
	var available bool
	err := s.read(ctx, "is_aircraft_available", func(view TransactionView) error {
		if _, ok := view.FindAircraft(registration); !ok {
			return domain.NotFoundError{Entity: domain.EntityAircraft, ID: registration}
		}
		available = IsAvailable(view.FlightsForAircraft(registration), registration, departure.UTC(), arrival.UTC())
		return nil
	})
	return available, err
}

func findFlight(tx Transaction, number string) (Flight, error) {
	f, ok := tx.FindFlight(number)
	if !ok {
		return Flight{}, domain.NotFoundError{Entity: domain.EntityFlight, ID: number}
	}
	return f, nil
}

func setStatus(tx Transaction, number string, status FlightStatus) (Flight, error) {
	return tx.UpdateFlight(number, func(f *Flight) error {
		f.Status = status
		return nil
	})
}

// checkProgress runs the occupancy and sequence checks for a flight moving to
// Boarding or Departed.
func checkProgress(tx Transaction, f Flight) error {
	siblings := tx.Snapshot().FlightsForAircraft(f.AircraftID)
	if err := checkOccupancy(siblings, f); err != nil {
		return err
	}
	return checkSequence(siblings, f)
}

// AttemptDeparture moves a flight to Departed. It is refused when another
// flight occupies the aircraft or an earlier flight is still pending.
func (s *Service) AttemptDeparture(ctx context.Context, number string) (Flight, Result, error) {
	var (
		updated Flight
		report  CascadeReport
	)
	res, err := s.execute(ctx, "attempt_departure", func(tx Transaction) error {
		f, err := findFlight(tx, number)
		if err != nil {
			return err
		}
		if err := checkTransition(f, FlightDeparted); err != nil {
			return err
		}
		if err := checkProgress(tx, f); err != nil {
			return err
		}
		if report, err = propagate(tx, f.AircraftID); err != nil {
			return err
		}
		if updated, err = setStatus(tx, number, FlightDeparted); err != nil {
			return err
		}
		return syncAircraftStatus(tx, f.AircraftID)
	})
	if err == nil {
		s.reportCascade(ctx, report)
	}
	return updated, res, err
}

// AttemptArrival moves a flight to Arrived and re-runs the propagator.
func (s *Service) AttemptArrival(ctx context.Context, number string) (Flight, Result, error) {
	var (
		updated Flight
		report  CascadeReport
	)
	res, err := s.execute(ctx, "attempt_arrival", func(tx Transaction) error {
		f, err := findFlight(tx, number)
		if err != nil {
			return err
		}
		if err := checkTransition(f, FlightArrived); err != nil {
			return err
		}
		if updated, err = setStatus(tx, number, FlightArrived); err != nil {
			return err
		}
		if err := syncAircraftStatus(tx, f.AircraftID); err != nil {
			return err
		}
		report, err = propagate(tx, f.AircraftID)
		return err
	})
	if err == nil {
		s.reportCascade(ctx, report)
	}
	return updated, res, err
}

// ManualDelay appends the reason, pushes the flight back by the configured
// increment, marks it Delayed and cascades the push to later flights.
func (s *Service) ManualDelay(ctx context.Context, number, reason string) (Flight, Result, error) {
	reason = strings.TrimSpace(reason)
	var (
		updated Flight
		report  CascadeReport
	)
	res, err := s.execute(ctx, "manual_delay", func(tx Transaction) error {
		if err := domain.ValidateDelayReason(reason); err != nil {
			return err
		}
		f, err := findFlight(tx, number)
		if err != nil {
			return err
		}
		if err := checkTransition(f, FlightDelayed); err != nil {
			return err
		}
		if _, err := tx.UpdateFlight(number, func(f *Flight) error {
			f.DelayReasons = append(f.DelayReasons, reason)
			f.Departure = f.Departure.Add(s.settings.ManualDelay)
			f.Arrival = f.Arrival.Add(s.settings.ManualDelay)
			f.Status = FlightDelayed
			return nil
		}); err != nil {
			return err
		}
		if report, err = propagate(tx, f.AircraftID); err != nil {
			return err
		}
		if err := syncAircraftStatus(tx, f.AircraftID); err != nil {
			return err
		}
		updated, err = findFlight(tx, number)
		return err
	})
	if err == nil {
		s.reportCascade(ctx, report)
	}
	return updated, res, err
}

// UpdateFlightStatus applies a status change. Departed, Arrived and Delayed
// delegate to AttemptDeparture, AttemptArrival and ManualDelay.
func (s *Service) UpdateFlightStatus(ctx context.Context, number string, status FlightStatus) (Flight, Result, error) {
	switch status {
	case FlightDeparted:
		return s.AttemptDeparture(ctx, number)
	case FlightArrived:
		return s.AttemptArrival(ctx, number)
	case FlightDelayed:
		return s.ManualDelay(ctx, number, StatusUpdateDelayReason)
	case FlightBoarding:
		return s.board(ctx, number)
	case FlightCancelled:
		return s.cancel(ctx, number)
	}
	var updated Flight
	res, err := s.execute(ctx, "update_flight_status", func(tx Transaction) error {
		if !status.Valid() {
			return domain.ValidationError{Field: "status", Message: "unknown status " + string(status)}
		}
		f, err := findFlight(tx, number)
		if err != nil {
			return err
		}
		if err := checkTransition(f, status); err != nil {
			return err
		}
		updated, err = setStatus(tx, number, status)
		return err
	})
	return updated, res, err
}

func (s *Service) board(ctx context.Context, number string) (Flight, Result, error) {
	var updated Flight
	res, err := s.execute(ctx, "board_flight", func(tx Transaction) error {
		f, err := findFlight(tx, number)
		if err != nil {
			return err
		}
		if err := checkTransition(f, FlightBoarding); err != nil {
			return err
		}
		if err := checkProgress(tx, f); err != nil {
			return err
		}
		if updated, err = setStatus(tx, number, FlightBoarding); err != nil {
			return err
		}
		return syncAircraftStatus(tx, f.AircraftID)
	})
	return updated, res, err
}

func (s *Service) cancel(ctx context.Context, number string) (Flight, Result, error) {
	var (
		updated Flight
		report  CascadeReport
	)
	res, err := s.execute(ctx, "cancel_flight", func(tx Transaction) error {
		f, err := findFlight(tx, number)
		if err != nil {
			return err
		}
		if err := checkTransition(f, FlightCancelled); err != nil {
			return err
		}
		if updated, err = setStatus(tx, number, FlightCancelled); err != nil {
			return err
		}
		if err := syncAircraftStatus(tx, f.AircraftID); err != nil {
			return err
		}
		report, err = propagate(tx, f.AircraftID)
		return err
	})
	if err == nil {
		s.reportCascade(ctx, report)
	}
	return updated, res, err
}

// RefreshScheduleForAircraft runs the cascade propagator over the aircraft's
// flights and re-derives its status.
func (s *Service) RefreshScheduleForAircraft(ctx context.Context, registration string) (CascadeReport, Result, error) {
	var report CascadeReport
	res, err := s.execute(ctx, "refresh_schedule", func(tx Transaction) error {
		if _, ok := tx.FindAircraft(registration); !ok {
			return domain.NotFoundError{Entity: domain.EntityAircraft, ID: registration}
		}
		var err error
		if report, err = propagate(tx, registration); err != nil {
			return err
		}
		return syncAircraftStatus(tx, registration)
	})
	if err != nil {
		return CascadeReport{}, res, err
	}
	s.reportCascade(ctx, report)
	return report, res, nil
}
