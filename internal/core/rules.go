package core

import (
	"context"
	"flightcore/pkg/domain"
	"fmt"
	"sort"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(FlightLifecycleRule())
	engine.Register(FlightWindowRule())
	engine.Register(AircraftReferenceRule())
	engine.Register(PassengerCapacityRule())
	engine.Register(AircraftStatusRule())
	engine.Register(ScheduleOverlapRule())
	return engine
}

type flightChange struct {
	action domain.Action
	before *Flight
	after  *Flight
}

// flightChanges decodes the flight entries of a change set.
func flightChanges(changes []Change) []flightChange {
	var out []flightChange
	for _, change := range changes {
		if change.Entity != domain.EntityFlight {
			continue
		}
		fc := flightChange{action: change.Action}
		if f, ok := domain.DecodeChangePayload[Flight](change.Before); ok {
			fc.before = &f
		}
		if f, ok := domain.DecodeChangePayload[Flight](change.After); ok {
			fc.after = &f
		}
		out = append(out, fc)
	}
	return out
}

// touchedAircraft collects the registrations affected by a change set in
// sorted order.
func touchedAircraft(changes []Change) []string {
	seen := map[string]struct{}{}
	for _, fc := range flightChanges(changes) {
		if fc.before != nil {
			seen[fc.before.AircraftID] = struct{}{}
		}
		if fc.after != nil {
			seen[fc.after.AircraftID] = struct{}{}
		}
	}
	for _, change := range changes {
		if change.Entity != domain.EntityAircraft {
			continue
		}
		if a, ok := domain.DecodeChangePayload[Aircraft](change.After); ok {
			seen[a.Registration] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for reg := range seen {
		if reg != "" {
			out = append(out, reg)
		}
	}
	sort.Strings(out)
	return out
}

// FlightLifecycleRule blocks unknown statuses, illegal transitions and any
// mutation of an Arrived or Cancelled flight.
func FlightLifecycleRule() domain.Rule { return flightLifecycleRule{} }

type flightLifecycleRule struct{}

func (flightLifecycleRule) Name() string { return "flight_lifecycle" }

func (r flightLifecycleRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	block := func(f *Flight, msg string) {
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityFlight,
			EntityID: f.Number,
		})
	}
	for _, fc := range flightChanges(changes) {
		if fc.after == nil {
			continue
		}
		if !fc.after.Status.Valid() {
			block(fc.after, fmt.Sprintf("flight %s is set to invalid status %q", fc.after.Number, fc.after.Status))
			continue
		}
		if fc.before == nil {
			continue
		}
		if fc.before.Status.Terminal() {
			if flightMutated(*fc.before, *fc.after) {
				block(fc.after, fmt.Sprintf("cannot modify flight %s in terminal status %s", fc.after.Number, fc.before.Status))
			}
			continue
		}
		if fc.before.Status != fc.after.Status && !CanTransition(fc.before.Status, fc.after.Status) {
			block(fc.after, fmt.Sprintf("flight %s cannot move from %s to %s", fc.after.Number, fc.before.Status, fc.after.Status))
		}
	}
	return res, nil
}

func flightMutated(before, after Flight) bool {
	return before.Status != after.Status ||
		!before.Departure.Equal(after.Departure) ||
		!before.Arrival.Equal(after.Arrival) ||
		before.AircraftID != after.AircraftID ||
		len(before.DelayReasons) != len(after.DelayReasons)
}

// FlightWindowRule blocks flights that land before they depart.
func FlightWindowRule() domain.Rule { return flightWindowRule{} }

type flightWindowRule struct{}

func (flightWindowRule) Name() string { return "flight_window" }

func (r flightWindowRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, fc := range flightChanges(changes) {
		if fc.after == nil || !fc.after.Arrival.Before(fc.after.Departure) {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("flight %s arrives before it departs", fc.after.Number),
			Entity:   domain.EntityFlight,
			EntityID: fc.after.Number,
		})
	}
	return res, nil
}

// AircraftReferenceRule blocks flights that reference an unknown aircraft.
func AircraftReferenceRule() domain.Rule { return aircraftReferenceRule{} }

type aircraftReferenceRule struct{}

func (aircraftReferenceRule) Name() string { return "aircraft_reference" }

func (r aircraftReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, fc := range flightChanges(changes) {
		if fc.after == nil {
			continue
		}
		if _, ok := view.FindAircraft(fc.after.AircraftID); ok {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("flight %s references unknown aircraft %q", fc.after.Number, fc.after.AircraftID),
			Entity:   domain.EntityFlight,
			EntityID: fc.after.Number,
		})
	}
	return res, nil
}

// PassengerCapacityRule blocks passenger flights booked beyond the seats of
// their aircraft.
func PassengerCapacityRule() domain.Rule { return passengerCapacityRule{} }

type passengerCapacityRule struct{}

func (passengerCapacityRule) Name() string { return "passenger_capacity" }

func (r passengerCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, fc := range flightChanges(changes) {
		if fc.after == nil || fc.after.Payload.IsCargo() {
			continue
		}
		aircraft, ok := view.FindAircraft(fc.after.AircraftID)
		if !ok || fc.after.Payload.Passengers <= aircraft.Capacity {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("flight %s books %d passengers on %s with %d seats", fc.after.Number, fc.after.Payload.Passengers, aircraft.Registration, aircraft.Capacity),
			Entity:   domain.EntityFlight,
			EntityID: fc.after.Number,
		})
	}
	return res, nil
}

// AircraftStatusRule blocks commits that leave a stored aircraft status out
// of step with the status derived from its flights.
func AircraftStatusRule() domain.Rule { return aircraftStatusRule{} }

type aircraftStatusRule struct{}

func (aircraftStatusRule) Name() string { return "aircraft_status" }

func (r aircraftStatusRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, reg := range touchedAircraft(changes) {
		aircraft, ok := view.FindAircraft(reg)
		if !ok {
			continue
		}
		derived := DeriveAircraftStatus(view.FlightsForAircraft(reg))
		if aircraft.Status == derived {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("aircraft %s stored as %s but derives %s", reg, aircraft.Status, derived),
			Entity:   domain.EntityAircraft,
			EntityID: reg,
		})
	}
	return res, nil
}

// ScheduleOverlapRule warns about overlapping non-cancelled flights left on
// an aircraft, typically behind a Departed or Arrived flight the propagator
// cannot move.
func ScheduleOverlapRule() domain.Rule { return scheduleOverlapRule{} }

type scheduleOverlapRule struct{}

func (scheduleOverlapRule) Name() string { return "schedule_overlap" }

func (r scheduleOverlapRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, reg := range touchedAircraft(changes) {
		flights := view.FlightsForAircraft(reg)
		for i, f := range flights {
			if f.Status == FlightCancelled {
				continue
			}
			for _, other := range flights[i+1:] {
				if other.Status == FlightCancelled || !f.Overlaps(other.Departure, other.Arrival) {
					continue
				}
				res.Violations = append(res.Violations, Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("flights %s and %s overlap on %s", f.Number, other.Number, reg),
					Entity:   domain.EntityFlight,
					EntityID: other.Number,
				})
			}
		}
	}
	return res, nil
}
