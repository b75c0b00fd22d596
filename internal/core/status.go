package core

import (
	"flightcore/pkg/domain"
	"fmt"
)

const (
	FlightScheduled = domain.FlightScheduled
	FlightBoarding  = domain.FlightBoarding
	FlightDeparted  = domain.FlightDeparted
	FlightArrived   = domain.FlightArrived
	FlightDelayed   = domain.FlightDelayed
	FlightCancelled = domain.FlightCancelled
)

// flightTransitions lists the statuses reachable from each status. Terminal
// statuses have no entry.
var flightTransitions = map[FlightStatus]map[FlightStatus]struct{}{
	FlightScheduled: statusSet(FlightBoarding, FlightDelayed, FlightCancelled),
	FlightBoarding:  statusSet(FlightDeparted, FlightDelayed, FlightCancelled),
	FlightDelayed:   statusSet(FlightBoarding, FlightDeparted, FlightDelayed, FlightCancelled),
	FlightDeparted:  statusSet(FlightArrived, FlightDelayed, FlightCancelled),
}

func statusSet(values ...FlightStatus) map[FlightStatus]struct{} {
	set := make(map[FlightStatus]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// CanTransition reports whether a flight may move from one status to another.
func CanTransition(from, to FlightStatus) bool {
	next, ok := flightTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// checkTransition returns a BlockedError describing why from -> to is refused.
func checkTransition(f Flight, to FlightStatus) error {
	if f.Status.Terminal() {
		return domain.BlockedError{
			Flight: f.Number,
			Cause:  domain.CauseTerminalState,
			Detail: fmt.Sprintf("flight is %s and cannot change", f.Status),
		}
	}
	if !CanTransition(f.Status, to) {
		return domain.BlockedError{
			Flight: f.Number,
			Cause:  domain.CauseInvalidTransition,
			Detail: fmt.Sprintf("cannot move from %s to %s", f.Status, to),
		}
	}
	return nil
}

// checkOccupancy refuses when another flight on the aircraft is Boarding or
// Departed.
func checkOccupancy(siblings []Flight, f Flight) error {
	for _, other := range siblings {
		if other.Number == f.Number || !other.Status.Occupying() {
			continue
		}
		return domain.BlockedError{
			Flight:      f.Number,
			Cause:       domain.CausePhysicalOccupancy,
			Conflicting: other.Number,
			Detail:      fmt.Sprintf("aircraft %s is %s on %s", f.AircraftID, other.Status, other.Number),
		}
	}
	return nil
}

// checkSequence refuses when an earlier flight on the aircraft has not yet
// reached Arrived or Cancelled. Siblings must be ordered by departure.
func checkSequence(siblings []Flight, f Flight) error {
	for _, other := range siblings {
		if other.Number == f.Number {
			return nil
		}
		if other.Status.Terminal() {
			continue
		}
		return domain.BlockedError{
			Flight:      f.Number,
			Cause:       domain.CauseSequence,
			Conflicting: other.Number,
			Detail:      fmt.Sprintf("earlier flight %s is still %s", other.Number, other.Status),
		}
	}
	return nil
}

// DeriveAircraftStatus returns Busy when any flight is neither Arrived nor
// Cancelled, Available otherwise.
func DeriveAircraftStatus(flights []Flight) domain.AircraftStatus {
	for _, f := range flights {
		if !f.Status.Terminal() {
			return domain.AircraftBusy
		}
	}
	return domain.AircraftAvailable
}

// syncAircraftStatus stores the derived status for the aircraft when it differs.
func syncAircraftStatus(tx Transaction, registration string) error {
	aircraft, ok := tx.FindAircraft(registration)
	if !ok {
		return nil
	}
	derived := DeriveAircraftStatus(tx.Snapshot().FlightsForAircraft(registration))
	if aircraft.Status == derived {
		return nil
	}
	_, err := tx.UpdateAircraft(registration, func(a *Aircraft) error {
		a.Status = derived
		return nil
	})
	return err
}
