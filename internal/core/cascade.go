package core

import (
	"fmt"
	"strings"
	"time"
)

// Shift describes one timestamp push applied by the propagator.
type Shift struct {
	Source   string        `json:"source"`
	Target   string        `json:"target"`
	Delta    time.Duration `json:"delta"`
	Residual bool          `json:"residual"`
}

// Overlap describes an overlap the propagator could not resolve because the
// later flight is already Departed or Arrived.
type Overlap struct {
	Source  string        `json:"source"`
	Target  string        `json:"target"`
	Overlap time.Duration `json:"overlap"`
	Status  FlightStatus  `json:"status"`
}

// CascadeReport summarizes one propagation pass over an aircraft.
type CascadeReport struct {
	Aircraft   string    `json:"aircraft"`
	Shifts     []Shift   `json:"shifts"`
	Unresolved []Overlap `json:"unresolved"`
}

// Changed reports whether the pass moved any flight.
func (r CascadeReport) Changed() bool { return len(r.Shifts) > 0 }

// PropagationReason builds the system delay reason for a cascade push.
func PropagationReason(source string, delta time.Duration) string {
	return fmt.Sprintf("Operational: Late Incoming Aircraft %s (+%s)", source, FormatDelta(delta))
}

// FormatDelta prints a duration without zero trailing units: 1h0m0s is 1h.
func FormatDelta(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

// propagate runs a single transitive pass over the aircraft's non-cancelled
// flights ordered by departure. The blocker is the earlier flight with the
// latest arrival; every later shiftable flight departing before it lands is
// pushed back by exactly the overlap. A pass over a clean schedule is a no-op.
func propagate(tx Transaction, registration string) (CascadeReport, error) {
	report := CascadeReport{Aircraft: registration}
	var blocker *Flight
	for _, f := range tx.Snapshot().FlightsForAircraft(registration) {
		if f.Status == FlightCancelled {
			continue
		}
		current := f
		if blocker != nil && blocker.Arrival.After(current.Departure) {
			delta := blocker.Arrival.Sub(current.Departure)
			if !current.Status.Shiftable() {
				report.Unresolved = append(report.Unresolved, Overlap{
					Source:  blocker.Number,
					Target:  current.Number,
					Overlap: delta,
					Status:  current.Status,
				})
			} else {
				shifted, shift, err := applyShift(tx, *blocker, current, delta)
				if err != nil {
					return CascadeReport{}, err
				}
				current = shifted
				report.Shifts = append(report.Shifts, shift)
			}
		}
		if blocker == nil || current.Arrival.After(blocker.Arrival) {
			b := current
			blocker = &b
		}
	}
	return report, nil
}

func applyShift(tx Transaction, source, target Flight, delta time.Duration) (Flight, Shift, error) {
	record, residual := tx.FindPropagation(source.Number, target.Number)
	reason := PropagationReason(source.Number, delta)
	updated, err := tx.UpdateFlight(target.Number, func(f *Flight) error {
		if !residual {
			f.DelayReasons = append(f.DelayReasons, reason)
		}
		f.Departure = f.Departure.Add(delta)
		f.Arrival = f.Arrival.Add(delta)
		return nil
	})
	if err != nil {
		return Flight{}, Shift{}, err
	}
	if residual {
		record.Applied += delta
	} else {
		record = Propagation{Source: source.Number, Target: target.Number, Applied: delta, Reason: reason}
	}
	if _, err := tx.PutPropagation(record); err != nil {
		return Flight{}, Shift{}, err
	}
	return updated, Shift{Source: source.Number, Target: target.Number, Delta: delta, Residual: residual}, nil
}
