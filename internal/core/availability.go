package core

import "time"

// Conflicts returns the non-cancelled flights on the aircraft whose window
// overlaps [departure, arrival) under the half-open test. Flights named in
// exclude are ignored, which lets callers re-check a flight against its
// siblings.
func Conflicts(flights []Flight, registration string, departure, arrival time.Time, exclude ...string) []Flight {
	var out []Flight
	for _, f := range flights {
		if f.AircraftID != registration || f.Status == FlightCancelled {
			continue
		}
		if excluded(f.Number, exclude) {
			continue
		}
		if f.Overlaps(departure, arrival) {
			out = append(out, f)
		}
	}
	return out
}

// IsAvailable reports whether no non-cancelled flight on the aircraft overlaps
// the proposed window.
func IsAvailable(flights []Flight, registration string, departure, arrival time.Time, exclude ...string) bool {
	return len(Conflicts(flights, registration, departure, arrival, exclude...)) == 0
}

func excluded(number string, exclude []string) bool {
	for _, e := range exclude {
		if e == number {
			return true
		}
	}
	return false
}

func flightNumbers(flights []Flight) []string {
	out := make([]string, 0, len(flights))
	for _, f := range flights {
		out = append(out, f.Number)
	}
	return out
}
