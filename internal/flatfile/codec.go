// Package flatfile reads and writes the comma-separated aircraft and flight
// rows used by the fleet's plain-text data files.
package flatfile

import (
	"errors"
	"flightcore/pkg/domain"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Blob keys of the two data files.
const (
	AircraftKey = "aircrafts.txt"
	FlightKey   = "flights.txt"
)

const (
	minuteLayout = "2006-01-02T15:04"
	secondLayout = "2006-01-02T15:04:05"
	fracLayout   = "2006-01-02T15:04:05.999999999"

	aircraftFields    = 5
	minFlightFields   = 10
	cargoYes, cargoNo = "YES", "NO"
	reasonSeparator   = ";"
)

// ErrMalformedRow marks a row that cannot be decoded.
var ErrMalformedRow = errors.New("flatfile: malformed row")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRow, fmt.Sprintf(format, args...))
}

// FormatTime renders t as a zone-less UTC wall clock timestamp. Seconds are
// omitted when they and the sub-second part are zero.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(minuteLayout)
	}
	if t.Nanosecond() == 0 {
		return t.Format(secondLayout)
	}
	return t.Format(fracLayout)
}

// ParseTime reads a zone-less timestamp as UTC, with or without seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{minuteLayout, secondLayout, fracLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, malformed("invalid timestamp %q", s)
}

func checkText(field, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return domain.ValidationError{Field: field, Message: "must not contain line breaks"}
	}
	return domain.ValidateFreeText(field, value)
}

// EncodeAircraft renders registration,brand,model,capacity,status.
func EncodeAircraft(a domain.Aircraft) (string, error) {
	fields := []struct{ name, value string }{
		{"registration", a.Registration},
		{"brand", a.Brand},
		{"model", a.Model},
		{"status", string(a.Status)},
	}
	for _, f := range fields {
		if err := checkText(f.name, f.value); err != nil {
			return "", err
		}
	}
	return strings.Join([]string{
		a.Registration, a.Brand, a.Model, strconv.Itoa(a.Capacity), string(a.Status),
	}, ","), nil
}

// DecodeAircraft parses an aircraft row. Legacy status words read as Busy.
func DecodeAircraft(line string) (domain.Aircraft, error) {
	parts := strings.Split(line, ",")
	if len(parts) < aircraftFields {
		return domain.Aircraft{}, malformed("aircraft row has %d fields, want %d", len(parts), aircraftFields)
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return domain.Aircraft{}, malformed("invalid capacity %q", parts[3])
	}
	return domain.Aircraft{
		Registration: strings.TrimSpace(parts[0]),
		Brand:        strings.TrimSpace(parts[1]),
		Model:        strings.TrimSpace(parts[2]),
		Capacity:     capacity,
		Status:       domain.ParseAircraftStatus(parts[4]),
	}, nil
}

// EncodeFlight renders the eleven-column flight row. Cargo flights write zero
// passengers and passenger flights a zero cargo weight.
func EncodeFlight(f domain.Flight) (string, error) {
	fields := []struct{ name, value string }{
		{"number", f.Number},
		{"origin", f.Origin},
		{"destination", f.Destination},
		{"status", string(f.Status)},
		{"aircraft", f.AircraftID},
	}
	for _, field := range fields {
		if err := checkText(field.name, field.value); err != nil {
			return "", err
		}
	}
	for _, reason := range f.DelayReasons {
		if err := checkText("reason", reason); err != nil {
			return "", err
		}
	}
	cargo, weight, passengers := cargoNo, 0.0, f.Payload.Passengers
	if f.Payload.IsCargo() {
		cargo, weight, passengers = cargoYes, f.Payload.CargoWeightKg, 0
	}
	return strings.Join([]string{
		f.Number,
		f.Origin,
		f.Destination,
		FormatTime(f.Departure),
		FormatTime(f.Arrival),
		string(f.Status),
		f.AircraftID,
		cargo,
		strconv.FormatFloat(weight, 'f', 2, 64),
		strconv.Itoa(passengers),
		strings.Join(f.DelayReasons, reasonSeparator),
	}, ","), nil
}

// DecodeFlight parses a flight row. The trailing delay reason column may be
// absent; an unparsable passenger count reads as zero.
func DecodeFlight(line string) (domain.Flight, error) {
	parts := strings.Split(line, ",")
	if len(parts) < minFlightFields {
		return domain.Flight{}, malformed("flight row has %d fields, want at least %d", len(parts), minFlightFields)
	}
	departure, err := ParseTime(parts[3])
	if err != nil {
		return domain.Flight{}, err
	}
	arrival, err := ParseTime(parts[4])
	if err != nil {
		return domain.Flight{}, err
	}
	status, ok := domain.ParseFlightStatus(parts[5])
	if !ok {
		return domain.Flight{}, malformed("unknown flight status %q", parts[5])
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(parts[8]), 64)
	if err != nil {
		return domain.Flight{}, malformed("invalid cargo weight %q", parts[8])
	}
	passengers, err := strconv.Atoi(strings.TrimSpace(parts[9]))
	if err != nil {
		passengers = 0
	}

	var payload domain.Payload
	switch strings.ToUpper(strings.TrimSpace(parts[7])) {
	case cargoYes:
		payload = domain.CargoPayload(weight)
	case cargoNo:
		payload = domain.PassengerPayload(passengers)
	default:
		return domain.Flight{}, malformed("invalid cargo flag %q", parts[7])
	}

	reasons := []string{}
	if len(parts) > minFlightFields {
		for _, reason := range strings.Split(parts[10], reasonSeparator) {
			if reason = strings.TrimSpace(reason); reason != "" {
				reasons = append(reasons, reason)
			}
		}
	}
	return domain.Flight{
		Number:       strings.TrimSpace(parts[0]),
		Origin:       strings.TrimSpace(parts[1]),
		Destination:  strings.TrimSpace(parts[2]),
		Departure:    departure,
		Arrival:      arrival,
		Status:       status,
		AircraftID:   strings.TrimSpace(parts[6]),
		Payload:      payload,
		DelayReasons: reasons,
	}, nil
}
