package domain

import (
	"regexp"
	"strings"
)

var (
	registrationPattern = regexp.MustCompile(`^[A-Z0-9]{2,3}-[A-Z0-9]+$`)
	modelPattern        = regexp.MustCompile(`^[A-Z0-9-]+$`)
	flightNumberPattern = regexp.MustCompile(`^[A-Z]{2,3}-\d{3,4}$`)
	placePattern        = regexp.MustCompile(`^[A-Z ]+$`)
)

// ValidateAircraft checks field formats of an aircraft before insert.
func ValidateAircraft(a Aircraft) error {
	switch {
	case !registrationPattern.MatchString(a.Registration):
		return ValidationError{Field: "registration", Message: "must look like 9M-ABC"}
	case strings.TrimSpace(a.Brand) == "":
		return ValidationError{Field: "brand", Message: "required"}
	case !modelPattern.MatchString(a.Model):
		return ValidationError{Field: "model", Message: "uppercase letters, digits and dashes only"}
	case a.Capacity < 0:
		return ValidationError{Field: "capacity", Message: "must not be negative"}
	}
	if err := ValidateFreeText("brand", a.Brand); err != nil {
		return err
	}
	return nil
}

// ValidateFlight checks field formats and the time window of a flight.
// Aircraft existence and payload capacity are checked by the engine.
func ValidateFlight(f Flight) error {
	switch {
	case !flightNumberPattern.MatchString(f.Number):
		return ValidationError{Field: "number", Message: "must look like MH-123"}
	case !placePattern.MatchString(f.Origin):
		return ValidationError{Field: "origin", Message: "uppercase letters and spaces only"}
	case !placePattern.MatchString(f.Destination):
		return ValidationError{Field: "destination", Message: "uppercase letters and spaces only"}
	case f.Departure.IsZero():
		return ValidationError{Field: "departure", Message: "required"}
	case f.Arrival.Before(f.Departure):
		return ValidationError{Field: "arrival", Message: "must not precede departure"}
	case f.Status != "" && !f.Status.Valid():
		return ValidationError{Field: "status", Message: "unknown status " + string(f.Status)}
	case strings.TrimSpace(f.AircraftID) == "":
		return ValidationError{Field: "aircraft", Message: "required"}
	}
	switch f.Payload.Kind {
	case PayloadPassenger:
		if f.Payload.Passengers < 0 {
			return ValidationError{Field: "passengers", Message: "must not be negative"}
		}
	case PayloadCargo:
		if f.Payload.CargoWeightKg < 0 {
			return ValidationError{Field: "cargo_weight", Message: "must not be negative"}
		}
	default:
		return ValidationError{Field: "payload", Message: "unknown payload kind " + string(f.Payload.Kind)}
	}
	for _, reason := range f.DelayReasons {
		if err := ValidateFreeText("delay_reason", reason); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDelayReason rejects empty reasons and reasons that would break the
// row format.
func ValidateDelayReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ValidationError{Field: "reason", Message: "required"}
	}
	return ValidateFreeText("reason", reason)
}

// ValidateFreeText rejects the row and list delimiters.
func ValidateFreeText(field, value string) error {
	if strings.ContainsAny(value, ",;") {
		return ValidationError{Field: field, Message: "must not contain ',' or ';'"}
	}
	return nil
}
