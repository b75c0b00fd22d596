// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by flightcore.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAircraft identifies an aircraft record keyed by registration.
	EntityAircraft EntityType = "aircraft"
	// EntityFlight identifies a flight record keyed by flight number.
	EntityFlight EntityType = "flight"
	// EntityPropagation identifies a cascade propagation record.
	EntityPropagation EntityType = "propagation"
)

// AircraftStatus is the derived operational status of an aircraft.
type AircraftStatus string

// Canonical aircraft statuses.
const (
	AircraftAvailable AircraftStatus = "Available"
	AircraftBusy      AircraftStatus = "Busy"
)

// ParseAircraftStatus maps stored vocabulary onto the canonical enumeration.
// Legacy values such as "In Flight", "Scheduled" or "In Use" read as Busy.
func ParseAircraftStatus(s string) AircraftStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "available":
		return AircraftAvailable
	default:
		return AircraftBusy
	}
}

// FlightStatus enumerates the flight workflow states.
type FlightStatus string

// Canonical flight statuses.
const (
	FlightScheduled FlightStatus = "Scheduled"
	FlightBoarding  FlightStatus = "Boarding"
	FlightDeparted  FlightStatus = "Departed"
	FlightArrived   FlightStatus = "Arrived"
	FlightDelayed   FlightStatus = "Delayed"
	FlightCancelled FlightStatus = "Cancelled"
)

// FlightStatuses lists every valid flight status in workflow order.
var FlightStatuses = []FlightStatus{
	FlightScheduled,
	FlightBoarding,
	FlightDeparted,
	FlightArrived,
	FlightDelayed,
	FlightCancelled,
}

// ParseFlightStatus resolves a status name case-insensitively.
func ParseFlightStatus(s string) (FlightStatus, bool) {
	for _, status := range FlightStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, true
		}
	}
	return "", false
}

// Valid reports whether the status is one of the canonical values.
func (s FlightStatus) Valid() bool {
	for _, status := range FlightStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s FlightStatus) Terminal() bool {
	return s == FlightArrived || s == FlightCancelled
}

// Occupying reports whether the aircraft is physically mid-operation.
func (s FlightStatus) Occupying() bool {
	return s == FlightBoarding || s == FlightDeparted
}

// Shiftable reports whether the propagator may move the flight's timestamps.
func (s FlightStatus) Shiftable() bool {
	return s == FlightScheduled || s == FlightBoarding || s == FlightDelayed
}

// Aircraft is a fleet member. Status is derived from the flights that
// reference it and is never set directly by callers.
type Aircraft struct {
	Registration string         `json:"registration"`
	Brand        string         `json:"brand"`
	Model        string         `json:"model"`
	Capacity     int            `json:"capacity"`
	Status       AircraftStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PayloadKind tags the flight payload variant.
type PayloadKind string

// Payload variants.
const (
	PayloadPassenger PayloadKind = "passenger"
	PayloadCargo     PayloadKind = "cargo"
)

// Payload is the tagged variant carried by a flight: passengers booked for a
// passenger flight, or cargo weight for a cargo flight.
type Payload struct {
	Kind          PayloadKind `json:"kind"`
	Passengers    int         `json:"passengers,omitempty"`
	CargoWeightKg float64     `json:"cargo_weight_kg,omitempty"`
}

// PassengerPayload builds a passenger variant.
func PassengerPayload(booked int) Payload {
	return Payload{Kind: PayloadPassenger, Passengers: booked}
}

// CargoPayload builds a cargo variant.
func CargoPayload(weightKg float64) Payload {
	return Payload{Kind: PayloadCargo, CargoWeightKg: weightKg}
}

// IsCargo reports whether the payload is the cargo variant.
func (p Payload) IsCargo() bool { return p.Kind == PayloadCargo }

// Flight is a scheduled movement of one aircraft. AircraftID references the
// aircraft by registration; the flight never owns it.
type Flight struct {
	Number       string       `json:"number"`
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	Departure    time.Time    `json:"departure"`
	Arrival      time.Time    `json:"arrival"`
	Status       FlightStatus `json:"status"`
	AircraftID   string       `json:"aircraft_id"`
	Payload      Payload      `json:"payload"`
	DelayReasons []string     `json:"delay_reasons"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Overlaps applies the half-open window test against another window.
func (f Flight) Overlaps(departure, arrival time.Time) bool {
	return f.Departure.Before(arrival) && f.Arrival.After(departure)
}

// Propagation records that Source pushed Target back by Applied in total.
// One record exists per (Source, Target) pair.
type Propagation struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Target     string        `json:"target"`
	Applied    time.Duration `json:"applied"`
	Reason     string        `json:"reason"`
	RecordedAt time.Time     `json:"recorded_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// PropagationKey identifies a propagation record.
type PropagationKey struct {
	Source string
	Target string
}

// Key returns the pair key for the record.
func (p Propagation) Key() PropagationKey {
	return PropagationKey{Source: p.Source, Target: p.Target}
}

// Mentions reports whether the record refers to the flight number.
func (p Propagation) Mentions(flight string) bool {
	return p.Source == flight || p.Target == flight
}

// SplitDelayReason splits a reason on the first ": " into category and
// detail. Reasons without the separator are "Uncategorized".
func SplitDelayReason(reason string) (category, detail string) {
	if before, after, ok := strings.Cut(reason, ": "); ok {
		return before, after
	}
	return "Uncategorized", reason
}
