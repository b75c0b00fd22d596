package core

import (
	"context"
	"errors"
	"flightcore/pkg/domain"
	"testing"
	"time"
)

var (
	testNow = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	day     = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
)

// at returns the test day at hh:mm UTC.
func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return testNow })
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustAddAircraft(t *testing.T, svc *Service, registration string, capacity int) Aircraft {
	t.Helper()
	a, _, err := svc.AddAircraft(context.Background(), Aircraft{
		Registration: registration,
		Brand:        "Airbus",
		Model:        "A320",
		Capacity:     capacity,
	})
	if err != nil {
		t.Fatalf("add aircraft %s: %v", registration, err)
	}
	return a
}

func mustAddFlight(t *testing.T, svc *Service, number, registration string, departure, arrival time.Time) Flight {
	t.Helper()
	f, _, err := svc.AddFlight(context.Background(), Flight{
		Number:      number,
		Origin:      "KUALA LUMPUR",
		Destination: "PENANG",
		Departure:   departure,
		Arrival:     arrival,
		AircraftID:  registration,
		Payload:     domain.PassengerPayload(100),
	})
	if err != nil {
		t.Fatalf("add flight %s: %v", number, err)
	}
	return f
}

func mustFlight(t *testing.T, svc *Service, number string) Flight {
	t.Helper()
	f, err := svc.GetFlight(context.Background(), number)
	if err != nil {
		t.Fatalf("get flight %s: %v", number, err)
	}
	return f
}

func mustAircraft(t *testing.T, svc *Service, registration string) Aircraft {
	t.Helper()
	a, err := svc.GetAircraft(context.Background(), registration)
	if err != nil {
		t.Fatalf("get aircraft %s: %v", registration, err)
	}
	return a
}

func expectCause(t *testing.T, err error, cause domain.BlockCause) domain.BlockedError {
	t.Helper()
	var blocked domain.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError with cause %s, got %v", cause, err)
	}
	if blocked.Cause != cause {
		t.Fatalf("expected cause %s, got %s (%v)", cause, blocked.Cause, err)
	}
	if !errors.Is(err, domain.ErrBlocked) {
		t.Fatalf("expected error to match ErrBlocked")
	}
	return blocked
}

func assertNoOverlap(t *testing.T, flights []Flight) {
	t.Helper()
	for i, f := range flights {
		if f.Status == FlightCancelled {
			continue
		}
		for _, other := range flights[i+1:] {
			if other.Status == FlightCancelled {
				continue
			}
			if f.Overlaps(other.Departure, other.Arrival) {
				t.Fatalf("flights %s and %s overlap: %v-%v vs %v-%v", f.Number, other.Number, f.Departure, f.Arrival, other.Departure, other.Arrival)
			}
		}
	}
}

type recordingLogger struct {
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *recordingLogger) add(level, msg string, args []any) {
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) has(level, msg string) bool {
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}
