package sqlite

import (
	"context"
	"errors"
	"flightcore/pkg/domain"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	dep := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, e := tx.CreateAircraft(domain.Aircraft{Registration: "9M-ABC", Brand: "Airbus", Model: "A320", Capacity: 180}); e != nil {
			return e
		}
		for _, number := range []string{"MH-100", "MH-200"} {
			if _, e := tx.CreateFlight(domain.Flight{Number: number, AircraftID: "9M-ABC", Departure: dep, Arrival: dep.Add(2 * time.Hour), Status: domain.FlightScheduled, Payload: domain.CargoPayload(1250.5)}); e != nil {
				return e
			}
		}
		_, e := tx.PutPropagation(domain.Propagation{Source: "MH-100", Target: "MH-200", Applied: time.Hour})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	if got := len(reloaded.ListFlights()); got != 2 {
		t.Fatalf("expected 2 flights, got %d", got)
	}
	flight, ok := reloaded.GetFlight("MH-100")
	if !ok || !flight.Payload.IsCargo() || flight.Payload.CargoWeightKg != 1250.5 || !flight.Departure.Equal(dep) {
		t.Fatalf("unexpected reloaded flight %+v", flight)
	}
	records := reloaded.ListPropagations()
	if len(records) != 1 || records[0].Applied != time.Hour {
		t.Fatalf("expected propagation record restored, got %+v", records)
	}
}

func TestSQLiteStoreSkipsPersistOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	boom := errors.New("boom")
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, e := tx.CreateAircraft(domain.Aircraft{Registration: "9M-ABC", Brand: "Airbus", Model: "A320"}); e != nil {
			return e
		}
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count state rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no snapshot rows, got %d", count)
	}
}
