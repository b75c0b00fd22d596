package memory

import (
	"context"
	"errors"
	"flightcore/pkg/domain"
	"testing"
	"time"
)

var base = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAircraft(domain.Aircraft{Registration: "9M-ABC", Brand: "Airbus", Model: "A320", Capacity: 180}); err != nil {
			return err
		}
		for i, number := range []string{"MH-200", "MH-100"} {
			dep := base.Add(time.Duration(i) * 3 * time.Hour)
			if _, err := tx.CreateFlight(domain.Flight{
				Number:      number,
				Origin:      "BATU PAHAT",
				Destination: "PENANG",
				Departure:   dep,
				Arrival:     dep.Add(2 * time.Hour),
				Status:      domain.FlightScheduled,
				AircraftID:  "9M-ABC",
				Payload:     domain.PassengerPayload(100),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	seed(t, store)

	aircraft, ok := store.GetAircraft("9M-ABC")
	if !ok {
		t.Fatalf("expected aircraft")
	}
	if aircraft.Status != domain.AircraftAvailable {
		t.Fatalf("expected default status Available, got %s", aircraft.Status)
	}
	flights := store.ListFlights()
	if len(flights) != 2 || flights[0].Number != "MH-100" || flights[1].Number != "MH-200" {
		t.Fatalf("expected flights sorted by number, got %+v", flights)
	}
	if flights[0].DelayReasons == nil {
		t.Fatalf("expected delay reasons initialised")
	}

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListFlights()) != 0 || len(store.ListAircraft()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListFlights()) != 2 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	store := NewStore(nil)
	seed(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAircraft(domain.Aircraft{Registration: "9M-ABC", Brand: "Boeing", Model: "B737"})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicate) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate validation error, got %v", err)
	}
	aircraft, _ := store.GetAircraft("9M-ABC")
	if aircraft.Brand != "Airbus" {
		t.Fatalf("expected original aircraft kept, got %+v", aircraft)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateFlight(domain.Flight{Number: "MH-100", AircraftID: "9M-ABC"})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate flight error, got %v", err)
	}
}

func TestTransactionErrorDiscardsClone(t *testing.T) {
	store := NewStore(nil)
	seed(t, store)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateFlight("MH-100", func(f *domain.Flight) error {
			f.Status = domain.FlightCancelled
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	flight, _ := store.GetFlight("MH-100")
	if flight.Status != domain.FlightScheduled {
		t.Fatalf("expected rollback, got %s", flight.Status)
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateAircraft(domain.Aircraft{Registration: "9M-XYZ", Brand: "Airbus", Model: "A330"})
		return e
	})
	if !errors.Is(err, domain.ErrBlocked) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) || !violation.Result.HasBlocking() {
		t.Fatalf("expected RuleViolationError, got %T", err)
	}
	if len(store.ListAircraft()) != 0 {
		t.Fatalf("expected blocked transaction discarded")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "always"}}})
	return res, nil
}

func TestDeleteAircraftReferencedIsBlocked(t *testing.T) {
	store := NewStore(nil)
	seed(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteAircraft("9M-ABC")
	})
	cause, ok := domain.BlockCauseOf(err)
	if !ok || cause != domain.CauseAircraftReferenced {
		t.Fatalf("expected aircraft_referenced, got %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.DeleteFlight("MH-100"); err != nil {
			return err
		}
		if err := tx.DeleteFlight("MH-200"); err != nil {
			return err
		}
		return tx.DeleteAircraft("9M-ABC")
	})
	if err != nil {
		t.Fatalf("delete unreferenced aircraft: %v", err)
	}
	if _, ok := store.GetAircraft("9M-ABC"); ok {
		t.Fatalf("expected aircraft removed")
	}
}

func TestMissingEntitiesReturnNotFound(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	checks := []func(domain.Transaction) error{
		func(tx domain.Transaction) error { return tx.DeleteAircraft("9M-NOP") },
		func(tx domain.Transaction) error { return tx.DeleteFlight("MH-999") },
		func(tx domain.Transaction) error {
			_, err := tx.UpdateAircraft("9M-NOP", func(*domain.Aircraft) error { return nil })
			return err
		},
		func(tx domain.Transaction) error {
			_, err := tx.UpdateFlight("MH-999", func(*domain.Flight) error { return nil })
			return err
		},
	}
	for i, check := range checks {
		_, err := store.RunInTransaction(ctx, check)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("check %d: expected not found, got %v", i, err)
		}
	}
}

func TestPropagationUpsertAndCleanup(t *testing.T) {
	store := NewStore(nil)
	seed(t, store)
	ctx := context.Background()
	var firstID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.PutPropagation(domain.Propagation{Source: "MH-100", Target: "MH-200", Applied: 30 * time.Minute})
		if err != nil {
			return err
		}
		firstID = p.ID
		p.Applied += 15 * time.Minute
		updated, err := tx.PutPropagation(p)
		if err != nil {
			return err
		}
		if updated.ID != firstID {
			t.Fatalf("expected record id preserved")
		}
		if _, err := tx.PutPropagation(domain.Propagation{Source: "MH-100", Target: "MH-100"}); err == nil {
			t.Fatalf("expected self propagation rejected")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("put propagation: %v", err)
	}
	records := store.ListPropagations()
	if len(records) != 1 || records[0].Applied != 45*time.Minute {
		t.Fatalf("expected single accumulated record, got %+v", records)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteFlight("MH-200")
	})
	if err != nil {
		t.Fatalf("delete flight: %v", err)
	}
	if len(store.ListPropagations()) != 0 {
		t.Fatalf("expected propagation records dropped with flight")
	}
}

func TestViewFlightsForAircraftOrderedByDeparture(t *testing.T) {
	store := NewStore(nil)
	seed(t, store)
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		flights := view.FlightsForAircraft("9M-ABC")
		if len(flights) != 2 || flights[0].Number != "MH-200" {
			t.Fatalf("expected departure order, got %+v", flights)
		}
		flights[0].DelayReasons = append(flights[0].DelayReasons, "mutated")
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	flight, _ := store.GetFlight("MH-200")
	if len(flight.DelayReasons) != 0 {
		t.Fatalf("expected view mutation isolated, got %v", flight.DelayReasons)
	}
}

func TestMigrateSnapshotNormalizesLegacyValues(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{
		Aircraft: map[string]Aircraft{"9M-ABC": {Brand: "Airbus", Status: "In Flight"}},
		Flights:  map[string]Flight{"MH-100": {AircraftID: "9M-ABC"}},
		Propagations: map[string]Propagation{
			"bad": {Source: "MH-100"},
		},
	})
	aircraft, ok := store.GetAircraft("9M-ABC")
	if !ok || aircraft.Registration != "9M-ABC" || aircraft.Status != domain.AircraftBusy {
		t.Fatalf("expected normalized aircraft, got %+v", aircraft)
	}
	flight, _ := store.GetFlight("MH-100")
	if flight.Number != "MH-100" || flight.Payload.Kind != domain.PayloadPassenger || flight.DelayReasons == nil {
		t.Fatalf("expected normalized flight, got %+v", flight)
	}
	if len(store.ListPropagations()) != 0 {
		t.Fatalf("expected incomplete propagation dropped")
	}
}

func TestSetNowFuncStampsRecords(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	store.SetNowFunc(nil)
	seed(t, store)
	aircraft, _ := store.GetAircraft("9M-ABC")
	if !aircraft.CreatedAt.Equal(fixed) || !aircraft.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected fixed timestamps, got %+v", aircraft)
	}
}
