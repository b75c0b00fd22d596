package postgres

import (
	"context"
	"database/sql"
	"errors"
	"flightcore/internal/infra/persistence/memory"
	"flightcore/internal/infra/persistence/postgres/testutil"
	"flightcore/pkg/domain"
	"strings"
	"testing"
	"time"
)

var departure = time.Date(2024, 12, 1, 10, 30, 0, 0, time.UTC)

func fixtureSnapshot() memory.Snapshot {
	return memory.Snapshot{
		Aircraft: map[string]domain.Aircraft{
			"9M-ABC": {Registration: "9M-ABC", Brand: "Airbus", Model: "A320", Capacity: 180, Status: domain.AircraftBusy, CreatedAt: departure, UpdatedAt: departure},
		},
		Flights: map[string]domain.Flight{
			"MH-100": {
				Number: "MH-100", Origin: "BATU PAHAT", Destination: "PENANG",
				Departure: departure, Arrival: departure.Add(2 * time.Hour),
				Status: domain.FlightDelayed, AircraftID: "9M-ABC",
				Payload:      domain.PassengerPayload(120),
				DelayReasons: []string{"Weather Conditions: Storm"},
				CreatedAt:    departure, UpdatedAt: departure,
			},
		},
		Propagations: map[string]domain.Propagation{
			"p-1": {ID: "p-1", Source: "MH-099", Target: "MH-100", Applied: 45 * time.Minute, Reason: "Operational: Late Incoming Aircraft MH-099 (+45m0s)", RecordedAt: departure, UpdatedAt: departure},
		},
	}
}

func TestNewStoreAppliesDDLAndLoadsSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	if err := persistNormalized(ctx, db, fixtureSnapshot()); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	flight, ok := store.GetFlight("MH-100")
	if !ok {
		t.Fatalf("expected flight loaded from normalized tables")
	}
	if flight.Status != domain.FlightDelayed || flight.Payload.Passengers != 120 || len(flight.DelayReasons) != 1 {
		t.Fatalf("unexpected flight %+v", flight)
	}
	if !flight.Departure.Equal(departure) {
		t.Fatalf("expected departure %v, got %v", departure, flight.Departure)
	}
	records := store.ListPropagations()
	if len(records) != 1 || records[0].Applied != 45*time.Minute {
		t.Fatalf("expected propagation loaded, got %+v", records)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected schema DDL to be applied, got execs: %v", conn.Execs)
	}
}

func TestApplyDDLStatementsSplitsSchema(t *testing.T) {
	rec := &recordingExec{}
	if err := applyDDLStatements(context.Background(), rec, schemaDDL); err != nil {
		t.Fatalf("applyDDLStatements: %v", err)
	}
	if len(rec.execs) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(rec.execs))
	}
	rec.fail = true
	if err := applyDDLStatements(context.Background(), rec, schemaDDL); err == nil {
		t.Fatalf("expected exec error")
	}
}

func TestRunInTransactionPersistsState(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAircraft(domain.Aircraft{Registration: "9M-ABC", Brand: "Airbus", Model: "A320", Capacity: 180}); err != nil {
			return err
		}
		_, err := tx.CreateFlight(domain.Flight{Number: "MH-100", AircraftID: "9M-ABC", Departure: departure, Arrival: departure.Add(time.Hour), Status: domain.FlightScheduled, Payload: domain.CargoPayload(900)})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if len(conn.Rows("aircraft")) != 1 || len(conn.Rows("flights")) != 1 {
		t.Fatalf("expected rows persisted, got %v", conn.Tables)
	}
	if conn.Truncates != 1 {
		t.Fatalf("expected one truncate, got %d", conn.Truncates)
	}
	if store.DB() == nil {
		t.Fatalf("expected DB handle")
	}
}

func TestRunInTransactionPersistsErrorWhenExecFails(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailExec = true
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err == nil {
		t.Fatalf("expected persistence error when exec fails")
	}
}

func TestRunInTransactionStopsOnUserError(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	userErr := errors.New("user fail")
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return userErr }); !errors.Is(err, userErr) {
		t.Fatalf("expected user error to propagate, got %v", err)
	}
	if conn.Truncates != 0 {
		t.Fatalf("expected no persistence when user fn errors")
	}
}

func TestPersistNormalizedErrorPaths(t *testing.T) {
	ctx := context.Background()

	db, conn := testutil.NewStubDB()
	conn.FailBegin = true
	if err := persistNormalized(ctx, db, memory.Snapshot{}); err == nil || !strings.Contains(err.Error(), "begin") {
		t.Fatalf("expected begin error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.FailCommit = true
	if err := persistNormalized(ctx, db, memory.Snapshot{}); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.FailTables = map[string]bool{"propagations": true}
	if err := persistNormalized(ctx, db, fixtureSnapshot()); err == nil || !strings.Contains(err.Error(), "insert propagation") {
		t.Fatalf("expected propagation insert error, got %v", err)
	}

	db, _ = testutil.NewStubDB()
	orphan := fixtureSnapshot()
	f := orphan.Flights["MH-100"]
	f.AircraftID = ""
	orphan.Flights["MH-100"] = f
	if err := persistNormalized(ctx, db, orphan); err == nil || !strings.Contains(err.Error(), "aircraft reference") {
		t.Fatalf("expected aircraft reference error, got %v", err)
	}
}

func TestLoadNormalizedQueryFailures(t *testing.T) {
	for _, table := range []string{"aircraft", "flights", "propagations"} {
		db, conn := testutil.NewStubDB()
		conn.FailTables = map[string]bool{table: true}
		if _, err := loadNormalized(context.Background(), db); err == nil {
			t.Fatalf("expected %s query failure", table)
		}
	}

	db, conn := testutil.NewStubDB()
	if err := persistNormalized(context.Background(), db, fixtureSnapshot()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	conn.Tables["flights"][0]["delay_reasons"] = "{not json"
	if _, err := loadNormalized(context.Background(), db); err == nil || !strings.Contains(err.Error(), "decode delay reasons") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewStoreOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("no driver") })
	defer restore()
	if _, err := NewStore("ignored", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

type recordingExec struct {
	execs []string
	fail  bool
}

func (r *recordingExec) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	if r.fail {
		return nil, errors.New("exec fail")
	}
	r.execs = append(r.execs, query)
	return nil, nil
}

func TestRestoreRewritesTables(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Restore(context.Background(), fixtureSnapshot()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(conn.Rows("aircraft")) != 1 || len(conn.Rows("flights")) != 1 || len(conn.Rows("propagations")) != 1 {
		t.Fatalf("expected restored rows, got %v", conn.Tables)
	}
	if _, ok := store.GetFlight("MH-100"); !ok {
		t.Fatalf("expected restored flight in memory")
	}

	conn.FailExec = true
	if err := store.Restore(context.Background(), memory.Snapshot{}); err == nil {
		t.Fatalf("expected persist error")
	}
}
