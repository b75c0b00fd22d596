// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while keeping aircraft, flights and propagation records
// in normalized tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"flightcore/internal/infra/persistence/memory"
	"flightcore/pkg/domain"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/flightcore?sslmode=disable"
)

// schemaDDL creates the normalized tables. Statements are separated by ";".
const schemaDDL = `
CREATE TABLE IF NOT EXISTS aircraft (
	registration TEXT PRIMARY KEY,
	brand TEXT NOT NULL,
	model TEXT NOT NULL,
	capacity INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS flights (
	number TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	destination TEXT NOT NULL,
	departure TIMESTAMPTZ NOT NULL,
	arrival TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	aircraft_id TEXT NOT NULL REFERENCES aircraft(registration),
	payload_kind TEXT NOT NULL,
	passengers INTEGER NOT NULL,
	cargo_weight_kg DOUBLE PRECISION NOT NULL,
	delay_reasons JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS propagations (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	applied_ns BIGINT NOT NULL,
	reason TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (source, target)
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It applies the schema and hydrates the in-memory store from the existing rows.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applyDDLStatements(ctx, db, schemaDDL); err != nil {
		return nil, err
	}
	snapshot, err := loadNormalized(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies the provided function within a transaction, then persists to Postgres if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := persistNormalized(ctx, s.db, s.ExportState()); err != nil {
		return res, err
	}
	return res, nil
}

// Restore replaces the state with the snapshot and rewrites the tables.
func (s *Store) Restore(ctx context.Context, snapshot memory.Snapshot) error {
	s.ImportState(snapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	return persistNormalized(ctx, s.db, s.ExportState())
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func applyDDLStatements(ctx context.Context, db execer, ddl string) error {
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func persistNormalized(ctx context.Context, db *sql.DB, snapshot memory.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE propagations, flights, aircraft`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := insertAircraft(ctx, tx, snapshot.Aircraft); err != nil {
		return err
	}
	if err := insertFlights(ctx, tx, snapshot.Flights); err != nil {
		return err
	}
	if err := insertPropagations(ctx, tx, snapshot.Propagations); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func insertAircraft(ctx context.Context, exec execer, aircraft map[string]domain.Aircraft) error {
	for _, a := range aircraft {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO aircraft (registration, brand, model, capacity, status, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			a.Registration, a.Brand, a.Model, a.Capacity, string(a.Status), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert aircraft %s: %w", a.Registration, err)
		}
	}
	return nil
}

func insertFlights(ctx context.Context, exec execer, flights map[string]domain.Flight) error {
	for _, f := range flights {
		if f.AircraftID == "" {
			return fmt.Errorf("insert flight %s: aircraft reference required", f.Number)
		}
		reasons := f.DelayReasons
		if reasons == nil {
			reasons = []string{}
		}
		encoded, err := json.Marshal(reasons)
		if err != nil {
			return fmt.Errorf("encode delay reasons %s: %w", f.Number, err)
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO flights (number, origin, destination, departure, arrival, status, aircraft_id, payload_kind, passengers, cargo_weight_kg, delay_reasons, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			f.Number, f.Origin, f.Destination, f.Departure.UTC(), f.Arrival.UTC(), string(f.Status), f.AircraftID,
			string(f.Payload.Kind), f.Payload.Passengers, f.Payload.CargoWeightKg, string(encoded),
			f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert flight %s: %w", f.Number, err)
		}
	}
	return nil
}

func insertPropagations(ctx context.Context, exec execer, records map[string]domain.Propagation) error {
	for _, p := range records {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO propagations (id, source, target, applied_ns, reason, recorded_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.Source, p.Target, int64(p.Applied), p.Reason, p.RecordedAt.UTC(), p.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert propagation %s: %w", p.ID, err)
		}
	}
	return nil
}

func loadNormalized(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{
		Aircraft:     map[string]domain.Aircraft{},
		Flights:      map[string]domain.Flight{},
		Propagations: map[string]domain.Propagation{},
	}
	if err := loadAircraft(ctx, db, snapshot.Aircraft); err != nil {
		return memory.Snapshot{}, err
	}
	if err := loadFlights(ctx, db, snapshot.Flights); err != nil {
		return memory.Snapshot{}, err
	}
	if err := loadPropagations(ctx, db, snapshot.Propagations); err != nil {
		return memory.Snapshot{}, err
	}
	return snapshot, nil
}

func loadAircraft(ctx context.Context, db *sql.DB, out map[string]domain.Aircraft) error {
	rows, err := db.QueryContext(ctx, `SELECT registration, brand, model, capacity, status, created_at, updated_at FROM aircraft`)
	if err != nil {
		return fmt.Errorf("select aircraft: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var a domain.Aircraft
		var status string
		if err := rows.Scan(&a.Registration, &a.Brand, &a.Model, &a.Capacity, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("scan aircraft: %w", err)
		}
		a.Status = domain.ParseAircraftStatus(status)
		a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
		out[a.Registration] = a
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate aircraft: %w", err)
	}
	return nil
}

func loadFlights(ctx context.Context, db *sql.DB, out map[string]domain.Flight) error {
	rows, err := db.QueryContext(ctx, `SELECT number, origin, destination, departure, arrival, status, aircraft_id, payload_kind, passengers, cargo_weight_kg, delay_reasons, created_at, updated_at FROM flights`)
	if err != nil {
		return fmt.Errorf("select flights: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var f domain.Flight
		var status, kind string
		var reasons []byte
		if err := rows.Scan(&f.Number, &f.Origin, &f.Destination, &f.Departure, &f.Arrival, &status, &f.AircraftID,
			&kind, &f.Payload.Passengers, &f.Payload.CargoWeightKg, &reasons, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return fmt.Errorf("scan flight: %w", err)
		}
		f.Status = domain.FlightStatus(status)
		f.Payload.Kind = domain.PayloadKind(kind)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &f.DelayReasons); err != nil {
				return fmt.Errorf("decode delay reasons %s: %w", f.Number, err)
			}
		}
		f.Departure, f.Arrival = f.Departure.UTC(), f.Arrival.UTC()
		f.CreatedAt, f.UpdatedAt = f.CreatedAt.UTC(), f.UpdatedAt.UTC()
		out[f.Number] = f
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate flights: %w", err)
	}
	return nil
}

func loadPropagations(ctx context.Context, db *sql.DB, out map[string]domain.Propagation) error {
	rows, err := db.QueryContext(ctx, `SELECT id, source, target, applied_ns, reason, recorded_at, updated_at FROM propagations`)
	if err != nil {
		return fmt.Errorf("select propagations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p domain.Propagation
		var applied int64
		if err := rows.Scan(&p.ID, &p.Source, &p.Target, &applied, &p.Reason, &p.RecordedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan propagation: %w", err)
		}
		p.Applied = time.Duration(applied)
		p.RecordedAt, p.UpdatedAt = p.RecordedAt.UTC(), p.UpdatedAt.UTC()
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate propagations: %w", err)
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
