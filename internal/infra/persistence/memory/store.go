// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"flightcore/pkg/domain"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brunoga/deep"
	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Aircraft aliases domain.Aircraft for in-memory persistence operations.
	Aircraft = domain.Aircraft
	// Flight aliases domain.Flight.
	Flight = domain.Flight
	// Propagation aliases domain.Propagation.
	Propagation = domain.Propagation
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

func mustApply(label string, err error) {
	if err != nil {
		panic(fmt.Errorf("memory store %s: %w", label, err))
	}
}

type memoryState struct {
	aircraft     map[string]Aircraft
	flights      map[string]Flight
	propagations map[string]Propagation
}

// Snapshot captures a point-in-time clone of the store state. Propagation
// records are keyed by record ID.
type Snapshot struct {
	Aircraft     map[string]Aircraft    `json:"aircraft" msgpack:"aircraft"`
	Flights      map[string]Flight      `json:"flights" msgpack:"flights"`
	Propagations map[string]Propagation `json:"propagations" msgpack:"propagations"`
}

func newMemoryState() memoryState {
	return memoryState{
		aircraft:     make(map[string]Aircraft),
		flights:      make(map[string]Flight),
		propagations: make(map[string]Propagation),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Aircraft:     cloned.aircraft,
		Flights:      cloned.flights,
		Propagations: cloned.propagations,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	src := memoryState{aircraft: s.Aircraft, flights: s.Flights, propagations: s.Propagations}
	return src.clone()
}

// migrateSnapshot fills missing buckets and normalizes legacy values so that
// snapshots written by older builds load cleanly.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	out := Snapshot{
		Aircraft:     make(map[string]Aircraft, len(snapshot.Aircraft)),
		Flights:      make(map[string]Flight, len(snapshot.Flights)),
		Propagations: make(map[string]Propagation, len(snapshot.Propagations)),
	}
	for id, a := range snapshot.Aircraft {
		a.Registration = id
		a.Status = domain.ParseAircraftStatus(string(a.Status))
		a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
		out.Aircraft[id] = a
	}
	for id, f := range snapshot.Flights {
		f = cloneFlight(f)
		f.Number = id
		f.Departure, f.Arrival = f.Departure.UTC(), f.Arrival.UTC()
		f.CreatedAt, f.UpdatedAt = f.CreatedAt.UTC(), f.UpdatedAt.UTC()
		if f.DelayReasons == nil {
			f.DelayReasons = []string{}
		}
		if f.Payload.Kind == "" {
			f.Payload.Kind = domain.PayloadPassenger
		}
		out.Flights[id] = f
	}
	for id, p := range snapshot.Propagations {
		if p.Source == "" || p.Target == "" {
			continue
		}
		p.ID = id
		p.RecordedAt, p.UpdatedAt = p.RecordedAt.UTC(), p.UpdatedAt.UTC()
		out.Propagations[id] = p
	}
	return out
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.aircraft {
		cloned.aircraft[k] = v
	}
	for k, v := range s.flights {
		cloned.flights[k] = cloneFlight(v)
	}
	for k, v := range s.propagations {
		cloned.propagations[k] = v
	}
	return cloned
}

func cloneFlight(f Flight) Flight {
	return deep.MustCopy(f)
}

func payloadOf[T any](value T) domain.ChangePayload {
	payload, err := domain.NewChangePayloadFromValue(value)
	mustApply("encode change payload", err)
	return payload
}

func sortedAircraft(m map[string]Aircraft) []Aircraft {
	out := make([]Aircraft, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Registration < out[j].Registration })
	return out
}

func sortedFlights(m map[string]Flight) []Flight {
	out := make([]Flight, 0, len(m))
	for _, f := range m {
		out = append(out, cloneFlight(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func sortedPropagations(m map[string]Propagation) []Propagation {
	out := make([]Propagation, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// flightsForAircraft returns the flights referencing registration ordered by
// departure, ties broken by flight number.
func flightsForAircraft(m map[string]Flight, registration string) []Flight {
	var out []Flight
	for _, f := range m {
		if f.AircraftID == registration {
			out = append(out, cloneFlight(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Departure.Equal(out[j].Departure) {
			return out[i].Departure.Before(out[j].Departure)
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func findPropagation(m map[string]Propagation, source, target string) (Propagation, bool) {
	for _, p := range m {
		if p.Source == source && p.Target == target {
			return p, true
		}
	}
	return Propagation{}, false
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// Restore replaces the store state with the snapshot. Durable stores
// override it to persist the restored state.
func (s *Store) Restore(_ context.Context, snapshot Snapshot) error {
	s.ImportState(snapshot)
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider used for record timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListAircraft() []Aircraft { return sortedAircraft(v.state.aircraft) }

func (v transactionView) ListFlights() []Flight { return sortedFlights(v.state.flights) }

func (v transactionView) ListPropagations() []Propagation {
	return sortedPropagations(v.state.propagations)
}

func (v transactionView) FindAircraft(registration string) (Aircraft, bool) {
	a, ok := v.state.aircraft[registration]
	return a, ok
}

func (v transactionView) FindFlight(number string) (Flight, bool) {
	f, ok := v.state.flights[number]
	if !ok {
		return Flight{}, false
	}
	return cloneFlight(f), true
}

func (v transactionView) FlightsForAircraft(registration string) []Flight {
	return flightsForAircraft(v.state.flights, registration)
}

func (v transactionView) FindPropagation(source, target string) (Propagation, bool) {
	return findPropagation(v.state.propagations, source, target)
}

// RunInTransaction executes fn against a cloned state under the store-wide
// write lock. Rules are evaluated over the resulting state and recorded
// changes; blocking violations discard the clone.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindAircraft exposes aircraft lookup within the transaction scope.
func (tx *transaction) FindAircraft(registration string) (Aircraft, bool) {
	a, ok := tx.state.aircraft[registration]
	return a, ok
}

// FindFlight exposes flight lookup within the transaction scope.
func (tx *transaction) FindFlight(number string) (Flight, bool) {
	f, ok := tx.state.flights[number]
	if !ok {
		return Flight{}, false
	}
	return cloneFlight(f), true
}

// CreateAircraft stores a new aircraft. Existing registrations are never overwritten.
func (tx *transaction) CreateAircraft(a Aircraft) (Aircraft, error) {
	if a.Registration == "" {
		return Aircraft{}, domain.ValidationError{Field: "registration", Message: "required"}
	}
	if _, exists := tx.state.aircraft[a.Registration]; exists {
		return Aircraft{}, domain.DuplicateError{Entity: domain.EntityAircraft, ID: a.Registration}
	}
	if a.Status == "" {
		a.Status = domain.AircraftAvailable
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.aircraft[a.Registration] = a
	tx.recordChange(Change{Entity: domain.EntityAircraft, Action: domain.ActionCreate, After: payloadOf(a)})
	return a, nil
}

// UpdateAircraft mutates an aircraft using the provided mutator function.
func (tx *transaction) UpdateAircraft(registration string, mutator func(*Aircraft) error) (Aircraft, error) {
	current, ok := tx.state.aircraft[registration]
	if !ok {
		return Aircraft{}, domain.NotFoundError{Entity: domain.EntityAircraft, ID: registration}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Aircraft{}, err
	}
	current.Registration = registration
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.aircraft[registration] = current
	tx.recordChange(Change{Entity: domain.EntityAircraft, Action: domain.ActionUpdate, Before: payloadOf(before), After: payloadOf(current)})
	return current, nil
}

// DeleteAircraft removes an aircraft that no flight references.
func (tx *transaction) DeleteAircraft(registration string) error {
	current, ok := tx.state.aircraft[registration]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAircraft, ID: registration}
	}
	if refs := flightsForAircraft(tx.state.flights, registration); len(refs) > 0 {
		return domain.BlockedError{
			Flight:      registration,
			Cause:       domain.CauseAircraftReferenced,
			Conflicting: refs[0].Number,
			Detail:      fmt.Sprintf("aircraft %s is still referenced by %d flight(s)", registration, len(refs)),
		}
	}
	delete(tx.state.aircraft, registration)
	tx.recordChange(Change{Entity: domain.EntityAircraft, Action: domain.ActionDelete, Before: payloadOf(current)})
	return nil
}

// CreateFlight stores a new flight. Existing flight numbers are never overwritten.
func (tx *transaction) CreateFlight(f Flight) (Flight, error) {
	if f.Number == "" {
		return Flight{}, domain.ValidationError{Field: "number", Message: "required"}
	}
	if _, exists := tx.state.flights[f.Number]; exists {
		return Flight{}, domain.DuplicateError{Entity: domain.EntityFlight, ID: f.Number}
	}
	if f.DelayReasons == nil {
		f.DelayReasons = []string{}
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.flights[f.Number] = cloneFlight(f)
	tx.recordChange(Change{Entity: domain.EntityFlight, Action: domain.ActionCreate, After: payloadOf(f)})
	return cloneFlight(f), nil
}

// UpdateFlight mutates a flight using the provided mutator function.
func (tx *transaction) UpdateFlight(number string, mutator func(*Flight) error) (Flight, error) {
	current, ok := tx.state.flights[number]
	if !ok {
		return Flight{}, domain.NotFoundError{Entity: domain.EntityFlight, ID: number}
	}
	before := cloneFlight(current)
	current = cloneFlight(current)
	if err := mutator(&current); err != nil {
		return Flight{}, err
	}
	current.Number = number
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if current.DelayReasons == nil {
		current.DelayReasons = []string{}
	}
	tx.state.flights[number] = cloneFlight(current)
	tx.recordChange(Change{Entity: domain.EntityFlight, Action: domain.ActionUpdate, Before: payloadOf(before), After: payloadOf(current)})
	return cloneFlight(current), nil
}

// DeleteFlight removes a flight and every propagation record mentioning it.
func (tx *transaction) DeleteFlight(number string) error {
	current, ok := tx.state.flights[number]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityFlight, ID: number}
	}
	delete(tx.state.flights, number)
	tx.recordChange(Change{Entity: domain.EntityFlight, Action: domain.ActionDelete, Before: payloadOf(current)})
	tx.DeletePropagations(number)
	return nil
}

// FindPropagation looks up the record for a (source, target) pair.
func (tx *transaction) FindPropagation(source, target string) (Propagation, bool) {
	return findPropagation(tx.state.propagations, source, target)
}

// PutPropagation creates or replaces the record for the pair. The record ID
// and RecordedAt of an existing pair are preserved.
func (tx *transaction) PutPropagation(p Propagation) (Propagation, error) {
	if p.Source == "" || p.Target == "" {
		return Propagation{}, domain.ValidationError{Field: "propagation", Message: "source and target required"}
	}
	if p.Source == p.Target {
		return Propagation{}, domain.ValidationError{Field: "propagation", Message: "source and target must differ"}
	}
	if existing, ok := findPropagation(tx.state.propagations, p.Source, p.Target); ok {
		before := existing
		p.ID = existing.ID
		p.RecordedAt = existing.RecordedAt
		p.UpdatedAt = tx.now
		tx.state.propagations[p.ID] = p
		tx.recordChange(Change{Entity: domain.EntityPropagation, Action: domain.ActionUpdate, Before: payloadOf(before), After: payloadOf(p)})
		return p, nil
	}
	p.ID = tx.store.newID()
	p.RecordedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.propagations[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityPropagation, Action: domain.ActionCreate, After: payloadOf(p)})
	return p, nil
}

// DeletePropagations drops every record that mentions the flight and returns
// how many were removed.
func (tx *transaction) DeletePropagations(flight string) int {
	removed := 0
	for id, p := range tx.state.propagations {
		if !p.Mentions(flight) {
			continue
		}
		delete(tx.state.propagations, id)
		tx.recordChange(Change{Entity: domain.EntityPropagation, Action: domain.ActionDelete, Before: payloadOf(p)})
		removed++
	}
	return removed
}

// Read helpers ---------------------------------------------------------------

// GetAircraft retrieves an aircraft by registration from committed state.
func (s *Store) GetAircraft(registration string) (Aircraft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.aircraft[registration]
	return a, ok
}

// ListAircraft returns all aircraft from committed state ordered by registration.
func (s *Store) ListAircraft() []Aircraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAircraft(s.state.aircraft)
}

// GetFlight retrieves a flight by number from committed state.
func (s *Store) GetFlight(number string) (Flight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.flights[number]
	if !ok {
		return Flight{}, false
	}
	return cloneFlight(f), true
}

// ListFlights returns all flights from committed state ordered by number.
func (s *Store) ListFlights() []Flight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedFlights(s.state.flights)
}

// ListPropagations returns all propagation records ordered by (source, target).
func (s *Store) ListPropagations() []Propagation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPropagations(s.state.propagations)
}
