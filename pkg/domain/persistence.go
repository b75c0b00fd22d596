package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateAircraft(Aircraft) (Aircraft, error)
	UpdateAircraft(registration string, mutator func(*Aircraft) error) (Aircraft, error)
	DeleteAircraft(registration string) error
	CreateFlight(Flight) (Flight, error)
	UpdateFlight(number string, mutator func(*Flight) error) (Flight, error)
	DeleteFlight(number string) error
	FindAircraft(registration string) (Aircraft, bool)
	FindFlight(number string) (Flight, bool)
	FindPropagation(source, target string) (Propagation, bool)
	PutPropagation(Propagation) (Propagation, error)
	DeletePropagations(flight string) int
}

// TransactionView provides read-only access to snapshot data for rules and
// query helpers.
type TransactionView interface {
	RuleView
	ListPropagations() []Propagation
	FindPropagation(source, target string) (Propagation, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAircraft(registration string) (Aircraft, bool)
	ListAircraft() []Aircraft
	GetFlight(number string) (Flight, bool)
	ListFlights() []Flight
	ListPropagations() []Propagation
}
