package postgres

import (
	"context"
	"flightcore/pkg/domain"
	"fmt"
	"os"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestIntegrationRoundTrip persists and reloads state through a real Postgres.
func TestIntegrationRoundTrip(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "flightcore",
			"POSTGRES_PASSWORD": "flightcore",
			"POSTGRES_DB":       "flightcore",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://flightcore:flightcore@%s:%s/flightcore?sslmode=disable", host, port.Port())

	store, err := NewStore(dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	dep := time.Date(2024, 12, 1, 10, 30, 0, 0, time.UTC)
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateAircraft(domain.Aircraft{Registration: "9M-ABC", Brand: "Airbus", Model: "A320", Capacity: 180}); err != nil {
			return err
		}
		_, err := tx.CreateFlight(domain.Flight{
			Number: "MH-100", Origin: "BATU PAHAT", Destination: "PENANG",
			Departure: dep, Arrival: dep.Add(2 * time.Hour),
			Status: domain.FlightScheduled, AircraftID: "9M-ABC",
			Payload: domain.PassengerPayload(100),
		})
		return err
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	flight, ok := reloaded.GetFlight("MH-100")
	if !ok || !flight.Departure.Equal(dep) || flight.Payload.Passengers != 100 {
		t.Fatalf("unexpected reloaded flight %+v", flight)
	}
}
