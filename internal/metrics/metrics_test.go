package metrics

import (
	"context"
	"flightcore/internal/core"
	"flightcore/pkg/domain"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "add_flight", true, 20*time.Millisecond)
	rec.Observe(ctx, "add_flight", false, 5*time.Millisecond)
	rec.Observe(ctx, "add_flight", true, time.Millisecond)

	expected := `
# HELP flightcore_operations_total Service operations by name and outcome
# TYPE flightcore_operations_total counter
flightcore_operations_total{operation="add_flight",success="false"} 1
flightcore_operations_total{operation="add_flight",success="true"} 2
`
	if err := testutil.CollectAndCompare(rec.operations, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(rec.latency); c != 1 {
		t.Errorf("expected one latency series, got %d", c)
	}
}

func TestRecorderObserveCascade(t *testing.T) {
	rec, err := NewRecorder(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.ObserveCascade(ctx, "9M-AAA", 2, 1)
	rec.ObserveCascade(ctx, "9M-AAA", 1, 0)
	rec.ObserveCascade(ctx, "9M-BBB", 0, 0)

	if got := testutil.ToFloat64(rec.shifts.WithLabelValues("9M-AAA")); got != 3 {
		t.Errorf("expected 3 shifts, got %v", got)
	}
	if got := testutil.ToFloat64(rec.unresolved.WithLabelValues("9M-AAA")); got != 0 {
		t.Errorf("expected unresolved gauge reset, got %v", got)
	}
	if c := testutil.CollectAndCount(rec.shifts); c != 1 {
		t.Errorf("expected no shift series for idle aircraft, got %d", c)
	}
}

func TestNewRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	first.Observe(context.Background(), "list_flights", true, time.Millisecond)
	if got := testutil.ToFloat64(second.operations.WithLabelValues("list_flights", "true")); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestServiceFeedsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	day := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(),
		core.WithMetricsRecorder(rec),
		core.WithClock(core.ClockFunc(func() time.Time { return day })))
	ctx := context.Background()
	if _, _, err := svc.AddAircraft(ctx, domain.Aircraft{Registration: "9M-AAA", Brand: "Airbus", Model: "A320", Capacity: 180}); err != nil {
		t.Fatalf("add aircraft: %v", err)
	}
	for _, f := range []domain.Flight{
		{Number: "MH-100", Origin: "IPOH", Destination: "PENANG", Departure: day.Add(10 * time.Hour), Arrival: day.Add(12 * time.Hour), AircraftID: "9M-AAA"},
		{Number: "MH-101", Origin: "PENANG", Destination: "IPOH", Departure: day.Add(12*time.Hour + 30*time.Minute), Arrival: day.Add(14 * time.Hour), AircraftID: "9M-AAA"},
	} {
		if _, _, err := svc.AddFlight(ctx, f); err != nil {
			t.Fatalf("add flight: %v", err)
		}
	}
	if _, _, err := svc.ManualDelay(ctx, "MH-100", "Operational: Crew"); err != nil {
		t.Fatalf("delay: %v", err)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("add_flight", "true")); got != 2 {
		t.Fatalf("expected two add_flight observations, got %v", got)
	}
	if got := testutil.ToFloat64(rec.shifts.WithLabelValues("9M-AAA")); got != 1 {
		t.Fatalf("expected one cascade shift, got %v", got)
	}

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `flightcore_operations_total{operation="manual_delay",success="true"} 1`) {
		t.Fatalf("manual_delay sample missing from scrape:\n%s", body)
	}
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.Address != ":9464" || cfg.Path != "/metrics" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := (Config{Enabled: true, Path: "metrics"}).Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
