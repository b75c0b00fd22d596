package core

import (
	"context"
	"flightcore/pkg/domain"
	"strings"
	"testing"
	"time"
)

func TestPropagationReasonFormatsDelta(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Minute:                "Operational: Late Incoming Aircraft MH-100 (+30m)",
		time.Hour:                       "Operational: Late Incoming Aircraft MH-100 (+1h)",
		90 * time.Minute:                "Operational: Late Incoming Aircraft MH-100 (+1h30m)",
		45 * time.Second:                "Operational: Late Incoming Aircraft MH-100 (+45s)",
		time.Hour + 15*time.Second:      "Operational: Late Incoming Aircraft MH-100 (+1h0m15s)",
		125 * time.Minute:               "Operational: Late Incoming Aircraft MH-100 (+2h5m)",
	}
	for delta, want := range cases {
		if got := PropagationReason("MH-100", delta); got != want {
			t.Fatalf("PropagationReason(%v) = %q, want %q", delta, got, want)
		}
	}
}

func TestManualDelayCascadesToNextFlight(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustAddAircraft(t, svc, "9M-AAA", 180)
	mustAddFlight(t, svc, "MH-100", "9M-AAA", at(10, 0), at(12, 0))
	mustAddFlight(t, svc, "MH-101", "9M-AAA", at(12, 30), at(14, 30))

	delayed, _, err := svc.ManualDelay(ctx, "MH-100", "Weather Conditions: Thunderstorm")
	if err != nil {
		t.Fatalf("manual delay: %v", err)
	}
	if !delayed.Departure.Equal(at(11, 0)) || !delayed.Arrival.Equal(at(13, 0)) {
		t.Fatalf("expected MH-100 at 11:00-13:00, got %v-%v", delayed.Departure, delayed.Arrival)
	}
	if delayed.Status != FlightDelayed {
		t.Fatalf("expected Delayed, got %s", delayed.Status)
	}

	next := mustFlight(t, svc, "MH-101")
	if !next.Departure.Equal(at(13, 0)) || !next.Arrival.Equal(at(15, 0)) {
		t.Fatalf("expected MH-101 at 13:00-15:00, got %v-%v", next.Departure, next.Arrival)
	}
	if next.Status != FlightScheduled {
		t.Fatalf("expected cascade to leave status Scheduled, got %s", next.Status)
	}
	if len(next.DelayReasons) != 1 || next.DelayReasons[0] != "Operational: Late Incoming Aircraft MH-100 (+30m)" {
		t.Fatalf("expected system reason, got %v", next.DelayReasons)
	}

	records, err := svc.Propagations(ctx, "MH-101")
	if err != nil {
		t.Fatalf("propagations: %v", err)
	}
	if len(records) != 1 || records[0].Source != "MH-100" || records[0].Applied != 30*time.Minute {
		t.Fatalf("unexpected propagation records %+v", records)
	}
}

func TestCascadeIsTransitiveInOnePass(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustAddAircraft(t, svc, "9M-AAA", 180)
	mustAddFlight(t, svc, "MH-100", "9M-AAA", at(10, 0), at(12, 0))
	mustAddFlight(t, svc, "MH-101", "9M-AAA", at(12, 0), at(14, 0))
	mustAddFlight(t, svc, "MH-102", "9M-AAA", at(14, 0), at(16, 0))

	if _, _, err := svc.ManualDelay(ctx, "MH-100", "Technical: Hydraulics"); err != nil {
		t.Fatalf("manual delay: %v", err)
	}
	last := mustFlight(t, svc, "MH-102")
	if !last.Departure.Equal(at(15, 0)) {
		t.Fatalf("expected MH-102 pushed to 15:00, got %v", last.Departure)
	}
	if len(last.DelayReasons) != 1 || !strings.Contains(last.DelayReasons[0], "MH-101") {
		t.Fatalf("expected MH-102 reason naming MH-101, got %v", last.DelayReasons)
	}
	flights, _ := svc.ListFlights(ctx)
	assertNoOverlap(t, flights)
}

func TestRefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustAddAircraft(t, svc, "9M-AAA", 180)
	mustAddFlight(t, svc, "MH-100", "9M-AAA", at(10, 0), at(12, 0))
	mustAddFlight(t, svc, "MH-101", "9M-AAA", at(12, 0), at(14, 0))
	if _, _, err := svc.ManualDelay(ctx, "MH-100", "Technical: Hydraulics"); err != nil {
		t.Fatalf("manual delay: %v", err)
	}
	before, _ := svc.ListFlights(ctx)

	report, _, err := svc.RefreshScheduleForAircraft(ctx, "9M-AAA")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if report.Changed() || len(report.Unresolved) != 0 {
		t.Fatalf("expected no-op refresh, got %+v", report)
	}
	after, _ := svc.ListFlights(ctx)
	for i := range before {
		if !before[i].Departure.Equal(after[i].Departure) || len(before[i].DelayReasons) != len(after[i].DelayReasons) {
			t.Fatalf("refresh changed %s", before[i].Number)
		}
	}
	if _, _, err := svc.RefreshScheduleForAircraft(ctx, "9M-ZZZ"); err == nil {
		t.Fatalf("expected refresh of unknown aircraft to fail")
	}
}

func TestRepeatedDelayGrowsRecordWithoutDuplicateReason(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustAddAircraft(t, svc, "9M-AAA", 180)
	mustAddFlight(t, svc, "MH-100", "9M-AAA", at(10, 0), at(12, 0))
	mustAddFlight(t, svc, "MH-101", "9M-AAA", at(12, 0), at(14, 0))

	for i := 0; i < 2; i++ {
		if _, _, err := svc.ManualDelay(ctx, "MH-100", "Technical: Hydraulics"); err != nil {
			t.Fatalf("manual delay %d: %v", i, err)
		}
	}
	next := mustFlight(t, svc, "MH-101")
	if !next.Departure.Equal(at(14, 0)) {
		t.Fatalf("expected MH-101 pushed to 14:00, got %v", next.Departure)
	}
	if len(next.DelayReasons) != 1 {
		t.Fatalf("expected a single system reason, got %v", next.DelayReasons)
	}
	records, _ := svc.Propagations(ctx, "")
	if len(records) != 1 || records[0].Applied != 2*time.Hour {
		t.Fatalf("expected one record with 2h applied, got %+v", records)
	}
	if got := mustFlight(t, svc, "MH-100").DelayReasons; len(got) != 2 {
		t.Fatalf("expected both manual reasons on MH-100, got %v", got)
	}
}

func TestDepartedFlightOverlapIsReportedUnresolved(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, res, err := svc.ImportFleet(ctx,
		[]Aircraft{{Registration: "9M-AAA", Brand: "Boeing", Model: "B737", Capacity: 160}},
		[]Flight{
			{Number: "MH-100", Origin: "PENANG", Destination: "IPOH", Departure: at(10, 0), Arrival: at(12, 0), Status: FlightArrived, AircraftID: "9M-AAA", Payload: domain.PassengerPayload(10)},
			{Number: "MH-101", Origin: "IPOH", Destination: "PENANG", Departure: at(11, 0), Arrival: at(13, 0), Status: FlightDeparted, AircraftID: "9M-AAA", Payload: domain.PassengerPayload(10)},
		},
	)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Warnings()) == 0 {
		t.Fatalf("expected schedule_overlap warning on import")
	}

	report, _, err := svc.RefreshScheduleForAircraft(ctx, "9M-AAA")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if report.Changed() {
		t.Fatalf("expected departed flight not to move, got %+v", report.Shifts)
	}
	if len(report.Unresolved) != 1 {
		t.Fatalf("expected one unresolved overlap, got %+v", report.Unresolved)
	}
	overlap := report.Unresolved[0]
	if overlap.Source != "MH-100" || overlap.Target != "MH-101" || overlap.Overlap != time.Hour || overlap.Status != FlightDeparted {
		t.Fatalf("unexpected overlap %+v", overlap)
	}
}

func TestCancelledFlightsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustAddAircraft(t, svc, "9M-AAA", 180)
	mustAddFlight(t, svc, "MH-100", "9M-AAA", at(10, 0), at(12, 0))
	mustAddFlight(t, svc, "MH-101", "9M-AAA", at(13, 0), at(15, 0))
	mustAddFlight(t, svc, "MH-102", "9M-AAA", at(15, 0), at(17, 0))
	if _, _, err := svc.UpdateFlightStatus(ctx, "MH-101", FlightCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, err := svc.ManualDelay(ctx, "MH-100", "Others: Crew"); err != nil {
		t.Fatalf("delay: %v", err)
	}
	if got := mustFlight(t, svc, "MH-101"); !got.Departure.Equal(at(13, 0)) {
		t.Fatalf("expected cancelled flight unmoved, got %v", got.Departure)
	}
	if got := mustFlight(t, svc, "MH-102"); !got.Departure.Equal(at(15, 0)) {
		t.Fatalf("expected MH-102 unmoved, got %v", got.Departure)
	}
}
