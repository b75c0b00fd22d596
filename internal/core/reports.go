package core

import (
	"context"
	"flightcore/pkg/domain"
	"sort"
	"strings"
	"time"
)

// OperationalReport aggregates fleet and flight counts.
type OperationalReport struct {
	TotalAircraft     int                  `json:"total_aircraft"`
	AvailableAircraft int                  `json:"available_aircraft"`
	BusyAircraft      int                  `json:"busy_aircraft"`
	TotalFlights      int                  `json:"total_flights"`
	PreDeparture      int                  `json:"pre_departure"`
	ByStatus          map[FlightStatus]int `json:"by_status"`
	DelayedFlights    []string             `json:"delayed_flights"`
	Propagations      int                  `json:"propagations"`
}

// DelayRecord is one delay reason exploded into its category and detail.
type DelayRecord struct {
	Flight   string    `json:"flight"`
	Date     time.Time `json:"date"`
	Category string    `json:"category"`
	Detail   string    `json:"detail"`
}

// DelayAnalysis lists delay reasons and counts them per category.
type DelayAnalysis struct {
	Records    []DelayRecord  `json:"records"`
	ByCategory map[string]int `json:"by_category"`
}

// SearchAircraft returns aircraft whose registration contains the keyword,
// ignoring case. An empty keyword matches every aircraft.
func (s *Service) SearchAircraft(ctx context.Context, keyword string) ([]Aircraft, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	var out []Aircraft
	err := s.read(ctx, "search_aircraft", func(view TransactionView) error {
		for _, a := range view.ListAircraft() {
			if strings.Contains(strings.ToLower(a.Registration), needle) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// SearchFlights returns flights whose number contains the keyword, ignoring
// case. An empty keyword matches every flight.
func (s *Service) SearchFlights(ctx context.Context, keyword string) ([]Flight, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	var out []Flight
	err := s.read(ctx, "search_flights", func(view TransactionView) error {
		for _, f := range view.ListFlights() {
			if strings.Contains(strings.ToLower(f.Number), needle) {
				out = append(out, f)
			}
		}
		return nil
	})
	return out, err
}

// OperationalReport counts aircraft by status and flights by status. Scheduled
// and Boarding flights are also reported together as pre-departure.
func (s *Service) OperationalReport(ctx context.Context) (OperationalReport, error) {
	report := OperationalReport{ByStatus: make(map[FlightStatus]int, len(domain.FlightStatuses))}
	for _, status := range domain.FlightStatuses {
		report.ByStatus[status] = 0
	}
	err := s.read(ctx, "operational_report", func(view TransactionView) error {
		for _, a := range view.ListAircraft() {
			report.TotalAircraft++
			if a.Status == domain.AircraftAvailable {
				report.AvailableAircraft++
			} else {
				report.BusyAircraft++
			}
		}
		for _, f := range view.ListFlights() {
			report.TotalFlights++
			report.ByStatus[f.Status]++
			if f.Status == FlightScheduled || f.Status == FlightBoarding {
				report.PreDeparture++
			}
			if len(f.DelayReasons) > 0 {
				report.DelayedFlights = append(report.DelayedFlights, f.Number)
			}
		}
		report.Propagations = len(view.ListPropagations())
		return nil
	})
	return report, err
}

// FlightHistory returns the Arrived flights ordered by arrival.
func (s *Service) FlightHistory(ctx context.Context) ([]Flight, error) {
	var out []Flight
	err := s.read(ctx, "flight_history", func(view TransactionView) error {
		for _, f := range view.ListFlights() {
			if f.Status == FlightArrived {
				out = append(out, f)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Arrival.Equal(out[j].Arrival) {
			return out[i].Number < out[j].Number
		}
		return out[i].Arrival.Before(out[j].Arrival)
	})
	return out, err
}

// DelayBreakdown explodes every delay reason into a category and detail.
// Reasons without a "category: detail" separator are Uncategorized.
func (s *Service) DelayBreakdown(ctx context.Context) (DelayAnalysis, error) {
	analysis := DelayAnalysis{ByCategory: map[string]int{}}
	err := s.read(ctx, "delay_breakdown", func(view TransactionView) error {
		for _, f := range view.ListFlights() {
			for _, reason := range f.DelayReasons {
				category, detail := domain.SplitDelayReason(reason)
				analysis.Records = append(analysis.Records, DelayRecord{
					Flight:   f.Number,
					Date:     f.Departure,
					Category: category,
					Detail:   detail,
				})
				analysis.ByCategory[category]++
			}
		}
		return nil
	})
	return analysis, err
}

// Propagations lists cascade records. A non-empty flight restricts the list
// to records naming it as source or target.
func (s *Service) Propagations(ctx context.Context, flight string) ([]Propagation, error) {
	var out []Propagation
	err := s.read(ctx, "list_propagations", func(view TransactionView) error {
		for _, p := range view.ListPropagations() {
			if flight == "" || p.Mentions(flight) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}
