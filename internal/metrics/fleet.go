package metrics

import (
	"context"
	"flightcore/internal/core"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReportFunc produces the operational report read at scrape time.
type ReportFunc func(ctx context.Context) (core.OperationalReport, error)

// FleetCollector exports aircraft and flight counts from an operational
// report on every scrape.
type FleetCollector struct {
	report       ReportFunc
	timeout      time.Duration
	aircraft     *prometheus.Desc
	flights      *prometheus.Desc
	propagations *prometheus.Desc
	up           *prometheus.Desc
}

// NewFleetCollector wraps report. Scrapes give up after five seconds.
func NewFleetCollector(report ReportFunc) *FleetCollector {
	return &FleetCollector{
		report:       report,
		timeout:      5 * time.Second,
		aircraft:     prometheus.NewDesc("flightcore_aircraft", "Aircraft by derived status", []string{"status"}, nil),
		flights:      prometheus.NewDesc("flightcore_flights", "Flights by status", []string{"status"}, nil),
		propagations: prometheus.NewDesc("flightcore_propagations", "Stored delay propagation records", nil, nil),
		up:           prometheus.NewDesc("flightcore_fleet_report_up", "Whether the last fleet report succeeded", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *FleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.aircraft
	ch <- c.flights
	ch <- c.propagations
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *FleetCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	report, err := c.report(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.aircraft, prometheus.GaugeValue, float64(report.AvailableAircraft), "Available")
	ch <- prometheus.MustNewConstMetric(c.aircraft, prometheus.GaugeValue, float64(report.BusyAircraft), "Busy")
	for status, n := range report.ByStatus {
		ch <- prometheus.MustNewConstMetric(c.flights, prometheus.GaugeValue, float64(n), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.propagations, prometheus.GaugeValue, float64(report.Propagations))
}
