package cli

import (
	"context"
	"flightcore/internal/core"
	"flightcore/internal/flatfile"
	"flightcore/pkg/domain"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Operational, history, delay and propagation reports",
	}

	opsCmd := &cobra.Command{
		Use:   "ops",
		Short: "Fleet and flight totals by status",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			report, err := rt.svc.OperationalReport(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(w io.Writer) {
				fmt.Fprintf(w, "aircraft: %d (available %d, busy %d)\n", report.TotalAircraft, report.AvailableAircraft, report.BusyAircraft)
				fmt.Fprintf(w, "flights: %d (pre-departure %d)\n", report.TotalFlights, report.PreDeparture)
				table(w, "STATUS\tFLIGHTS", func(tw *tabwriter.Writer) {
					for _, status := range domain.FlightStatuses {
						fmt.Fprintf(tw, "%s\t%d\n", status, report.ByStatus[status])
					}
				})
				fmt.Fprintf(w, "delayed flights: %v\n", report.DelayedFlights)
				fmt.Fprintf(w, "propagation records: %d\n", report.Propagations)
			})
		}),
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Arrived flights with their delay reasons",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			flights, err := rt.svc.FlightHistory(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, flights, func(w io.Writer) { printFlights(w, flights) })
		}),
	}

	delaysCmd := &cobra.Command{
		Use:   "delays",
		Short: "Delay reasons by flight and category",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			analysis, err := rt.svc.DelayBreakdown(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, analysis, func(w io.Writer) {
				table(w, "FLIGHT\tDATE\tCATEGORY\tDETAIL", func(tw *tabwriter.Writer) {
					for _, r := range analysis.Records {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Flight, r.Date.Format("2006-01-02"), r.Category, r.Detail)
					}
				})
				categories := make([]string, 0, len(analysis.ByCategory))
				for c := range analysis.ByCategory {
					categories = append(categories, c)
				}
				sort.Strings(categories)
				for _, c := range categories {
					fmt.Fprintf(w, "%s: %d\n", c, analysis.ByCategory[c])
				}
			})
		}),
	}

	var flight string
	propagationsCmd := &cobra.Command{
		Use:   "propagations",
		Short: "Recorded delay propagations",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			records, err := rt.svc.Propagations(ctx, flight)
			if err != nil {
				return err
			}
			return a.emit(cmd, records, func(w io.Writer) {
				table(w, "SOURCE\tTARGET\tAPPLIED\tREASON\tRECORDED", func(tw *tabwriter.Writer) {
					for _, p := range records {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Source, p.Target, core.FormatDelta(p.Applied), p.Reason, flatfile.FormatTime(p.RecordedAt))
					}
				})
			})
		}),
	}
	propagationsCmd.Flags().StringVar(&flight, "flight", "", "only records naming this flight")

	cmd.AddCommand(opsCmd, historyCmd, delaysCmd, propagationsCmd)
	return cmd
}
