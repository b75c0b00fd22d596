package cli

import (
	"context"
	"flightcore/internal/core"
	"flightcore/internal/flatfile"
	"flightcore/pkg/domain"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type flightFlags struct {
	number      string
	origin      string
	destination string
	departure   string
	arrival     string
	aircraft    string
	passengers  int
	cargo       float64
}

func (f flightFlags) flight() (core.Flight, error) {
	dep, err := flatfile.ParseTime(f.departure)
	if err != nil {
		return core.Flight{}, fmt.Errorf("--departure: %w", err)
	}
	flight := core.Flight{
		Number:      f.number,
		Origin:      f.origin,
		Destination: f.destination,
		Departure:   dep,
		AircraftID:  f.aircraft,
		Payload:     domain.PassengerPayload(f.passengers),
	}
	if f.arrival != "" {
		if flight.Arrival, err = flatfile.ParseTime(f.arrival); err != nil {
			return core.Flight{}, fmt.Errorf("--arrival: %w", err)
		}
	}
	if f.cargo > 0 {
		flight.Payload = domain.CargoPayload(f.cargo)
	}
	return flight, nil
}

func (a *app) flightCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flight",
		Short: "Schedule, list and remove flights",
	}

	var flags flightFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a flight on a free aircraft",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			flight, err := flags.flight()
			if err != nil {
				return err
			}
			created, res, err := rt.svc.AddFlight(ctx, flight)
			if err != nil {
				return err
			}
			printWarnings(cmd, res)
			return a.emit(cmd, created, func(w io.Writer) {
				fmt.Fprint(w, "scheduled ")
				printFlight(w, created)
			})
		}),
	}
	addCmd.Flags().StringVarP(&flags.number, "number", "n", "", "flight number, e.g. MH-123")
	addCmd.Flags().StringVar(&flags.origin, "origin", "", "origin (defaults to schedule.default_origin)")
	addCmd.Flags().StringVar(&flags.destination, "destination", "", "destination")
	addCmd.Flags().StringVar(&flags.departure, "departure", "", "departure, e.g. 2024-12-01T10:30")
	addCmd.Flags().StringVar(&flags.arrival, "arrival", "", "arrival (defaults to departure + schedule.default_block_time)")
	addCmd.Flags().StringVarP(&flags.aircraft, "aircraft", "a", "", "aircraft registration")
	addCmd.Flags().IntVar(&flags.passengers, "passengers", 0, "booked passengers")
	addCmd.Flags().Float64Var(&flags.cargo, "cargo-weight", 0, "cargo weight in kg; makes this a cargo flight")
	for _, name := range []string{"number", "destination", "departure", "aircraft"} {
		_ = addCmd.MarkFlagRequired(name)
	}
	addCmd.MarkFlagsMutuallyExclusive("passengers", "cargo-weight")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every flight",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			flights, err := rt.svc.ListFlights(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, flights, func(w io.Writer) { printFlights(w, flights) })
		}),
	}

	showCmd := &cobra.Command{
		Use:   "show NUMBER",
		Short: "Show one flight",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			flight, err := rt.svc.GetFlight(ctx, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, flight, func(w io.Writer) { printFlights(w, []core.Flight{flight}) })
		}),
	}

	searchCmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Find flights whose number contains KEYWORD",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			flights, err := rt.svc.SearchFlights(ctx, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, flights, func(w io.Writer) { printFlights(w, flights) })
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete NUMBER",
		Short: "Remove a flight",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if _, err := rt.svc.DeleteFlight(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(addCmd, listCmd, showCmd, searchCmd, deleteCmd)
	return cmd
}
