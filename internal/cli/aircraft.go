package cli

import (
	"context"
	"flightcore/internal/core"
	"flightcore/internal/flatfile"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func (a *app) aircraftCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aircraft",
		Aliases: []string{"ac"},
		Short:   "Register, list and remove aircraft",
	}

	var add core.Aircraft
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register an aircraft",
		Args:  cobra.NoArgs,
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			created, res, err := rt.svc.AddAircraft(ctx, add)
			if err != nil {
				return err
			}
			printWarnings(cmd, res)
			return a.emit(cmd, created, func(w io.Writer) {
				fmt.Fprintf(w, "registered %s (%s %s, %d seats)\n", created.Registration, created.Brand, created.Model, created.Capacity)
			})
		}),
	}
	addCmd.Flags().StringVarP(&add.Registration, "registration", "r", "", "registration, e.g. 9M-MXA")
	addCmd.Flags().StringVar(&add.Brand, "brand", "", "manufacturer")
	addCmd.Flags().StringVar(&add.Model, "model", "", "model code, e.g. A320")
	addCmd.Flags().IntVar(&add.Capacity, "capacity", 0, "passenger seats")
	_ = addCmd.MarkFlagRequired("registration")
	_ = addCmd.MarkFlagRequired("brand")
	_ = addCmd.MarkFlagRequired("model")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every aircraft",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			aircraft, err := rt.svc.ListAircraft(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, aircraft, func(w io.Writer) { printAircraft(w, aircraft) })
		}),
	}

	searchCmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Find aircraft whose registration contains KEYWORD",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			aircraft, err := rt.svc.SearchAircraft(ctx, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, aircraft, func(w io.Writer) { printAircraft(w, aircraft) })
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete REGISTRATION",
		Short: "Remove an aircraft that no flight references",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if _, err := rt.svc.DeleteAircraft(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	var departure, arrival string
	availableCmd := &cobra.Command{
		Use:   "available REGISTRATION",
		Short: "Check whether an aircraft is free for a time window",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			dep, err := flatfile.ParseTime(departure)
			if err != nil {
				return fmt.Errorf("--departure: %w", err)
			}
			arr, err := flatfile.ParseTime(arrival)
			if err != nil {
				return fmt.Errorf("--arrival: %w", err)
			}
			ok, err := rt.svc.IsAircraftAvailable(ctx, args[0], dep, arr)
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]bool{"available": ok}, func(w io.Writer) {
				if ok {
					fmt.Fprintf(w, "%s is available\n", args[0])
				} else {
					fmt.Fprintf(w, "%s is busy\n", args[0])
				}
			})
		}),
	}
	availableCmd.Flags().StringVar(&departure, "departure", "", "window start, e.g. 2024-12-01T10:00")
	availableCmd.Flags().StringVar(&arrival, "arrival", "", "window end")
	_ = availableCmd.MarkFlagRequired("departure")
	_ = availableCmd.MarkFlagRequired("arrival")

	cmd.AddCommand(addCmd, listCmd, searchCmd, deleteCmd, availableCmd)
	return cmd
}
