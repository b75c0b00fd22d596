package cli

import (
	"context"
	"flightcore/internal/core"
	"flightcore/pkg/domain"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// DelayCategories are the reason categories offered by the delay command.
var DelayCategories = []string{"Weather Conditions", "Technical", "Operational", "Others"}

func delayCategory(name string) (string, bool) {
	for _, c := range DelayCategories {
		if strings.EqualFold(strings.TrimSpace(name), c) {
			return c, true
		}
	}
	return "", false
}

type flightResult func(ctx context.Context, svc *core.Service, number string) (core.Flight, core.Result, error)

func (a *app) flightAction(use, short string, action flightResult) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NUMBER",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			flight, res, err := action(ctx, rt.svc, args[0])
			if err != nil {
				return err
			}
			printWarnings(cmd, res)
			return a.emit(cmd, flight, func(w io.Writer) { printFlight(w, flight) })
		}),
	}
}

func (a *app) departCommand() *cobra.Command {
	return a.flightAction("depart", "Mark a flight Departed", func(ctx context.Context, svc *core.Service, number string) (core.Flight, core.Result, error) {
		return svc.AttemptDeparture(ctx, number)
	})
}

func (a *app) arriveCommand() *cobra.Command {
	return a.flightAction("arrive", "Mark a flight Arrived", func(ctx context.Context, svc *core.Service, number string) (core.Flight, core.Result, error) {
		return svc.AttemptArrival(ctx, number)
	})
}

func (a *app) delayCommand() *cobra.Command {
	var category, detail string
	cmd := a.flightAction("delay", "Delay a flight by the configured increment and record why", func(ctx context.Context, svc *core.Service, number string) (core.Flight, core.Result, error) {
		canonical, ok := delayCategory(category)
		if !ok {
			return core.Flight{}, core.Result{}, domain.ValidationError{
				Field:   "category",
				Message: "must be one of " + strings.Join(DelayCategories, ", "),
			}
		}
		return svc.ManualDelay(ctx, number, canonical+": "+strings.TrimSpace(detail))
	})
	cmd.Flags().StringVar(&category, "category", "Others", "reason category: "+strings.Join(DelayCategories, ", "))
	cmd.Flags().StringVar(&detail, "detail", "", "reason detail")
	_ = cmd.MarkFlagRequired("detail")
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status NUMBER STATUS",
		Short: "Move a flight to Scheduled, Boarding, Departed, Arrived, Delayed or Cancelled",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			status, ok := domain.ParseFlightStatus(args[1])
			if !ok {
				status = core.FlightStatus(args[1])
			}
			flight, res, err := rt.svc.UpdateFlightStatus(ctx, args[0], status)
			if err != nil {
				return err
			}
			printWarnings(cmd, res)
			return a.emit(cmd, flight, func(w io.Writer) { printFlight(w, flight) })
		}),
	}
}

func (a *app) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh REGISTRATION",
		Short: "Re-run delay propagation over an aircraft's schedule",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			report, res, err := rt.svc.RefreshScheduleForAircraft(ctx, args[0])
			if err != nil {
				return err
			}
			printWarnings(cmd, res)
			return a.emit(cmd, report, func(w io.Writer) {
				if !report.Changed() && len(report.Unresolved) == 0 {
					fmt.Fprintf(w, "%s: schedule unchanged\n", report.Aircraft)
					return
				}
				printCascade(w, report)
			})
		}),
	}
}
