package cli

import (
	"context"
	"flightcore/internal/metrics"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (a *app) serveMetricsCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Expose fleet gauges and operation metrics for Prometheus until interrupted",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			if err := rt.registry.Register(metrics.NewFleetCollector(rt.svc.OperationalReport)); err != nil {
				return err
			}
			cfg := rt.cfg.Metrics
			if addr != "" {
				cfg.Address = addr
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return metrics.Serve(ctx, cfg, rt.registry, rt.logger)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to metrics.address)")
	return cmd
}
