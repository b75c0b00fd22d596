// Package cli implements the flightctl command tree.
package cli

import (
	"context"
	"errors"
	"flightcore/internal/backup"
	"flightcore/internal/blob"
	"flightcore/internal/config"
	"flightcore/internal/core"
	"flightcore/internal/flatfile"
	"flightcore/internal/logging"
	"flightcore/internal/metrics"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// runtime holds everything one command invocation needs.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    core.PersistentStore
	blobs    blob.Store
	registry *prometheus.Registry
	recorder *metrics.Recorder
	tracer   *core.JSONTracer
	svc      *core.Service
	files    *flatfile.Repository
	backups  *backup.Manager
}

type app struct {
	configPath   string
	trace        bool
	jsonOutput   bool
	skipAutoLoad bool
}

// NewRootCommand builds the flightctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "flightctl",
		Short:         "Manage a fleet, its flight schedule and delay propagation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file (yaml or json)")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "write a JSON trace line per service operation to stderr")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		a.aircraftCommand(),
		a.flightCommand(),
		a.departCommand(),
		a.arriveCommand(),
		a.delayCommand(),
		a.statusCommand(),
		a.refreshCommand(),
		a.reportCommand(),
		a.importCommand(),
		a.exportCommand(),
		a.backupCommand(),
		a.serveMetricsCommand(),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

type runFunc func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error

// run wraps fn with runtime setup and teardown. Mutating commands rewrite the
// flat files afterwards when auto_save is on.
func (a *app) run(mutates bool, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rt, err := a.open(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, rt.close())
		}()
		if err := fn(ctx, rt, cmd, args); err != nil {
			return err
		}
		if mutates && rt.cfg.FlatFile.AutoSave {
			if _, err := rt.files.Save(ctx, rt.svc); err != nil {
				return fmt.Errorf("save flat files: %w", err)
			}
		}
		return nil
	}
}

func (a *app) open(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging, "flightctl")
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	if rt.store, err = core.OpenStorage(cfg.Storage.Options(), core.NewDefaultRulesEngine()); err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if rt.blobs, err = blob.Open(ctx, cfg.Blob); err != nil {
		_ = rt.close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	if rt.recorder, err = metrics.NewRecorder(rt.registry); err != nil {
		_ = rt.close()
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(rt.recorder),
		core.WithScheduleSettings(cfg.Schedule.Settings()),
	}
	if a.trace {
		rt.tracer = core.NewJSONTracer(cmd.ErrOrStderr())
		opts = append(opts, core.WithTracer(rt.tracer))
	}
	rt.svc = core.NewService(rt.store, opts...)
	rt.files = flatfile.NewRepository(rt.blobs, flatfile.WithLogger(logger))
	rt.backups = backup.NewManager(rt.blobs, backup.WithLogger(logger))

	if cfg.FlatFile.AutoLoad && !a.skipAutoLoad && storeEmpty(rt.store) {
		if _, err := rt.files.Load(ctx, rt.svc); err != nil {
			_ = rt.close()
			return nil, fmt.Errorf("load flat files: %w", err)
		}
	}
	return rt, nil
}

func storeEmpty(store core.PersistentStore) bool {
	return len(store.ListAircraft()) == 0 && len(store.ListFlights()) == 0
}

func (rt *runtime) close() error {
	var errs []error
	if rt.store != nil {
		errs = append(errs, core.CloseStore(rt.store))
	}
	if rt.logger != nil {
		errs = append(errs, rt.logger.Close())
	}
	return errors.Join(errs...)
}

// stateStore returns the snapshot surface of the configured backend.
func (rt *runtime) stateStore() (core.StateStore, error) {
	state, ok := rt.store.(core.StateStore)
	if !ok {
		return nil, fmt.Errorf("storage driver %s does not support snapshots", rt.cfg.Storage.Driver)
	}
	return state, nil
}
