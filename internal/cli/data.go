package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load aircrafts.txt and flights.txt from the blob store",
		Args:  cobra.NoArgs,
		PreRun: func(*cobra.Command, []string) {
			a.skipAutoLoad = true
		},
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			report, err := rt.files.Load(ctx, rt.svc)
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(w io.Writer) {
				fmt.Fprintf(w, "imported %d aircraft and %d flights, skipped %d\n", report.Import.Aircraft, report.Import.Flights, report.Skipped())
				for _, row := range report.Rows {
					fmt.Fprintf(w, "  %s:%d: %s\n", row.File, row.Line, row.Reason)
				}
				for _, rec := range report.Import.Skipped {
					fmt.Fprintf(w, "  %s %s: %s\n", rec.Entity, rec.ID, rec.Reason)
				}
			})
		}),
	}
}

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write aircrafts.txt and flights.txt to the blob store",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			report, err := rt.files.Save(ctx, rt.svc)
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(w io.Writer) {
				fmt.Fprintf(w, "exported %d aircraft and %d flights\n", report.Aircraft, report.Flights)
			})
		}),
	}
}

func (a *app) backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Full-state snapshots including propagation records",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Write a snapshot to the blob store",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			state, err := rt.stateStore()
			if err != nil {
				return err
			}
			manifest, err := rt.backups.Create(ctx, state)
			if err != nil {
				return err
			}
			return a.emit(cmd, manifest, func(w io.Writer) {
				fmt.Fprintf(w, "wrote %s (%d aircraft, %d flights, %d propagations)\n", manifest.Key, manifest.Aircraft, manifest.Flights, manifest.Propagations)
			})
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: a.run(false, func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			infos, err := rt.backups.List(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, infos, func(w io.Writer) {
				table(w, "KEY\tSIZE\tMODIFIED", func(tw *tabwriter.Writer) {
					for _, info := range infos {
						fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format("2006-01-02T15:04:05Z"))
					}
				})
			})
		}),
	}

	restoreCmd := &cobra.Command{
		Use:   "restore [KEY]",
		Short: "Replace the current state with a snapshot (latest when KEY is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(true, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			state, err := rt.stateStore()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			manifest, err := rt.backups.Restore(ctx, state, key)
			if err != nil {
				return err
			}
			return a.emit(cmd, manifest, func(w io.Writer) {
				fmt.Fprintf(w, "restored %s (%d aircraft, %d flights, %d propagations)\n", manifest.Key, manifest.Aircraft, manifest.Flights, manifest.Propagations)
			})
		}),
	}

	cmd.AddCommand(createCmd, listCmd, restoreCmd)
	return cmd
}
