package cli

import (
	"encoding/json"
	"flightcore/internal/core"
	"flightcore/internal/flatfile"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func printAircraft(w io.Writer, aircraft []core.Aircraft) {
	table(w, "REGISTRATION\tBRAND\tMODEL\tCAPACITY\tSTATUS", func(tw *tabwriter.Writer) {
		for _, a := range aircraft {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.Registration, a.Brand, a.Model, a.Capacity, a.Status)
		}
	})
}

func payloadText(f core.Flight) string {
	if f.Payload.IsCargo() {
		return strconv.FormatFloat(f.Payload.CargoWeightKg, 'f', 2, 64) + " kg"
	}
	return strconv.Itoa(f.Payload.Passengers) + " pax"
}

func printFlights(w io.Writer, flights []core.Flight) {
	table(w, "NUMBER\tORIGIN\tDESTINATION\tDEPARTURE\tARRIVAL\tSTATUS\tAIRCRAFT\tPAYLOAD\tDELAYS", func(tw *tabwriter.Writer) {
		for _, f := range flights {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				f.Number, f.Origin, f.Destination,
				flatfile.FormatTime(f.Departure), flatfile.FormatTime(f.Arrival),
				f.Status, f.AircraftID, payloadText(f), strings.Join(f.DelayReasons, "; "))
		}
	})
}

func printFlight(w io.Writer, f core.Flight) {
	fmt.Fprintf(w, "%s %s -> %s %s..%s %s on %s\n",
		f.Number, f.Origin, f.Destination,
		flatfile.FormatTime(f.Departure), flatfile.FormatTime(f.Arrival), f.Status, f.AircraftID)
}

func printCascade(w io.Writer, report core.CascadeReport) {
	for _, s := range report.Shifts {
		fmt.Fprintf(w, "shifted %s by %s (after %s)\n", s.Target, core.FormatDelta(s.Delta), s.Source)
	}
	for _, o := range report.Unresolved {
		fmt.Fprintf(w, "unresolved: %s overlaps %s by %s (%s)\n", o.Target, o.Source, core.FormatDelta(o.Overlap), o.Status)
	}
}

func printWarnings(cmd *cobra.Command, res core.Result) {
	for _, v := range res.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", v.Rule, v.Message)
	}
}
