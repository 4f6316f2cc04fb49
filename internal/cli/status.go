package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/xtxerr/heatwatch/internal/api"
	"github.com/xtxerr/heatwatch/internal/loop"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show sample loop statistics of a running heatwatchd",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	snap, err := c.Status(cmd.Context())
	if err != nil {
		return err
	}
	health, healthErr := c.Health(cmd.Context())

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), snap)
	}
	printStatus(cmd, snap)
	printHealth(cmd, health, healthErr)
	return nil
}

// printHealth reports the store ping; an unhealthy store does not fail the
// command since the loop statistics were already shown.
func printHealth(cmd *cobra.Command, health *api.HealthResponse, err error) {
	w := cmd.OutOrStdout()
	switch {
	case err != nil:
		fmt.Fprintf(w, "store:      %s (%v)\n", hotColor.Sprint("unhealthy"), err)
	case health.Records != nil:
		fmt.Fprintf(w, "store:      %s, %d records\n", okColor.Sprint(health.Status), *health.Records)
	}
}

func printStatus(cmd *cobra.Command, snap *loop.Snapshot) {
	w := cmd.OutOrStdout()

	state := okColor.Sprint("running")
	if !snap.Running {
		state = hotColor.Sprint("stopped")
	}
	fmt.Fprintf(w, "loop:       %s (every %s, threshold %.1f°F)\n", state, snap.Interval, snap.ThresholdF)
	fmt.Fprintf(w, "ticks:      %d (%d missed)\n", snap.Ticks, snap.TicksMissed)
	fmt.Fprintf(w, "samples:    %d (%d persisted)\n", snap.Samples, snap.Persisted)
	fmt.Fprintf(w, "alerts:     %d", snap.Alerts)
	if snap.Suppressed > 0 {
		fmt.Fprintf(w, " (%d suppressed)", snap.Suppressed)
	}
	fmt.Fprintln(w)

	printFailures(cmd, "sensor", snap.SensorFailures)
	printFailures(cmd, "store", snap.StoreFailures)

	if snap.Last != nil {
		temp := fmt.Sprintf("%.2f°F", snap.Last.Temperature)
		if snap.Last.Temperature >= snap.ThresholdF {
			temp = hotColor.Sprint(temp)
		}
		fmt.Fprintf(w, "last:       %s, moisture %d\n", temp, snap.Last.Moisture)
	}
	if q := snap.TemperatureF; q != nil {
		fmt.Fprintf(w, "temp °F:    p50 %.2f  p95 %.2f  p99 %.2f\n", q.P50, q.P95, q.P99)
	}
	if q := snap.TickDurationMs; q != nil {
		fmt.Fprintf(w, "tick ms:    p50 %.1f  p95 %.1f  p99 %.1f\n", q.P50, q.P95, q.P99)
	}
}

func printFailures(cmd *cobra.Command, name string, failures map[string]uint64) {
	if len(failures) == 0 {
		return
	}

	kinds := make([]string, 0, len(failures))
	for k := range failures {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintf(cmd.OutOrStdout(), "%-11s", name+" fail:")
	for _, k := range kinds {
		fmt.Fprintf(cmd.OutOrStdout(), " %s=%s", k, hotColor.Sprint(failures[k]))
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
