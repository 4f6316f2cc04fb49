package cli

import (
	"math"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "readings",
		Short: "Show the latest readings of a running heatwatchd",
		Args:  cobra.NoArgs,
		RunE:  runReadings,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max readings")
	cmd.Flags().Float64("threshold", math.NaN(), "Highlight threshold in °F (default: the daemon's threshold)")

	RootCmd.AddCommand(cmd)
}

func runReadings(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	c, err := newClient()
	if err != nil {
		return err
	}

	resp, err := c.Readings(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	if math.IsNaN(threshold) {
		if snap, err := c.Status(cmd.Context()); err == nil {
			threshold = snap.ThresholdF
		}
	}

	printRecords(cmd.OutOrStdout(), resp.Readings, threshold)
	return nil
}
