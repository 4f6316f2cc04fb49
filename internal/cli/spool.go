package cli

import (
	"math"

	"github.com/spf13/cobra"
	"github.com/xtxerr/heatwatch/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "spool <path>",
		Short: "Print the records of a spool file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSpool,
	}

	cmd.Flags().Float64("threshold", math.NaN(), "Highlight threshold in °F")
	cmd.Flags().IntP("tail", "n", 0, "Only print the last n records")

	RootCmd.AddCommand(cmd)
}

func runSpool(cmd *cobra.Command, args []string) error {
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	tail, _ := cmd.Flags().GetInt("tail")

	records, err := store.ReadSpool(args[0])
	if err != nil {
		return err
	}
	if tail > 0 && len(records) > tail {
		records = records[len(records)-tail:]
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), records)
	}
	printRecords(cmd.OutOrStdout(), records, threshold)
	return nil
}
