// Package cli implements the heatctl commands.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xtxerr/heatwatch/internal/client"
)

var (
	addrFlag   string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "heatctl",
	Short:         "Inspect a heatwatch installation",
	Long:          "Query a running heatwatchd, export stored readings to parquet and inspect spool files.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&addrFlag, "addr", "a", "", "heatwatchd address (default: $HEATWATCH_ADDR or http://localhost:5002)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
}

func getAddr() string {
	if addrFlag != "" {
		return addrFlag
	}
	if env := os.Getenv("HEATWATCH_ADDR"); env != "" {
		return env
	}
	return client.DefaultConfig().Addr
}

func newClient() (*client.Client, error) {
	return client.New(&client.Config{
		Addr:           getAddr(),
		RequestTimeout: 10 * time.Second,
	})
}

func jsonOutput() bool {
	return formatFlag == "json"
}
