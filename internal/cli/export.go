package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/xtxerr/heatwatch/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export readings to a parquet file",
		Long: `Export the readings captured in a time range to a parquet file.

By default the export is served by the running heatwatchd at --addr, which
works while the daemon holds the DuckDB store open.

With --db the DuckDB file is read directly. DuckDB allows one process per
database file, so this only works while heatwatchd is stopped or on a copy
of the file.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().String("db", "", "Read this DuckDB file directly instead of asking heatwatchd")
	cmd.Flags().StringP("out", "o", "readings.parquet", "Output parquet file")
	cmd.Flags().String("since", "24h", "Start of the range: RFC 3339 time or a duration before now")
	cmd.Flags().String("until", "", "End of the range: RFC 3339 time or a duration before now (default: now)")
	cmd.Flags().String("compression", "zstd", "Compression: zstd, snappy, lz4, gzip or none")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	out, _ := cmd.Flags().GetString("out")
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	compression, _ := cmd.Flags().GetString("compression")

	now := time.Now()
	from, err := parseTimeArg(since, now)
	if err != nil {
		return fmt.Errorf("--since: %w", err)
	}
	to := now
	if until != "" {
		if to, err = parseTimeArg(until, now); err != nil {
			return fmt.Errorf("--until: %w", err)
		}
	}
	if to.Before(from) {
		return fmt.Errorf("empty range: %s is after %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	var n int
	var total int64 = -1
	if dbPath != "" {
		n, total, err = exportFile(cmd, dbPath, out, from, to, compression)
	} else {
		n, err = exportRemote(cmd, out, from, to, compression)
	}
	if err != nil {
		return err
	}

	if jsonOutput() {
		result := map[string]any{"rows": n, "path": out}
		if total >= 0 {
			result["stored"] = total
		}
		return printJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s readings to %s", okColor.Sprint(n), out)
	if total >= 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " %s", dimColor.Sprintf("(%d stored)", total))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// exportFile reads the range from a DuckDB file the daemon does not hold.
func exportFile(cmd *cobra.Command, dbPath, out string, from, to time.Time, compression string) (int, int64, error) {
	db, err := store.OpenDuckDBReadOnly(cmd.Context(), dbPath)
	if err != nil {
		return 0, 0, fmt.Errorf("%w (is heatwatchd running? drop --db to export through it)", err)
	}
	defer db.Close()

	records, err := db.Between(cmd.Context(), from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return 0, 0, err
	}
	total, err := db.Count(cmd.Context())
	if err != nil {
		return 0, 0, err
	}

	n, err := store.ExportParquet(out, records, compression)
	return n, total, err
}

// exportRemote streams the parquet file served by heatwatchd into out.
func exportRemote(cmd *cobra.Command, out string, from, to time.Time, compression string) (int, error) {
	c, err := newClient()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := c.Export(cmd.Context(), from, to, compression, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return 0, err
	}
	return n, nil
}

// parseTimeArg parses an RFC 3339 time or a duration counted back from now.
func parseTimeArg(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a duration nor an RFC 3339 time", s)
	}
	return t, nil
}
