package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/fatih/color"
	"github.com/xtxerr/heatwatch/internal/reading"
)

var (
	hotColor  = color.New(color.FgRed, color.Bold)
	okColor   = color.New(color.FgGreen)
	dimColor  = color.New(color.FgHiBlack)
	headColor = color.New(color.FgCyan, color.Bold)
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// printRecords writes one line per record. Records at or above thresholdF
// are highlighted; a NaN threshold disables highlighting.
func printRecords(w io.Writer, records []reading.Record, thresholdF float64) {
	headColor.Fprintf(w, "%-24s %10s %9s\n", "CAPTURED", "TEMP °F", "MOISTURE")

	for _, rec := range records {
		at := time.UnixMilli(rec.TimestampMs).Local().Format("2006-01-02 15:04:05.000")
		temp := fmt.Sprintf("%10.2f", rec.Temperature)

		switch {
		case math.IsNaN(thresholdF):
		case rec.Temperature >= thresholdF:
			temp = hotColor.Sprint(temp)
		default:
			temp = okColor.Sprint(temp)
		}

		fmt.Fprintf(w, "%-24s %s %9d\n", at, temp, rec.Moisture)
	}

	dimColor.Fprintf(w, "%d readings\n", len(records))
}
