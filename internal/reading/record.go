package reading

import (
	"strconv"

	"github.com/google/uuid"
)

// recordNamespace scopes record ids generated by heatwatch.
var recordNamespace = uuid.MustParse("6f2c3a51-8d0e-4d7e-9a55-3f0b9c1e7a42")

// Record is the storage shape of a Normalized reading.
//
// ID is assigned by the store on handoff. It is derived from the sensor name
// and capture time, so writing the same record twice yields the same id.
type Record struct {
	ID          string  `json:"id,omitempty" parquet:"id"`
	Temperature float64 `json:"temperature" parquet:"temperature"`
	Moisture    int64   `json:"moisture" parquet:"moisture"`
	TimestampMs int64   `json:"timestamp_ms" parquet:"timestamp_ms"`
}

// NewRecord builds the record for n without an id.
func NewRecord(n Normalized) Record {
	return Record{
		Temperature: n.TemperatureF,
		Moisture:    n.Moisture,
		TimestampMs: n.CapturedAt,
	}
}

// RecordID returns the deterministic id of a record captured at timestampMs
// by the named sensor.
func RecordID(sensor string, timestampMs int64) string {
	name := sensor + "/" + strconv.FormatInt(timestampMs, 10)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// WithID returns r with its id assigned, keeping an id that is already set.
func (r Record) WithID(sensor string) Record {
	if r.ID == "" {
		r.ID = RecordID(sensor, r.TimestampMs)
	}
	return r
}
