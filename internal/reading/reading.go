// Package reading defines the values that flow through one tick of the
// sample loop: the raw sensor Reading, its Normalized form in the canonical
// unit (Fahrenheit), the persisted Record and the alert Threshold.
//
// All types are immutable values. Conversion is pure.
package reading

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the temperature unit a sensor reports in.
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
)

// String returns the config name of the unit.
func (u Unit) String() string {
	switch u {
	case Celsius:
		return "celsius"
	case Fahrenheit:
		return "fahrenheit"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ParseUnit parses a unit name. Empty means Celsius.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	default:
		return Celsius, fmt.Errorf("unknown temperature unit %q", s)
	}
}

// Reading is one raw sample as produced by a sensor port.
type Reading struct {
	RawTemperature float64
	Unit           Unit
	Moisture       int64
	CapturedAt     int64 // Unix timestamp in milliseconds
}

// CapturedTime returns the capture timestamp as a time.Time.
func (r Reading) CapturedTime() time.Time {
	return time.UnixMilli(r.CapturedAt)
}

// Normalized is a Reading expressed in the canonical unit.
type Normalized struct {
	TemperatureF float64
	Moisture     int64
	CapturedAt   int64 // Unix timestamp in milliseconds
}

// String formats the reading the way the status line prints it.
func (n Normalized) String() string {
	return fmt.Sprintf("Temp: %.2f°F | Moisture: %d", n.TemperatureF, n.Moisture)
}

// Threshold is the alert boundary, always in Fahrenheit.
type Threshold struct {
	ValueF float64
}

// ToCanonicalF converts raw to Fahrenheit. Callers guarantee raw is finite.
func ToCanonicalF(raw float64, unit Unit) float64 {
	if unit == Fahrenheit {
		return raw
	}
	return raw*9/5 + 32
}

// Normalize converts a Reading to the canonical unit.
func Normalize(r Reading) Normalized {
	return Normalized{
		TemperatureF: ToCanonicalF(r.RawTemperature, r.Unit),
		Moisture:     r.Moisture,
		CapturedAt:   r.CapturedAt,
	}
}
