// Package alert decides when a reading raises an alert and delivers it.
//
// Evaluate is the pure threshold comparison. Evaluators are what the sample
// loop calls: ThresholdEvaluator is stateless, Hysteresis layers a cooldown
// and a per-episode cap on top. Sinks deliver events best-effort and never
// return errors to the caller.
package alert

import (
	"fmt"
	"time"

	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/reading"
)

var log = logging.Component("alert")

// Event is one alert.
type Event struct {
	TemperatureF float64 `json:"temperature"`
	TriggeredAt  int64   `json:"triggered_at"` // Unix timestamp in milliseconds
}

// TriggeredTime returns the trigger timestamp as a time.Time.
func (e Event) TriggeredTime() time.Time {
	return time.UnixMilli(e.TriggeredAt)
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%.2f°F at %s", e.TemperatureF, e.TriggeredTime().UTC().Format(time.RFC3339))
}

// Evaluate returns an Event iff n is at or above t. The event is stamped
// with the reading's capture time.
func Evaluate(n reading.Normalized, t reading.Threshold) (Event, bool) {
	if n.TemperatureF >= t.ValueF {
		return Event{TemperatureF: n.TemperatureF, TriggeredAt: n.CapturedAt}, true
	}
	return Event{}, false
}

// Evaluator decides whether a normalized reading raises an alert.
type Evaluator interface {
	Evaluate(n reading.Normalized, t reading.Threshold) (Event, bool)
}

// Suppressor is implemented by evaluators that withhold alerts.
type Suppressor interface {
	// Suppressed returns how many alerts were withheld so far.
	Suppressed() uint64
}

// ThresholdEvaluator is the stateless Evaluator: every reading at or above
// the threshold alerts.
type ThresholdEvaluator struct{}

// Evaluate implements Evaluator.
func (ThresholdEvaluator) Evaluate(n reading.Normalized, t reading.Threshold) (Event, bool) {
	return Evaluate(n, t)
}

// NewEvaluator returns the evaluator configured by cfg.
func NewEvaluator(cfg loader.AlertConfig) Evaluator {
	if !cfg.HysteresisEnabled() {
		return ThresholdEvaluator{}
	}
	return NewHysteresis(ThresholdEvaluator{}, cfg.Cooldown.Duration(), cfg.MaxPerEpisode)
}
