// Package loop implements the sample loop: on a fixed cadence it reads the
// sensor, normalizes the reading, persists it and evaluates it for alerts.
//
// One tick moves through Idle → Sampling → Normalizing → {Persisting,
// Evaluating} → Idle. A sensor failure ends the tick after Sampling. The
// two final branches run concurrently and independently: a failed write
// never skips the threshold check and a failed alert never skips the write.
// No failure or panic inside a tick escapes it.
//
// Ticks never overlap. They are scheduled on a fixed grid measured from the
// start of the previous tick; a tick that overruns skips the grid points it
// missed. Cancellation is observed only at the Idle boundary, so a tick is
// always either fully executed or not started.
package loop

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/xtxerr/heatwatch/config"
	"github.com/xtxerr/heatwatch/internal/alert"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/metrics"
	"github.com/xtxerr/heatwatch/internal/reading"
)

var log = logging.Component("loop")

// Sensor is the capability the loop samples.
type Sensor interface {
	Read(ctx context.Context) (reading.Reading, error)
}

// Store is the capability the loop persists to.
type Store interface {
	Write(ctx context.Context, rec reading.Record) error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the process-scoped loop settings.
type Config struct {
	// Interval is the tick cadence.
	Interval time.Duration

	// SensorTimeout bounds one sensor read.
	SensorTimeout time.Duration

	// StoreTimeout bounds one store write.
	StoreTimeout time.Duration

	// AlertTimeout bounds one alert delivery.
	AlertTimeout time.Duration

	// Threshold is the inclusive alert boundary.
	Threshold reading.Threshold

	// SensorName labels log lines.
	SensorName string

	// SketchAccuracy is the relative accuracy of the stats quantiles.
	SketchAccuracy float64
}

func (c *Config) applyDefaults() {
	if c.SensorTimeout <= 0 {
		c.SensorTimeout = config.DefaultSensorTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = config.DefaultStoreTimeout
	}
	if c.AlertTimeout <= 0 {
		c.AlertTimeout = config.DefaultAlertTimeout
	}
	if c.SketchAccuracy <= 0 {
		c.SketchAccuracy = config.DefaultSketchAccuracy
	}
}

// =============================================================================
// Sample Loop
// =============================================================================

// SampleLoop owns the sensor and store handles for the process lifetime.
//
// Tick and Run must not be called concurrently; Stats is safe for concurrent
// use.
type SampleLoop struct {
	cfg       Config
	sensor    Sensor
	store     Store
	evaluator alert.Evaluator
	sink      alert.Sink
	metrics   *metrics.Metrics
	stats     *Stats

	seq     atomic.Uint64
	running atomic.Bool
	now     func() time.Time
}

// New creates a SampleLoop. A nil evaluator uses alert.ThresholdEvaluator
// and a nil sink logs alerts; m may be nil.
func New(cfg Config, sensor Sensor, store Store, evaluator alert.Evaluator, sink alert.Sink, m *metrics.Metrics) (*SampleLoop, error) {
	if sensor == nil {
		return nil, errors.NewMissingField("sensor")
	}
	if store == nil {
		return nil, errors.NewMissingField("store")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval %s: %w", cfg.Interval, errors.ErrInvalidInterval)
	}
	if math.IsNaN(cfg.Threshold.ValueF) || math.IsInf(cfg.Threshold.ValueF, 0) {
		return nil, errors.NewValidation("threshold", "must be a finite number")
	}
	cfg.applyDefaults()

	if evaluator == nil {
		evaluator = alert.ThresholdEvaluator{}
	}
	if sink == nil {
		sink = alert.NewLogSink(nil)
	}

	stats, err := newStats(cfg.SketchAccuracy)
	if err != nil {
		return nil, err
	}

	m.SetThreshold(cfg.Threshold.ValueF)
	if s, ok := evaluator.(alert.Suppressor); ok {
		m.ObserveSuppressed(s.Suppressed)
	}

	return &SampleLoop{
		cfg:       cfg,
		sensor:    sensor,
		store:     store,
		evaluator: evaluator,
		sink:      sink,
		metrics:   m,
		stats:     stats,
		now:       time.Now,
	}, nil
}

// Stats returns a snapshot of the loop statistics.
func (l *SampleLoop) Stats() Snapshot {
	snap := l.stats.Snapshot()
	snap.ThresholdF = l.cfg.Threshold.ValueF
	snap.Interval = l.cfg.Interval.String()
	snap.Running = l.running.Load()
	if s, ok := l.evaluator.(alert.Suppressor); ok {
		snap.Suppressed = s.Suppressed()
	}
	return snap
}

// =============================================================================
// Run
// =============================================================================

// Run ticks until ctx is cancelled and then returns nil. The first tick
// starts immediately.
func (l *SampleLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sample loop already running")
	}
	defer l.running.Store(false)

	log.Info("sample loop started",
		"interval", l.cfg.Interval,
		"threshold_f", l.cfg.Threshold.ValueF,
		"sensor", l.cfg.SensorName)

	next := l.now()
	for {
		// Idle
		if !l.idle(ctx, next.Sub(l.now())) {
			log.Info("sample loop stopped", "ticks", l.seq.Load())
			return nil
		}

		l.Tick(ctx)

		var missed int
		next, missed = nextTick(next, l.cfg.Interval, l.now())
		if missed > 0 {
			l.stats.recordMissed(missed)
			l.metrics.TicksMissed(missed)
			log.Warn("tick overran its interval, skipping missed ticks",
				"missed", missed, "interval", l.cfg.Interval)
		}
	}
}

// idle waits d and reports whether the loop should tick.
func (l *SampleLoop) idle(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

// nextTick returns the grid point following scheduled that is not in the
// past, and how many grid points were skipped to reach it.
func nextTick(scheduled time.Time, interval time.Duration, now time.Time) (time.Time, int) {
	next := scheduled.Add(interval)
	if !now.After(next) {
		return next, 0
	}
	missed := int((now.Sub(next) + interval - 1) / interval)
	return next.Add(time.Duration(missed) * interval), missed
}
