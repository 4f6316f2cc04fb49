package loop

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xtxerr/heatwatch/internal/alert"
	"github.com/xtxerr/heatwatch/internal/constants"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/reading"
	"golang.org/x/sync/errgroup"
)

// TickResult describes one tick.
type TickResult struct {
	Seq      uint64
	Started  time.Time
	Duration time.Duration

	// Sampled is false when the sensor failed; SensorErr then holds the
	// *errors.SensorFailure and nothing else ran.
	Sampled    bool
	SensorErr  error
	Normalized reading.Normalized

	// StoreErr is the *errors.StoreFailure of the write, nil on success.
	StoreErr error

	// Alerted reports that Event was handed to the sink.
	Alerted bool
	Event   alert.Event
}

// Tick executes one full tick. It always returns; every failure is recorded
// in the result and logged. Cancelling ctx does not interrupt a tick in
// progress; each port call is bounded by its own timeout instead.
func (l *SampleLoop) Tick(ctx context.Context) (res TickResult) {
	res.Seq = l.seq.Add(1)
	res.Started = l.now()

	ctx = logging.ContextWithSensor(logging.ContextWithTick(context.WithoutCancel(ctx), res.Seq), l.cfg.SensorName)
	tlog := log.With("tick", res.Seq)

	defer func() {
		res.Duration = l.now().Sub(res.Started)
		l.stats.recordTick(res)
		l.metrics.Tick(res.Duration)
	}()

	// Sampling
	raw, err := l.sample(ctx)
	if err != nil {
		res.SensorErr = err
		kind := sensorKind(err)
		l.metrics.SensorFailure(kind)
		tlog.Warn("sensor read failed, skipping tick",
			"kind", kind,
			"transient", errors.IsRetriable(err),
			"at", res.Started,
			"error", err)
		return res
	}

	// Normalizing
	n := reading.Normalize(raw)
	res.Sampled = true
	res.Normalized = n
	l.metrics.Sample(n.TemperatureF, n.Moisture, n.CapturedAt)

	// Persisting and Evaluating
	var g errgroup.Group
	g.Go(func() error {
		res.StoreErr = l.persist(ctx, n)
		return nil
	})
	g.Go(func() error {
		res.Event, res.Alerted = l.evaluate(ctx, n)
		return nil
	})
	_ = g.Wait()

	tlog.Info(n.String(),
		"temperature_f", n.TemperatureF,
		"moisture", n.Moisture,
		"persisted", res.StoreErr == nil,
		"alert", res.Alerted)

	return res
}

// sample reads the sensor under the sensor timeout and guarantees the
// reading is finite.
func (l *SampleLoop) sample(ctx context.Context) (r reading.Reading, err error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.SensorTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			l.metrics.Panic(constants.StageSensor)
			err = errors.NewSensorFailure(errors.SensorDisconnected, fmt.Errorf("panic: %v", p))
		}
	}()

	r, err = l.sensor.Read(ctx)
	if err != nil {
		if !errors.IsSensorFailure(err) {
			err = errors.NewSensorFailure(errors.SensorDisconnected, err)
		}
		return reading.Reading{}, err
	}

	if math.IsNaN(r.RawTemperature) || math.IsInf(r.RawTemperature, 0) {
		return reading.Reading{}, errors.NewSensorFailure(errors.SensorInvalidValue,
			fmt.Errorf("temperature is %v", r.RawTemperature))
	}
	return r, nil
}

// persist hands the record to the store under the store timeout.
func (l *SampleLoop) persist(ctx context.Context, n reading.Normalized) (err error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			l.metrics.Panic(constants.StageStore)
			err = errors.NewStoreFailure(errors.StoreRejected, fmt.Errorf("panic: %v", p))
		}

		kind := storeKind(err)
		l.metrics.StoreWrite(time.Since(start), kind)
		if err != nil {
			log.Warn("store write failed, sample dropped",
				"tick", tickOf(ctx),
				"kind", kind,
				"transient", errors.IsRetriable(err),
				"captured_at", time.UnixMilli(n.CapturedAt),
				"error", err)
		}
	}()

	err = l.store.Write(ctx, reading.NewRecord(n))
	if err != nil && !errors.IsStoreFailure(err) {
		err = errors.NewStoreFailure(errors.StoreRejected, err)
	}
	return err
}

// evaluate checks the threshold and, on an alert, notifies the sink under
// the alert timeout.
func (l *SampleLoop) evaluate(ctx context.Context, n reading.Normalized) (ev alert.Event, alerted bool) {
	defer func() {
		if p := recover(); p != nil {
			l.metrics.Panic(constants.StageAlert)
			log.Error("panic in alert evaluation",
				"tick", tickOf(ctx),
				"panic", p)
		}
	}()

	ev, alerted = l.evaluator.Evaluate(n, l.cfg.Threshold)
	if !alerted {
		return ev, false
	}

	l.metrics.Alert()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.AlertTimeout)
	defer cancel()

	l.sink.Notify(ctx, ev)
	return ev, true
}

func tickOf(ctx context.Context) uint64 {
	tick, _ := logging.TickFromContext(ctx)
	return tick
}

func sensorKind(err error) string {
	var f *errors.SensorFailure
	if errors.As(err, &f) {
		return f.Kind.String()
	}
	return "unknown"
}

func storeKind(err error) string {
	if err == nil {
		return ""
	}
	var f *errors.StoreFailure
	if errors.As(err, &f) {
		return f.Kind.String()
	}
	return "unknown"
}
