package loop

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/xtxerr/heatwatch/internal/alert"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/metrics"
	"github.com/xtxerr/heatwatch/internal/reading"
	"github.com/xtxerr/heatwatch/internal/testutil"
)

const capturedAt = int64(1700000000000)

func celsius(c float64, moisture int64, at int64) reading.Reading {
	return reading.Reading{RawTemperature: c, Unit: reading.Celsius, Moisture: moisture, CapturedAt: at}
}

func testConfig() Config {
	return Config{
		Interval:      10 * time.Second,
		SensorTimeout: time.Second,
		StoreTimeout:  time.Second,
		AlertTimeout:  time.Second,
		Threshold:     reading.Threshold{ValueF: 80.0},
		SensorName:    "probe-1",
	}
}

type harness struct {
	sensor    *testutil.FakeSensor
	store     *testutil.FakeStore
	evaluator *testutil.FakeEvaluator
	sink      *testutil.FakeSink
	loop      *SampleLoop
}

func newHarness(t *testing.T, sensor *testutil.FakeSensor, store *testutil.FakeStore) *harness {
	t.Helper()

	h := &harness{
		sensor:    sensor,
		store:     store,
		evaluator: &testutil.FakeEvaluator{},
		sink:      &testutil.FakeSink{},
	}

	l, err := New(testConfig(), h.sensor, h.store, h.evaluator, h.sink, metrics.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.loop = l
	return h
}

func TestNewValidation(t *testing.T) {
	s := testutil.NewFakeSensor()
	st := testutil.NewFakeStore()

	if _, err := New(testConfig(), nil, st, nil, nil, nil); err == nil {
		t.Error("nil sensor accepted")
	}
	if _, err := New(testConfig(), s, nil, nil, nil, nil); err == nil {
		t.Error("nil store accepted")
	}

	cfg := testConfig()
	cfg.Interval = 0
	if _, err := New(cfg, s, st, nil, nil, nil); !errors.Is(err, errors.ErrInvalidInterval) {
		t.Errorf("zero interval: %v", err)
	}

	cfg = testConfig()
	cfg.Threshold.ValueF = math.NaN()
	if _, err := New(cfg, s, st, nil, nil, nil); err == nil {
		t.Error("NaN threshold accepted")
	}

	l, err := New(Config{Interval: time.Second}, s, st, nil, nil, nil)
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if l.cfg.SensorTimeout != 2*time.Second || l.cfg.StoreTimeout != 5*time.Second {
		t.Errorf("defaults not applied: %+v", l.cfg)
	}
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t, testutil.NewFakeSensor(
		testutil.Ok(celsius(25.0, 400, capturedAt)),
		testutil.Ok(celsius(27.0, 380, capturedAt+10000)),
	), testutil.NewFakeStore())
	ctx := context.Background()

	// 25.0°C → 77.0°F: persisted, no alert.
	res := h.loop.Tick(ctx)
	if !res.Sampled || res.StoreErr != nil || res.Alerted {
		t.Fatalf("tick 1 = %+v", res)
	}
	if !h.sensor.HadDeadline() {
		t.Error("sensor read was not bounded by a deadline")
	}

	// 27.0°C → 80.6°F: persisted, alert.
	res = h.loop.Tick(ctx)
	if !res.Sampled || res.StoreErr != nil || !res.Alerted {
		t.Fatalf("tick 2 = %+v", res)
	}

	records := h.store.Records()
	if len(records) != 2 {
		t.Fatalf("persisted %d records, want 2", len(records))
	}
	want0 := reading.Record{Temperature: 77.0, Moisture: 400, TimestampMs: capturedAt}
	if records[0] != want0 {
		t.Errorf("record 1 = %+v, want %+v", records[0], want0)
	}
	if math.Abs(records[1].Temperature-80.6) > 1e-9 || records[1].Moisture != 380 || records[1].TimestampMs != capturedAt+10000 {
		t.Errorf("record 2 = %+v", records[1])
	}

	events := h.sink.Events()
	if len(events) != 1 {
		t.Fatalf("delivered %d alerts, want 1", len(events))
	}
	if math.Abs(events[0].TemperatureF-80.6) > 1e-9 || events[0].TriggeredAt != capturedAt+10000 {
		t.Errorf("alert = %+v", events[0])
	}

	snap := h.loop.Stats()
	if snap.Ticks != 2 || snap.Samples != 2 || snap.Persisted != 2 || snap.Alerts != 1 {
		t.Errorf("stats = %+v", snap)
	}
	if snap.Last == nil || snap.Last.Moisture != 380 {
		t.Errorf("last = %+v", snap.Last)
	}
	if snap.TemperatureF == nil || snap.TemperatureF.P99 < 77 {
		t.Errorf("temperature quantiles = %+v", snap.TemperatureF)
	}
	if snap.ThresholdF != 80 || snap.Interval != "10s" {
		t.Errorf("snapshot config = %v %q", snap.ThresholdF, snap.Interval)
	}
}

func TestSensorFailureSkipsTick(t *testing.T) {
	kinds := []errors.SensorFailureKind{
		errors.SensorTimeout,
		errors.SensorDisconnected,
		errors.SensorInvalidValue,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t, testutil.NewFakeSensor(testutil.Fail(kind)), testutil.NewFakeStore())

			res := h.loop.Tick(context.Background())

			if res.Sampled || !errors.Is(res.SensorErr, kindSentinel(kind)) {
				t.Errorf("result = %+v", res)
			}
			if h.store.Calls() != 0 {
				t.Errorf("store called %d times after sensor failure", h.store.Calls())
			}
			if h.evaluator.Calls() != 0 {
				t.Errorf("evaluator called %d times after sensor failure", h.evaluator.Calls())
			}
			if got := h.loop.Stats().SensorFailures[kind.String()]; got != 1 {
				t.Errorf("sensor failures[%s] = %d", kind, got)
			}
		})
	}
}

func kindSentinel(kind errors.SensorFailureKind) error {
	switch kind {
	case errors.SensorTimeout:
		return errors.ErrSensorTimeout
	case errors.SensorDisconnected:
		return errors.ErrSensorDisconnected
	default:
		return errors.ErrInvalidValue
	}
}

func TestNaNReadingIsInvalidValue(t *testing.T) {
	h := newHarness(t, testutil.NewFakeSensor(
		testutil.Ok(celsius(math.NaN(), 1, capturedAt)),
	), testutil.NewFakeStore())

	res := h.loop.Tick(context.Background())
	if !errors.Is(res.SensorErr, errors.ErrInvalidValue) {
		t.Errorf("SensorErr = %v", res.SensorErr)
	}
	if h.store.Calls() != 0 || h.evaluator.Calls() != 0 {
		t.Error("NaN reading reached store or evaluator")
	}
}

func TestStoreFailureStillEvaluates(t *testing.T) {
	kinds := []errors.StoreFailureKind{
		errors.StoreTimeout,
		errors.StoreConnectionRefused,
		errors.StoreRejected,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t, testutil.NewFakeSensor(
				testutil.Ok(celsius(27.0, 380, capturedAt)),
			), testutil.NewFailingStore(kind))

			res := h.loop.Tick(context.Background())

			if !errors.IsStoreFailure(res.StoreErr) {
				t.Errorf("StoreErr = %v", res.StoreErr)
			}
			inputs := h.evaluator.Inputs()
			if len(inputs) != 1 || math.Abs(inputs[0].TemperatureF-80.6) > 1e-9 {
				t.Errorf("evaluator inputs = %+v", inputs)
			}
			if len(h.sink.Events()) != 1 {
				t.Error("alert not delivered after store failure")
			}
			if got := h.loop.Stats().StoreFailures[kind.String()]; got != 1 {
				t.Errorf("store failures[%s] = %d", kind, got)
			}
		})
	}
}

func TestUntypedErrorsAreClassified(t *testing.T) {
	sensor := testutil.NewFakeSensor(testutil.SensorResult{Err: errors.New("bus error")})
	h := newHarness(t, sensor, testutil.NewFakeStore())

	if res := h.loop.Tick(context.Background()); !errors.IsSensorFailure(res.SensorErr) {
		t.Errorf("untyped sensor error not wrapped: %v", res.SensorErr)
	}

	store := testutil.NewFakeStore()
	store.WriteFunc = func(ctx context.Context, rec reading.Record) error { return errors.New("boom") }
	h = newHarness(t, testutil.NewFakeSensor(testutil.Ok(celsius(20, 1, 1))), store)

	if res := h.loop.Tick(context.Background()); !errors.Is(res.StoreErr, errors.ErrRejected) {
		t.Errorf("untyped store error not wrapped: %v", res.StoreErr)
	}
}

func TestAlertFailureDoesNotSkipPersist(t *testing.T) {
	h := newHarness(t, testutil.NewFakeSensor(
		testutil.Ok(celsius(30, 300, capturedAt)),
	), testutil.NewFakeStore())
	h.sink.Panic = "sms gateway exploded"

	res := h.loop.Tick(context.Background())

	if res.StoreErr != nil || len(h.store.Records()) != 1 {
		t.Errorf("record not persisted: %+v", res)
	}
	if len(h.sink.Events()) != 1 {
		t.Error("sink not called")
	}
}

func TestPanickingPortsAreContained(t *testing.T) {
	sensor := testutil.NewFakeSensor(
		testutil.SensorResult{Panic: "i2c driver bug"},
		testutil.Ok(celsius(20, 1, capturedAt)),
	)
	store := testutil.NewFakeStore()
	store.WriteFunc = func(ctx context.Context, rec reading.Record) error { panic("driver bug") }

	h := newHarness(t, sensor, store)

	res := h.loop.Tick(context.Background())
	if !errors.IsSensorFailure(res.SensorErr) {
		t.Errorf("sensor panic not converted: %+v", res)
	}

	res = h.loop.Tick(context.Background())
	if !errors.IsStoreFailure(res.StoreErr) || h.evaluator.Calls() != 1 {
		t.Errorf("store panic not contained: %+v", res)
	}
}

func TestRecoversAfterConsecutiveSensorFailures(t *testing.T) {
	const failures = 5

	script := make([]testutil.SensorResult, 0, failures+1)
	for i := 0; i < failures; i++ {
		script = append(script, testutil.Fail(errors.SensorTimeout))
	}
	script = append(script, testutil.Ok(celsius(25, 400, capturedAt)))

	h := newHarness(t, testutil.NewFakeSensor(script...), testutil.NewFakeStore())

	for i := 0; i < failures; i++ {
		h.loop.Tick(context.Background())
	}
	res := h.loop.Tick(context.Background())

	if !res.Sampled || res.StoreErr != nil {
		t.Fatalf("tick after failures = %+v", res)
	}
	if len(h.store.Records()) != 1 || h.evaluator.Calls() != 1 {
		t.Errorf("records=%d evaluations=%d, want 1 each", len(h.store.Records()), h.evaluator.Calls())
	}

	snap := h.loop.Stats()
	if snap.Ticks != failures+1 || snap.SensorFailures["timeout"] != failures {
		t.Errorf("stats = %+v", snap)
	}
}

func TestTickIgnoresCallerCancellation(t *testing.T) {
	store := testutil.NewFakeStore()
	store.WriteFunc = func(ctx context.Context, rec reading.Record) error {
		return ctx.Err()
	}
	h := newHarness(t, testutil.NewFakeSensor(testutil.Ok(celsius(20, 1, 1))), store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.loop.Tick(ctx)
	if !res.Sampled || res.StoreErr != nil {
		t.Errorf("cancelled caller cut the tick short: %+v", res)
	}
}

func TestHysteresisEvaluator(t *testing.T) {
	sensor := testutil.NewFakeSensor(
		testutil.Ok(celsius(30, 1, capturedAt)),
		testutil.Ok(celsius(30, 1, capturedAt+10000)),
		testutil.Ok(celsius(30, 1, capturedAt+70000)),
	)
	store := testutil.NewFakeStore()
	m := metrics.New()

	l, err := New(testConfig(), sensor, store,
		alert.NewHysteresis(alert.ThresholdEvaluator{}, time.Minute, 0), &testutil.FakeSink{}, m)
	if err != nil {
		t.Fatal(err)
	}

	var alerted []bool
	for i := 0; i < 3; i++ {
		alerted = append(alerted, l.Tick(context.Background()).Alerted)
	}

	if !alerted[0] || alerted[1] || !alerted[2] {
		t.Errorf("alerted = %v, want [true false true]", alerted)
	}
	if len(store.Records()) != 3 {
		t.Error("suppressed alerts must not affect persistence")
	}

	snap := l.Stats()
	if snap.Alerts != 2 || snap.Suppressed != 1 {
		t.Errorf("alerts=%d suppressed=%d, want 2 and 1", snap.Alerts, snap.Suppressed)
	}
	want := "# HELP heatwatch_alerts_suppressed_total Alerts withheld by hysteresis.\n" +
		"# TYPE heatwatch_alerts_suppressed_total counter\n" +
		"heatwatch_alerts_suppressed_total 1\n"
	if err := promtest.GatherAndCompare(m.Registry(), strings.NewReader(want), "heatwatch_alerts_suppressed_total"); err != nil {
		t.Error(err)
	}
}

// =============================================================================
// Run
// =============================================================================

func TestRunStopsOnCancel(t *testing.T) {
	var ticks atomic.Int64
	store := testutil.NewFakeStore()
	store.WriteFunc = func(ctx context.Context, rec reading.Record) error {
		ticks.Add(1)
		return nil
	}

	sensor := testutil.NewFakeSensor(testutil.Ok(celsius(20, 1, 1)))
	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond

	l, err := New(cfg, sensor, store, nil, &testutil.FakeSink{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := testutil.NewTestHelper(t)
	h.Go(func() error { return l.Run(ctx) })

	if err := testutil.Eventually(2*time.Second, time.Millisecond, func() bool { return ticks.Load() >= 3 }); err != nil {
		cancel()
		h.Wait()
		t.Fatal(err)
	}

	if err := l.Run(ctx); err == nil {
		t.Error("second Run did not fail while running")
	}

	cancel()
	if err := testutil.RunWithTimeout(time.Second, h.Wait); err != nil {
		t.Fatalf("Run did not return after cancel: %v", err)
	}

	// Every started tick completed.
	snap := l.Stats()
	if snap.Running {
		t.Error("Stats reports running after Run returned")
	}
	if int64(snap.Persisted) != ticks.Load() || snap.Ticks != snap.Persisted {
		t.Errorf("ticks=%d persisted=%d writes=%d", snap.Ticks, snap.Persisted, ticks.Load())
	}
}

func TestNextTick(t *testing.T) {
	base := time.Unix(1000, 0)
	interval := 10 * time.Second

	tests := []struct {
		name       string
		now        time.Duration
		wantNext   time.Duration
		wantMissed int
	}{
		{"fast tick", 2 * time.Second, 10 * time.Second, 0},
		{"exactly on grid", 10 * time.Second, 10 * time.Second, 0},
		{"overran one", 15 * time.Second, 20 * time.Second, 1},
		{"overran two", 25 * time.Second, 30 * time.Second, 2},
		{"overran to grid", 20 * time.Second, 20 * time.Second, 1},
		{"just past grid", 20*time.Second + time.Nanosecond, 30 * time.Second, 2},
	}

	for _, tt := range tests {
		next, missed := nextTick(base, interval, base.Add(tt.now))
		if !next.Equal(base.Add(tt.wantNext)) || missed != tt.wantMissed {
			t.Errorf("%s: next=+%s missed=%d, want +%s %d",
				tt.name, next.Sub(base), missed, tt.wantNext, tt.wantMissed)
		}
	}
}
