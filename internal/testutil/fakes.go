package testutil

import (
	"context"
	"sync"

	"github.com/xtxerr/heatwatch/internal/alert"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/reading"
)

// =============================================================================
// Sensor
// =============================================================================

// SensorResult is one scripted outcome of FakeSensor.Read.
type SensorResult struct {
	Reading reading.Reading
	Err     error
	Panic   any
}

// FakeSensor replays scripted results. Once the script is exhausted the
// last result repeats.
type FakeSensor struct {
	mu          sync.Mutex
	script      []SensorResult
	calls       int
	hadDeadline bool
}

// NewFakeSensor creates a FakeSensor with the given script.
func NewFakeSensor(script ...SensorResult) *FakeSensor {
	return &FakeSensor{script: script}
}

// Ok returns a successful SensorResult.
func Ok(r reading.Reading) SensorResult {
	return SensorResult{Reading: r}
}

// Fail returns a failed SensorResult of the given kind.
func Fail(kind errors.SensorFailureKind) SensorResult {
	return SensorResult{Err: errors.NewSensorFailure(kind, nil)}
}

// Read implements the sensor capability.
func (s *FakeSensor) Read(ctx context.Context) (reading.Reading, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	_, s.hadDeadline = ctx.Deadline()

	var res SensorResult
	if len(s.script) > 0 {
		if idx >= len(s.script) {
			idx = len(s.script) - 1
		}
		res = s.script[idx]
	}
	s.mu.Unlock()

	if res.Panic != nil {
		panic(res.Panic)
	}
	return res.Reading, res.Err
}

// Close implements the sensor capability.
func (s *FakeSensor) Close() error { return nil }

// Calls returns the number of Read calls.
func (s *FakeSensor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// HadDeadline reports whether the last Read got a context with a deadline.
func (s *FakeSensor) HadDeadline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hadDeadline
}

// =============================================================================
// Store
// =============================================================================

// FakeStore records writes. WriteFunc, when set, decides the outcome of
// each write; records are kept only when it returns nil.
type FakeStore struct {
	mu        sync.Mutex
	records   []reading.Record
	calls     int
	WriteFunc func(ctx context.Context, rec reading.Record) error
	HealthErr error
}

// NewFakeStore creates a FakeStore that accepts every write.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// NewFailingStore creates a FakeStore that rejects every write with kind.
func NewFailingStore(kind errors.StoreFailureKind) *FakeStore {
	return &FakeStore{
		WriteFunc: func(ctx context.Context, rec reading.Record) error {
			return errors.NewStoreFailure(kind, nil)
		},
	}
}

// Write implements the store capability.
func (s *FakeStore) Write(ctx context.Context, rec reading.Record) error {
	s.mu.Lock()
	s.calls++
	fn := s.WriteFunc
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, rec); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

// Recent implements store.Reader, newest first.
func (s *FakeStore) Recent(ctx context.Context, limit int) ([]reading.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]reading.Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Between implements store.Ranger over [fromMs, toMs), oldest first.
func (s *FakeStore) Between(ctx context.Context, fromMs, toMs int64) ([]reading.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []reading.Record
	for _, rec := range s.records {
		if rec.TimestampMs >= fromMs && rec.TimestampMs < toMs {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Health implements store.Checker and returns HealthErr.
func (s *FakeStore) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.HealthErr
}

// Count implements store.Checker.
func (s *FakeStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

// Close implements the store capability.
func (s *FakeStore) Close() error { return nil }

// Calls returns the number of Write calls.
func (s *FakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Records returns the accepted records in write order.
func (s *FakeStore) Records() []reading.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reading.Record(nil), s.records...)
}

// =============================================================================
// Alerts
// =============================================================================

// FakeEvaluator counts evaluations and delegates to the stateless threshold
// comparison.
type FakeEvaluator struct {
	mu     sync.Mutex
	inputs []reading.Normalized
}

// Evaluate implements alert.Evaluator.
func (e *FakeEvaluator) Evaluate(n reading.Normalized, t reading.Threshold) (alert.Event, bool) {
	e.mu.Lock()
	e.inputs = append(e.inputs, n)
	e.mu.Unlock()
	return alert.Evaluate(n, t)
}

// Calls returns the number of Evaluate calls.
func (e *FakeEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}

// Inputs returns the evaluated readings in order.
func (e *FakeEvaluator) Inputs() []reading.Normalized {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]reading.Normalized(nil), e.inputs...)
}

// FakeSink records delivered events. A non-nil Panic value makes Notify
// panic after recording.
type FakeSink struct {
	mu     sync.Mutex
	events []alert.Event
	Panic  any
}

// Notify implements alert.Sink.
func (s *FakeSink) Notify(ctx context.Context, ev alert.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	p := s.Panic
	s.mu.Unlock()

	if p != nil {
		panic(p)
	}
}

// Events returns the delivered events in order.
func (s *FakeSink) Events() []alert.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Event(nil), s.events...)
}
