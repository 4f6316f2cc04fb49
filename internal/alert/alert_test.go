package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/reading"
)

var threshold80 = reading.Threshold{ValueF: 80.0}

func TestEvaluateBoundary(t *testing.T) {
	tests := []struct {
		tempF float64
		want  bool
	}{
		{80.0, true},
		{79.99, false},
		{80.6, true},
		{77.0, false},
		{-40, false},
	}

	for _, tt := range tests {
		n := reading.Normalized{TemperatureF: tt.tempF, Moisture: 400, CapturedAt: 1234}
		ev, ok := Evaluate(n, threshold80)
		if ok != tt.want {
			t.Errorf("Evaluate(%v) alert = %v, want %v", tt.tempF, ok, tt.want)
			continue
		}
		if ok && (ev.TemperatureF != tt.tempF || ev.TriggeredAt != 1234) {
			t.Errorf("Evaluate(%v) event = %+v", tt.tempF, ev)
		}
	}
}

func TestEvaluateProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		n := reading.Normalized{TemperatureF: rng.Float64()*200 - 50}
		th := reading.Threshold{ValueF: rng.Float64()*200 - 50}

		_, ok := Evaluate(n, th)
		if ok != (n.TemperatureF >= th.ValueF) {
			t.Fatalf("Evaluate(%v, %v) = %v", n.TemperatureF, th.ValueF, ok)
		}
		if _, again := (ThresholdEvaluator{}).Evaluate(n, th); again != ok {
			t.Fatal("ThresholdEvaluator disagrees with Evaluate")
		}
	}
}

func TestHysteresis(t *testing.T) {
	h := NewHysteresis(ThresholdEvaluator{}, time.Minute, 3)

	steps := []struct {
		atSec int64
		tempF float64
		want  bool
	}{
		{0, 81, true},    // episode starts
		{10, 82, false},  // cooldown
		{60, 82, true},   // cooldown elapsed
		{90, 83, false},  // cooldown
		{120, 83, true},  // third alert
		{180, 84, false}, // cap reached
		{240, 84, false}, // cap reached
		{250, 70, false}, // episode ends
		{260, 81, true},  // new episode, limits reset
	}

	for i, s := range steps {
		n := reading.Normalized{TemperatureF: s.tempF, CapturedAt: s.atSec * 1000}
		if _, got := h.Evaluate(n, threshold80); got != s.want {
			t.Errorf("step %d (t=%ds, %v°F): alert = %v, want %v", i, s.atSec, s.tempF, got, s.want)
		}
	}

	if got := h.Suppressed(); got != 4 {
		t.Errorf("Suppressed = %d, want 4", got)
	}
}

func TestHysteresisUnlimited(t *testing.T) {
	h := NewHysteresis(ThresholdEvaluator{}, 0, 0)
	for i := int64(0); i < 10; i++ {
		if _, ok := h.Evaluate(reading.Normalized{TemperatureF: 90, CapturedAt: i}, threshold80); !ok {
			t.Fatalf("reading %d suppressed without limits", i)
		}
	}
}

func TestNewEvaluator(t *testing.T) {
	cfg := loader.DefaultConfig().Alert
	if _, ok := NewEvaluator(cfg).(ThresholdEvaluator); !ok {
		t.Error("default evaluator is not stateless")
	}

	cfg.MaxPerEpisode = 5
	if _, ok := NewEvaluator(cfg).(*Hysteresis); !ok {
		t.Error("max_per_episode did not enable hysteresis")
	}
}

// =============================================================================
// Sinks
// =============================================================================

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Notify(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

type panickingSink struct{}

func (panickingSink) Notify(ctx context.Context, ev Event) {
	panic("twilio down")
}

type blockingSink struct {
	err error
}

func (s *blockingSink) Notify(ctx context.Context, ev Event) {
	<-ctx.Done()
	s.err = ctx.Err()
}

func TestMultiIsolatesFailures(t *testing.T) {
	first := &recordingSink{}
	last := &recordingSink{}
	blocked := &blockingSink{}

	m := NewMulti(20*time.Millisecond, first, panickingSink{}, blocked, last)
	ev := Event{TemperatureF: 80.6, TriggeredAt: 1}

	m.Notify(context.Background(), ev)

	if len(first.events) != 1 || len(last.events) != 1 {
		t.Fatalf("deliveries: first=%d last=%d, want 1 each", len(first.events), len(last.events))
	}
	if last.events[0] != ev {
		t.Errorf("delivered %+v", last.events[0])
	}
	if !errors.Is(blocked.err, context.DeadlineExceeded) {
		t.Errorf("blocking sink not bounded: %v", blocked.err)
	}
	if m.Len() != 4 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestMultiHungSinkDoesNotStarveOthers(t *testing.T) {
	blocked := &blockingSink{}
	last := &recordingSink{}

	// The caller's budget is far shorter than the per-sink timeout, as when
	// the tick bounds the whole alert branch.
	m := NewMulti(time.Second, blocked, last)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	m.Notify(ctx, Event{TemperatureF: 81, TriggeredAt: 2})

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Notify took %s, want bounded by caller ctx", elapsed)
	}
	last.mu.Lock()
	delivered := len(last.events)
	last.mu.Unlock()
	if delivered != 1 {
		t.Errorf("second sink got %d events behind a hung first sink, want 1", delivered)
	}
	if !errors.Is(blocked.err, context.DeadlineExceeded) {
		t.Errorf("blocking sink err = %v", blocked.err)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	s.Notify(context.Background(), Event{TemperatureF: 80.6, TriggeredAt: 1700000010000})

	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"temperature_f":80.6`) {
		t.Errorf("log line = %s", out)
	}
}

func TestNewSinksUnknown(t *testing.T) {
	cfg := loader.DefaultConfig().Alert
	cfg.Sinks = []string{"log", "sms"}

	if _, err := NewSinks(cfg); !errors.Is(err, errors.ErrUnknownDriver) {
		t.Errorf("NewSinks err = %v", err)
	}

	cfg.Sinks = []string{"log"}
	m, err := NewSinks(cfg)
	if err != nil {
		t.Fatalf("NewSinks: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}
}

// =============================================================================
// MQTT
// =============================================================================

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakePublisher struct {
	topic        string
	qos          byte
	payload      []byte
	token        mqtt.Token
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.qos = qos
	p.payload = payload.([]byte)
	return p.token
}

func (p *fakePublisher) Disconnect(quiesce uint) { p.disconnected = true }

func TestMQTTSinkPublishes(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(nil, true)}
	s := &MQTTSink{client: pub, topic: "heatwatch/alerts", qos: 1}

	s.Notify(context.Background(), Event{TemperatureF: 80.6, TriggeredAt: 1700000010000})

	if pub.topic != "heatwatch/alerts" || pub.qos != 1 {
		t.Errorf("published to %q qos %d", pub.topic, pub.qos)
	}

	var got Event
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.TemperatureF != 80.6 || got.TriggeredAt != 1700000010000 {
		t.Errorf("payload = %s", pub.payload)
	}

	s.Close()
	if !pub.disconnected {
		t.Error("Close did not disconnect")
	}
}

func TestMQTTSinkSwallowsFailures(t *testing.T) {
	failed := &MQTTSink{client: &fakePublisher{token: newFakeToken(fmt.Errorf("not connected"), true)}}
	failed.Notify(context.Background(), Event{TemperatureF: 90})

	hung := &MQTTSink{client: &fakePublisher{token: newFakeToken(nil, false)}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		hung.Notify(ctx, Event{TemperatureF: 90})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked past its context")
	}
}
