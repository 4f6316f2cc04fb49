package loop

import (
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/heatwatch/internal/reading"
)

// Quantiles holds p50/p95/p99 of a distribution.
type Quantiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Snapshot is a point-in-time copy of the loop statistics.
type Snapshot struct {
	Running    bool    `json:"running"`
	Interval   string  `json:"interval"`
	ThresholdF float64 `json:"threshold_f"`

	Ticks          uint64            `json:"ticks"`
	TicksMissed    uint64            `json:"ticks_missed"`
	Samples        uint64            `json:"samples"`
	Persisted      uint64            `json:"persisted"`
	Alerts         uint64            `json:"alerts"`
	Suppressed     uint64            `json:"alerts_suppressed"`
	SensorFailures map[string]uint64 `json:"sensor_failures"`
	StoreFailures  map[string]uint64 `json:"store_failures"`

	LastTickAt time.Time       `json:"last_tick_at,omitempty"`
	Last       *reading.Record `json:"last,omitempty"`

	// Quantiles are nil until the first sample.
	TemperatureF   *Quantiles `json:"temperature_f,omitempty"`
	TickDurationMs *Quantiles `json:"tick_duration_ms,omitempty"`
}

// Stats accumulates tick outcomes.
//
// Stats is safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	ticks          uint64
	missed         uint64
	samples        uint64
	persisted      uint64
	alerts         uint64
	sensorFailures map[string]uint64
	storeFailures  map[string]uint64

	lastTickAt time.Time
	last       *reading.Normalized

	temperature  *ddsketch.DDSketch
	tickDuration *ddsketch.DDSketch
}

func newStats(accuracy float64) (*Stats, error) {
	temperature, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, err
	}
	tickDuration, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, err
	}

	return &Stats{
		sensorFailures: make(map[string]uint64),
		storeFailures:  make(map[string]uint64),
		temperature:    temperature,
		tickDuration:   tickDuration,
	}, nil
}

func (s *Stats) recordTick(res TickResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	s.lastTickAt = res.Started
	s.tickDuration.Add(float64(res.Duration) / float64(time.Millisecond))

	if !res.Sampled {
		s.sensorFailures[sensorKind(res.SensorErr)]++
		return
	}

	s.samples++
	n := res.Normalized
	s.last = &n
	s.temperature.Add(n.TemperatureF)

	if res.StoreErr != nil {
		s.storeFailures[storeKind(res.StoreErr)]++
	} else {
		s.persisted++
	}
	if res.Alerted {
		s.alerts++
	}
}

func (s *Stats) recordMissed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missed += uint64(n)
}

// Snapshot returns a copy of the statistics.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Ticks:          s.ticks,
		TicksMissed:    s.missed,
		Samples:        s.samples,
		Persisted:      s.persisted,
		Alerts:         s.alerts,
		SensorFailures: make(map[string]uint64, len(s.sensorFailures)),
		StoreFailures:  make(map[string]uint64, len(s.storeFailures)),
		LastTickAt:     s.lastTickAt,
		TemperatureF:   quantiles(s.temperature),
		TickDurationMs: quantiles(s.tickDuration),
	}
	for k, v := range s.sensorFailures {
		snap.SensorFailures[k] = v
	}
	for k, v := range s.storeFailures {
		snap.StoreFailures[k] = v
	}
	if s.last != nil {
		rec := reading.NewRecord(*s.last)
		snap.Last = &rec
	}
	return snap
}

func quantiles(sketch *ddsketch.DDSketch) *Quantiles {
	if sketch.IsEmpty() {
		return nil
	}
	values, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.95, 0.99})
	if err != nil {
		return nil
	}
	return &Quantiles{P50: values[0], P95: values[1], P99: values[2]}
}
