package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/xtxerr/heatwatch/internal/reading"
)

// Simulated value ranges.
const (
	SimMinTemperatureC = 15.0
	SimMaxTemperatureC = 35.0
	SimMinMoisture     = 200
	SimMaxMoisture     = 900
)

// Sim produces random readings for running without hardware. Temperatures
// are in Celsius with two decimals.
type Sim struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSim creates a simulated sensor.
func NewSim(seed int64) *Sim {
	return &Sim{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Read returns the next simulated reading.
func (s *Sim) Read(ctx context.Context) (reading.Reading, error) {
	if err := cancelled(ctx); err != nil {
		return reading.Reading{}, err
	}

	s.mu.Lock()
	temp := SimMinTemperatureC + s.rng.Float64()*(SimMaxTemperatureC-SimMinTemperatureC)
	moisture := SimMinMoisture + s.rng.Int63n(SimMaxMoisture-SimMinMoisture+1)
	s.mu.Unlock()

	return reading.Reading{
		RawTemperature: math.Round(temp*100) / 100,
		Unit:           reading.Celsius,
		Moisture:       moisture,
		CapturedAt:     s.now().UnixMilli(),
	}, nil
}

// Close implements Port.
func (s *Sim) Close() error {
	return nil
}
