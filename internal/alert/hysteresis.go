package alert

import (
	"sync"
	"time"

	"github.com/xtxerr/heatwatch/internal/reading"
)

// Hysteresis limits how often one episode alerts. An episode is a run of
// consecutive readings at or above the threshold; the first reading below
// it ends the episode and resets both limits.
//
// Time is measured on capture timestamps, so a replay of the same readings
// makes the same decisions.
type Hysteresis struct {
	next          Evaluator
	cooldown      time.Duration
	maxPerEpisode int

	mu         sync.Mutex
	inEpisode  bool
	sent       int
	lastSentMs int64
	suppressed uint64
}

// NewHysteresis wraps next. A zero cooldown or maxPerEpisode disables that
// limit.
func NewHysteresis(next Evaluator, cooldown time.Duration, maxPerEpisode int) *Hysteresis {
	return &Hysteresis{
		next:          next,
		cooldown:      cooldown,
		maxPerEpisode: maxPerEpisode,
	}
}

// Evaluate implements Evaluator.
func (h *Hysteresis) Evaluate(n reading.Normalized, t reading.Threshold) (Event, bool) {
	ev, ok := h.next.Evaluate(n, t)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !ok {
		if h.inEpisode {
			log.Info("temperature back below threshold",
				"temperature_f", n.TemperatureF, "alerts_sent", h.sent)
		}
		h.inEpisode = false
		h.sent = 0
		return Event{}, false
	}

	if !h.inEpisode {
		h.inEpisode = true
		h.sent = 0
	}

	if h.maxPerEpisode > 0 && h.sent >= h.maxPerEpisode {
		h.suppressed++
		log.Debug("alert suppressed: episode cap reached", "cap", h.maxPerEpisode)
		return Event{}, false
	}

	if h.cooldown > 0 && h.sent > 0 && n.CapturedAt-h.lastSentMs < h.cooldown.Milliseconds() {
		h.suppressed++
		log.Debug("alert suppressed: cooldown", "cooldown", h.cooldown)
		return Event{}, false
	}

	h.sent++
	h.lastSentMs = n.CapturedAt
	return ev, true
}

// Suppressed returns how many alerts were withheld.
func (h *Hysteresis) Suppressed() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.suppressed
}
