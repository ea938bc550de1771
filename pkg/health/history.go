package health

import (
	"sync"
	"time"
)

const historyCapacity = 20

// Sample is one recorded probe outcome, exposed to operators debugging a
// flapping model (spec's HealthSample entity).
type Sample struct {
	When    time.Time `json:"when"`
	Outcome Outcome   `json:"outcome"`
	Status  int       `json:"http_status,omitempty"`
	RTT     time.Duration `json:"rtt_ns"`
}

// History keeps the last historyCapacity samples per model id in a ring
// buffer. It is never persisted — restarting the process drops it.
type History struct {
	mu      sync.Mutex
	samples map[string][]Sample
}

// NewHistory builds an empty History.
func NewHistory() *History {
	return &History{samples: make(map[string][]Sample)}
}

// Record appends a sample for modelID, evicting the oldest entry once the
// ring is full.
func (h *History) Record(modelID string, s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.samples[modelID]
	list = append(list, s)
	if len(list) > historyCapacity {
		list = list[len(list)-historyCapacity:]
	}
	h.samples[modelID] = list
}

// For returns a copy of the recorded samples for modelID, oldest first.
func (h *History) For(modelID string) []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.samples[modelID]
	out := make([]Sample, len(list))
	copy(out, list)
	return out
}
