package panels

import (
	"fmt"
	"time"

	"github.com/kychandar/hammer/ds"
)

const (
	rateSamples = 100
	rateWindow  = 10 * time.Second
)

type Received struct {
	Sample     ds.Sample
	ReceivedAt time.Time
}

// KeyHistory keeps the newest samples for one concrete key in a ring.
type KeyHistory struct {
	Key   string
	Total int

	ring     []Received
	start    int
	arrivals []time.Time
}

func newKeyHistory(key string, capacity int) *KeyHistory {
	return &KeyHistory{Key: key, ring: make([]Received, 0, capacity)}
}

func (h *KeyHistory) push(r Received) {
	h.Total++
	if len(h.ring) < cap(h.ring) {
		h.ring = append(h.ring, r)
	} else {
		h.ring[h.start] = r
		h.start = (h.start + 1) % len(h.ring)
	}

	h.arrivals = append(h.arrivals, r.ReceivedAt)
	if len(h.arrivals) > rateSamples {
		h.arrivals = h.arrivals[len(h.arrivals)-rateSamples:]
	}
}

// Samples returns the kept samples, oldest first.
func (h *KeyHistory) Samples() []Received {
	out := make([]Received, 0, len(h.ring))
	out = append(out, h.ring[h.start:]...)
	return append(out, h.ring[:h.start]...)
}

func (h *KeyHistory) Latest() (Received, bool) {
	if len(h.ring) == 0 {
		return Received{}, false
	}
	i := h.start - 1
	if i < 0 {
		i = len(h.ring) - 1
	}
	return h.ring[i], true
}

// Rate is the receive frequency in Hz over recent arrivals. Once the key
// has been silent for more than a second it shows the silence instead.
func (h *KeyHistory) Rate(now time.Time) string {
	if len(h.arrivals) == 0 {
		return ""
	}
	last := h.arrivals[len(h.arrivals)-1]
	if idle := now.Sub(last); idle > time.Second {
		return fmt.Sprintf("%d s", int(idle.Seconds()))
	}

	first := len(h.arrivals) - 1
	for first > 0 && last.Sub(h.arrivals[first-1]) <= rateWindow {
		first--
	}
	span := last.Sub(h.arrivals[first])
	if span <= 0 {
		return ""
	}
	hz := float64(len(h.arrivals)-1-first) / span.Seconds()
	return fmt.Sprintf("%.1f Hz", hz)
}

func (h *KeyHistory) resize(capacity int) {
	kept := h.Samples()
	if len(kept) > capacity {
		kept = kept[len(kept)-capacity:]
	}
	h.ring = append(make([]Received, 0, capacity), kept...)
	h.start = 0
}
