package display

import (
	"sync"
	"time"
)

// FPSMeter counts ticks per one second window.
type FPSMeter struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	count  int
	latest float64
}

// NewFPSMeter creates a meter using the wall clock.
func NewFPSMeter() *FPSMeter {
	return &FPSMeter{now: time.Now}
}

// Tick records one frame.
func (m *FPSMeter) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.start.IsZero() {
		m.start = now
		return
	}
	m.count++
	if elapsed := now.Sub(m.start); elapsed >= time.Second {
		m.latest = float64(m.count) / elapsed.Seconds()
		m.count = 0
		m.start = now
	}
}

// FPS returns the rate measured over the last completed window, or zero when
// no window completed within the last two seconds.
func (m *FPSMeter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.start.IsZero() || m.now().Sub(m.start) > 2*time.Second {
		return 0
	}
	return m.latest
}
