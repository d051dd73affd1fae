package stream

import (
	"sync"

	"github.com/pion/webrtc/v3/pkg/media"
)

// SampleBroadcaster fans encoded samples out to multiple sinks. Each sink has
// its own small queue so a slow connection doesn't block others.
type SampleBroadcaster struct {
	mu    sync.RWMutex
	sinks map[*sink]struct{}
}

type sink struct {
	enqueue func(media.Sample) bool
	stop    func()
}

// NewSampleBroadcaster creates a broadcaster. Call Close when done.
func NewSampleBroadcaster() *SampleBroadcaster {
	return &SampleBroadcaster{sinks: make(map[*sink]struct{})}
}

// Add registers a sink and returns a function that removes it. remove is
// idempotent.
func (b *SampleBroadcaster) Add(w SampleWriter) (remove func()) {
	s := &sink{}
	s.enqueue, s.stop = newAsyncSampleWriter(w)
	b.mu.Lock()
	b.sinks[s] = struct{}{}
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		_, ok := b.sinks[s]
		delete(b.sinks, s)
		b.mu.Unlock()
		if ok {
			s.stop()
		}
	}
}

// Len returns the number of registered sinks.
func (b *SampleBroadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks)
}

// WriteSample implements SampleWriter, so the broadcaster can stand in for a
// single track. Samples are dropped for sinks whose queue is full.
func (b *SampleBroadcaster) WriteSample(sm media.Sample) error {
	b.mu.RLock()
	for s := range b.sinks {
		s.enqueue(sm)
	}
	b.mu.RUnlock()
	return nil
}

// Close stops all sink workers and clears the list.
func (b *SampleBroadcaster) Close() {
	b.mu.Lock()
	for s := range b.sinks {
		s.stop()
		delete(b.sinks, s)
	}
	b.mu.Unlock()
}
