package transform

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"camview/internal/logging"
	"camview/internal/planar"
)

// Sink receives transformed frames. The display surface is the usual sink.
type Sink interface {
	Present(frame planar.ColorFrame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frame planar.ColorFrame)

// Present calls f.
func (f SinkFunc) Present(frame planar.ColorFrame) { f(frame) }

// Stats is a snapshot of gateway activity.
type Stats struct {
	Submitted uint64 `json:"submitted"` // accepted by Submit
	Completed uint64 `json:"completed"` // delivered to the sink
	Failed    uint64 `json:"failed"`    // dropped with ErrTransformFailure
	Discarded uint64 `json:"discarded"` // finished after Close, never delivered
	Rejected  uint64 `json:"rejected"`  // refused by Submit (closed or over the in-flight cap)
	InFlight  int64  `json:"in_flight"`
}

// Gateway dispatches packed frames to a Transformer off the caller's goroutine
// and presents each successful result to the sink as soon as it completes.
// Results are not reordered: whichever transform finishes last wins the
// display. Failed frames are dropped without retry.
type Gateway struct {
	t           Transformer
	sink        Sink
	log         *logrus.Entry
	maxInFlight int64

	mu     sync.RWMutex // guards closed against wg.Add
	closed bool
	wg     sync.WaitGroup

	seq       atomic.Uint64
	inFlight  atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
	rejected  atomic.Uint64
	lastWarn  atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxInFlight caps the number of concurrent transforms. Frames submitted
// over the cap are dropped, not queued. Zero means no cap.
func WithMaxInFlight(n int) Option {
	return func(g *Gateway) { g.maxInFlight = int64(n) }
}

// WithLogger sets the log entry used for failures.
func WithLogger(l *logrus.Entry) Option {
	return func(g *Gateway) { g.log = l }
}

// NewGateway creates a gateway delivering t's results to sink.
func NewGateway(t Transformer, sink Sink, opts ...Option) *Gateway {
	g := &Gateway{
		t:    t,
		sink: sink,
		log:  logrus.WithField("component", "gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Process runs the transform synchronously on frame. The error wraps
// ErrTransformFailure when the input is malformed, the transform fails or
// panics, or the output is not width*height*4 bytes.
func (g *Gateway) Process(frame planar.PackedFrame) (planar.ColorFrame, error) {
	if err := frame.Validate(); err != nil {
		return planar.ColorFrame{}, fmt.Errorf("%w: %v", ErrTransformFailure, err)
	}
	out, err := g.call(frame)
	if err != nil {
		return planar.ColorFrame{}, fmt.Errorf("%w: %v", ErrTransformFailure, err)
	}
	if want := planar.ColorSize(frame.Width, frame.Height); len(out) != want {
		return planar.ColorFrame{}, fmt.Errorf("%w: got %d bytes for %dx%d, want %d",
			ErrTransformFailure, len(out), frame.Width, frame.Height, want)
	}
	return planar.ColorFrame{Width: frame.Width, Height: frame.Height, Data: out}, nil
}

func (g *Gateway) call(frame planar.PackedFrame) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	return g.t.Transform(frame.Data, frame.Width, frame.Height)
}

// Submit hands frame to a new transform goroutine and returns immediately.
// The gateway owns frame from here on; callers must not modify it. Submit
// returns false when the gateway is closed or the in-flight cap is reached.
func (g *Gateway) Submit(frame planar.PackedFrame) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		g.rejected.Add(1)
		return false
	}
	if n := g.inFlight.Add(1); g.maxInFlight > 0 && n > g.maxInFlight {
		g.inFlight.Add(-1)
		g.rejected.Add(1)
		if logging.Every(&g.lastWarn, time.Second) {
			g.log.WithFields(logrus.Fields{
				"function":      "Gateway.Submit",
				"max_in_flight": g.maxInFlight,
				"rejected":      g.rejected.Load(),
			}).Warn("Transform capacity reached, dropping frame")
		}
		return false
	}
	seq := g.seq.Add(1)
	g.submitted.Add(1)
	g.wg.Add(1)
	go g.run(seq, frame)
	return true
}

func (g *Gateway) run(seq uint64, frame planar.PackedFrame) {
	defer g.wg.Done()
	defer g.inFlight.Add(-1)

	out, err := g.Process(frame)
	if err != nil {
		g.failed.Add(1)
		fields := logrus.Fields{
			"function": "Gateway.run",
			"seq":      seq,
			"width":    frame.Width,
			"height":   frame.Height,
			"error":    err,
		}
		if logging.Every(&g.lastWarn, time.Second) {
			g.log.WithFields(fields).Warn("Dropping frame")
		} else {
			g.log.WithFields(fields).Debug("Dropping frame")
		}
		return
	}
	out.Seq = seq
	g.deliver(out)
}

// deliver presents out unless the gateway is closed. The read lock is held
// through Present so that no result reaches the sink once Close returns.
func (g *Gateway) deliver(out planar.ColorFrame) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		g.discarded.Add(1)
		return
	}
	g.sink.Present(out)
	g.completed.Add(1)
}

// Close stops accepting frames. Transforms still running finish, but their
// results are discarded. A Present already in progress completes before Close
// returns. Close is idempotent.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Wait blocks until every in-flight transform has returned.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

// Stats returns a snapshot of the gateway counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Submitted: g.submitted.Load(),
		Completed: g.completed.Load(),
		Failed:    g.failed.Load(),
		Discarded: g.discarded.Load(),
		Rejected:  g.rejected.Load(),
		InFlight:  g.inFlight.Load(),
	}
}
