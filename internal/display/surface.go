package display

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"camview/internal/logging"
	"camview/internal/planar"
)

// Backend is the rendering backend that owns the texture, the quad program
// and draw submission. All methods are called from the render goroutine only.
type Backend interface {
	// Clear fills the target with the background color.
	Clear()
	// Upload replaces the texture contents with frame.
	Upload(frame *planar.ColorFrame) error
	// DrawQuad draws the texture as a full-screen quad.
	DrawQuad() error
	// Swap publishes the finished target.
	Swap()
}

// State is the surface lifecycle state.
type State int

const (
	Empty State = iota
	Loaded
)

func (s State) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "empty"
}

// Stats is a snapshot of surface counters.
type Stats struct {
	Presented uint64  `json:"presented"`
	Rejected  uint64  `json:"rejected"`
	Dropped   uint64  `json:"dropped"`
	Renders   uint64  `json:"renders"`
	Uploads   uint64  `json:"uploads"`
	FPS       float64 `json:"fps"`
}

// Surface decouples frame producers from the display refresh. Present is a
// pointer swap and never blocks; Render uploads and draws on the display's
// own schedule.
type Surface struct {
	slot    Slot
	backend Backend
	log     *logrus.Entry
	fps     *FPSMeter
	dirty   chan struct{}

	renderMu sync.Mutex
	uploaded *planar.ColorFrame // guarded by renderMu
	shown    atomic.Pointer[planar.ColorFrame]

	presented atomic.Uint64
	rejected  atomic.Uint64
	dropped   atomic.Uint64
	renders   atomic.Uint64
	uploads   atomic.Uint64
	lastWarn  atomic.Int64
}

// NewSurface creates an empty surface drawing through backend.
func NewSurface(backend Backend) *Surface {
	return &Surface{
		backend: backend,
		log:     logrus.WithField("component", "display"),
		fps:     NewFPSMeter(),
		dirty:   make(chan struct{}, 1),
	}
}

// Present installs frame as the latest frame and schedules a redraw. Frames
// whose data does not match their dimensions are dropped.
func (s *Surface) Present(frame planar.ColorFrame) {
	if !frame.Consistent() {
		s.rejected.Add(1)
		if logging.Every(&s.lastWarn, time.Second) {
			s.log.WithFields(logrus.Fields{
				"function": "Surface.Present",
				"width":    frame.Width,
				"height":   frame.Height,
				"bytes":    len(frame.Data),
			}).Warn("Dropping inconsistent frame")
		}
		return
	}
	prev := s.slot.Store(frame)
	s.presented.Add(1)
	if prev != nil && prev != s.shown.Load() {
		s.dropped.Add(1)
	}
	s.markDirty()
}

func (s *Surface) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Render draws the current slot contents. An empty slot clears to the
// background. The texture is only re-uploaded when a new frame arrived since
// the previous render. Render never waits for frames.
func (s *Surface) Render() error {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.renders.Add(1)
	defer s.backend.Swap()
	s.backend.Clear()

	f, ok := s.slot.Load()
	if !ok {
		return nil
	}
	var uploadErr error
	if f != s.uploaded {
		if err := s.backend.Upload(f); err != nil {
			// Keep drawing the previous texture and retry on the next tick.
			uploadErr = fmt.Errorf("upload frame %d (%dx%d): %w", f.Seq, f.Width, f.Height, err)
			s.markDirty()
		} else {
			s.uploaded = f
			s.shown.Store(f)
			s.uploads.Add(1)
			s.fps.Tick()
		}
	}
	if s.uploaded == nil {
		return uploadErr
	}
	if err := s.backend.DrawQuad(); err != nil {
		return err
	}
	return uploadErr
}

// Redraw signals that a frame was presented since the last receive.
func (s *Surface) Redraw() <-chan struct{} {
	return s.dirty
}

// Run renders once, then on every refresh tick for which a redraw was
// scheduled, until ctx is done.
func (s *Surface) Run(ctx context.Context, refresh time.Duration) {
	if refresh <= 0 {
		refresh = time.Second / 60
	}
	s.renderLogged()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-s.dirty:
				s.renderLogged()
			default:
			}
		}
	}
}

func (s *Surface) renderLogged() {
	if err := s.Render(); err != nil && logging.Every(&s.lastWarn, time.Second) {
		s.log.WithFields(logrus.Fields{
			"function": "Surface.Run",
			"error":    err,
		}).Warn("Render failed")
	}
}

// Current returns the frame in the slot, or ErrSlotUnavailable.
func (s *Surface) Current() (planar.ColorFrame, error) {
	f, ok := s.slot.Load()
	if !ok {
		return planar.ColorFrame{}, ErrSlotUnavailable
	}
	return *f, nil
}

// State reports Empty until the first frame is presented, Loaded after.
func (s *Surface) State() State {
	if _, ok := s.slot.Load(); ok {
		return Loaded
	}
	return Empty
}

// Stats returns a snapshot of the surface counters.
func (s *Surface) Stats() Stats {
	return Stats{
		Presented: s.presented.Load(),
		Rejected:  s.rejected.Load(),
		Dropped:   s.dropped.Load(),
		Renders:   s.renders.Load(),
		Uploads:   s.uploads.Load(),
		FPS:       s.fps.FPS(),
	}
}
