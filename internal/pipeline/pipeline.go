// Package pipeline connects a capture source to the display: each captured
// image is repacked on the capture goroutine, handed to the transform gateway
// and shown by the display surface once its transform completes.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"camview/internal/capture"
	"camview/internal/display"
	"camview/internal/logging"
	"camview/internal/planar"
	"camview/internal/transform"
)

// Options tunes a Pipeline.
type Options struct {
	// OutWidth and OutHeight resize frames before the transform when both are
	// set.
	OutWidth  int
	OutHeight int
	// Refresh is the display refresh period.
	Refresh time.Duration
}

// Snapshot combines the counters of every stage.
type Snapshot struct {
	Capture   CaptureStats    `json:"capture"`
	Transform transform.Stats `json:"transform"`
	Display   display.Stats   `json:"display"`
	State     string          `json:"state"`
}

// Pipeline owns the capture -> repack -> transform -> display flow.
type Pipeline struct {
	src     capture.Source
	gw      *transform.Gateway
	surface *display.Surface
	opts    Options
	log     *logrus.Entry

	counters counters
	lastWarn atomic.Int64
}

// New creates a pipeline. gw must deliver its results to surface.
func New(src capture.Source, gw *transform.Gateway, surface *display.Surface, opts Options) *Pipeline {
	return &Pipeline{
		src:     src,
		gw:      gw,
		surface: surface,
		opts:    opts,
		log:     logrus.WithField("component", "pipeline"),
	}
}

// HandleImage is the capture callback. It copies the image into a packed
// frame before returning, so the source may recycle its buffers right away,
// and never waits on the transform or the display.
func (p *Pipeline) HandleImage(img planar.Image) {
	p.counters.captured.Add(1)
	frame, err := planar.Repack(img)
	if err != nil {
		p.dropInvalid(err, img.Width, img.Height)
		return
	}
	p.counters.repacked.Add(1)

	if p.opts.OutWidth > 0 && p.opts.OutHeight > 0 &&
		(frame.Width != p.opts.OutWidth || frame.Height != p.opts.OutHeight) {
		frame, err = planar.Scale(frame, p.opts.OutWidth, p.opts.OutHeight)
		if err != nil {
			p.dropInvalid(err, img.Width, img.Height)
			return
		}
		p.counters.scaled.Add(1)
	}

	if p.gw.Submit(frame) {
		p.counters.submitted.Add(1)
	} else {
		p.counters.rejected.Add(1)
	}
}

func (p *Pipeline) dropInvalid(err error, w, h int) {
	p.counters.invalid.Add(1)
	fields := logrus.Fields{
		"function": "Pipeline.HandleImage",
		"width":    w,
		"height":   h,
		"error":    err,
	}
	if logging.Every(&p.lastWarn, time.Second) {
		p.log.WithFields(fields).Warn("Dropping malformed image")
	} else {
		p.log.WithFields(fields).Debug("Dropping malformed image")
	}
}

// Run drives the display refresh loop and the capture source until ctx is
// done or the source ends. The gateway is closed on return, so transforms
// still running are discarded.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.surface.Run(ctx, p.opts.Refresh)
	}()

	p.log.WithField("function", "Pipeline.Run").Info("Pipeline started")
	err := p.src.Run(ctx, p.HandleImage)
	p.gw.Close()
	cancel()
	wg.Wait()

	fields := logrus.Fields{"function": "Pipeline.Run"}
	for k, v := range p.counters.snapshot().Map() {
		fields[k] = v
	}
	if err != nil {
		fields["error"] = err
		p.log.WithFields(fields).Error("Capture source failed")
		return err
	}
	p.log.WithFields(fields).Info("Pipeline stopped")
	return nil
}

// Snapshot returns the current counters of all stages.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Capture:   p.counters.snapshot(),
		Transform: p.gw.Stats(),
		Display:   p.surface.Stats(),
		State:     p.surface.State().String(),
	}
}
