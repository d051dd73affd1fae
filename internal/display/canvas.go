package display

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"camview/internal/planar"
)

// CanvasBackend renders into an in-memory RGBA canvas. The texture is
// reused while the frame size stays the same, and the quad is drawn by
// nearest-neighbour scaling the texture over the whole canvas. Each Swap
// publishes an immutable copy of the canvas for readers on other goroutines.
type CanvasBackend struct {
	viewW, viewH int
	background   *image.Uniform

	texture *image.RGBA
	canvas  *image.RGBA

	snapshot atomic.Pointer[image.RGBA]
}

// NewCanvasBackend creates a backend with a fixed viewW×viewH canvas. A zero
// viewport makes the canvas follow the size of the uploaded frames.
func NewCanvasBackend(viewW, viewH int, background color.RGBA) *CanvasBackend {
	b := &CanvasBackend{
		viewW:      viewW,
		viewH:      viewH,
		background: image.NewUniform(background),
	}
	if viewW > 0 && viewH > 0 {
		b.canvas = image.NewRGBA(image.Rect(0, 0, viewW, viewH))
	}
	return b
}

// Clear implements Backend.
func (b *CanvasBackend) Clear() {
	if b.canvas == nil {
		return
	}
	xdraw.Draw(b.canvas, b.canvas.Bounds(), b.background, image.Point{}, xdraw.Src)
}

// Upload implements Backend.
func (b *CanvasBackend) Upload(frame *planar.ColorFrame) error {
	if !frame.Consistent() {
		return fmt.Errorf("frame %dx%d has %d bytes", frame.Width, frame.Height, len(frame.Data))
	}
	r := image.Rect(0, 0, frame.Width, frame.Height)
	if b.texture == nil || b.texture.Rect != r {
		b.texture = image.NewRGBA(r)
	}
	copy(b.texture.Pix, frame.Data)
	if b.viewW <= 0 || b.viewH <= 0 {
		if b.canvas == nil || b.canvas.Rect != r {
			b.canvas = image.NewRGBA(r)
		}
	}
	return nil
}

// DrawQuad implements Backend.
func (b *CanvasBackend) DrawQuad() error {
	if b.texture == nil || b.canvas == nil {
		return fmt.Errorf("no texture uploaded")
	}
	xdraw.NearestNeighbor.Scale(b.canvas, b.canvas.Bounds(), b.texture, b.texture.Bounds(), xdraw.Src, nil)
	return nil
}

// Swap implements Backend.
func (b *CanvasBackend) Swap() {
	if b.canvas == nil {
		return
	}
	snap := image.NewRGBA(b.canvas.Rect)
	copy(snap.Pix, b.canvas.Pix)
	b.snapshot.Store(snap)
}

// Snapshot returns the last published canvas, or nil before the first
// render. The image must not be modified.
func (b *CanvasBackend) Snapshot() *image.RGBA {
	return b.snapshot.Load()
}

// Size returns the fixed viewport size, or zeros when the canvas follows the
// frame size.
func (b *CanvasBackend) Size() (int, int) {
	return b.viewW, b.viewH
}

// Next returns the pixels of the last published canvas. It reports true
// even before the first render, with a nil buffer, so pollers keep polling.
func (b *CanvasBackend) Next() ([]byte, bool) {
	snap := b.snapshot.Load()
	if snap == nil {
		return nil, true
	}
	return snap.Pix, true
}
