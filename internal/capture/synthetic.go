package capture

import (
	"context"
	"time"

	"camview/internal/planar"
)

const syntheticRowAlign = 64

// Synthetic generates a moving gradient and delivers it the way mobile camera
// drivers do: semi-planar NV21 with rows padded to 64 bytes, so chroma has a
// pixel stride of 2 and every row carries stride padding.
type Synthetic struct {
	w, h, fps int
	rowStride int
	t0        time.Time

	rgba    []byte
	y, u, v []byte
	buf     []byte
}

// NewSynthetic creates a w×h generator at fps frames per second. Odd sizes
// are rounded down to even ones.
func NewSynthetic(w, h, fps int) *Synthetic {
	w, h = w&^1, h&^1
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	if fps <= 0 {
		fps = 30
	}
	stride := (w + syntheticRowAlign - 1) &^ (syntheticRowAlign - 1)
	return &Synthetic{
		w: w, h: h, fps: fps,
		rowStride: stride,
		rgba:      make([]byte, w*h*4),
		y:         make([]byte, w*h),
		u:         make([]byte, (w/2)*(h/2)),
		v:         make([]byte, (w/2)*(h/2)),
		buf:       make([]byte, planar.SemiPlanarSize(h, stride)),
	}
}

// Run implements Source.
func (s *Synthetic) Run(ctx context.Context, h Handler) error {
	s.t0 = time.Now()
	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return nil
		}
		img, err := s.frameAt(time.Since(s.t0).Seconds())
		if err != nil {
			return err
		}
		h(img)
	}
}

// frameAt renders the gradient at time t (seconds) into the recycled buffer.
func (s *Synthetic) frameAt(t float64) (planar.Image, error) {
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			off := (y*s.w + x) * 4
			s.rgba[off+0] = byte((x + int(t*120)) % 256)
			s.rgba[off+1] = byte((y + int(t*80)) % 256)
			s.rgba[off+2] = byte((x + y + int(t*100)) % 256)
			s.rgba[off+3] = 255
		}
	}
	planar.RGBAToI420(s.rgba, s.w, s.h, s.y, s.u, s.v)

	for y := 0; y < s.h; y++ {
		copy(s.buf[y*s.rowStride:], s.y[y*s.w:(y+1)*s.w])
	}
	cw := s.w / 2
	base := s.h * s.rowStride
	for y := 0; y < s.h/2; y++ {
		row := s.buf[base+y*s.rowStride:]
		for x := 0; x < cw; x++ {
			row[2*x] = s.v[y*cw+x]
			row[2*x+1] = s.u[y*cw+x]
		}
	}
	return planar.SemiPlanarView(s.buf, s.w, s.h, s.rowStride, true)
}
