package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"camview/internal/planar"
)

// Reader reads fixed-size raw frames from an io.Reader into a single
// recycled buffer.
type Reader struct {
	// Rewind seeks back to the start at EOF when the reader is an io.Seeker.
	Rewind bool

	r        io.Reader
	format   planar.Format
	w, h     int
	interval time.Duration
	buf      []byte
}

// NewReader creates a reader of w×h frames in format. A positive fps paces
// delivery; zero delivers frames as fast as they can be read.
func NewReader(r io.Reader, format planar.Format, w, h, fps int) (*Reader, error) {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return nil, fmt.Errorf("%w: reader size %dx%d", planar.ErrInvalidImageShape, w, h)
	}
	rd := &Reader{
		r:      r,
		format: format,
		w:      w,
		h:      h,
		buf:    make([]byte, planar.RawSize(format, w, h)),
	}
	if fps > 0 {
		rd.interval = time.Second / time.Duration(fps)
	}
	return rd, nil
}

// Run implements Source. It returns nil at the end of the input.
func (rd *Reader) Run(ctx context.Context, h Handler) error {
	var ticker *time.Ticker
	if rd.interval > 0 {
		ticker = time.NewTicker(rd.interval)
		defer ticker.Stop()
	}
	frames := 0
	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		if _, err := io.ReadFull(rd.r, rd.buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if s, ok := rd.r.(io.Seeker); ok && rd.Rewind && frames > 0 {
					if _, err := s.Seek(0, io.SeekStart); err != nil {
						return err
					}
					continue
				}
				logrus.WithFields(logrus.Fields{
					"function": "Reader.Run",
					"frames":   frames,
				}).Info("Raw input ended")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		img, err := planar.View(rd.format, rd.buf, rd.w, rd.h)
		if err != nil {
			return err
		}
		h(img)
		frames++
	}
}
