// Package capture produces multi-plane camera images. Sources deliver each
// image synchronously to a Handler and recycle the underlying buffer as soon
// as the handler returns, so handlers must copy anything they keep.
package capture

import (
	"context"
	"fmt"
	"os"
	"strings"

	"camview/internal/planar"
)

// Handler receives one image. The plane buffers are only valid until the
// handler returns.
type Handler func(img planar.Image)

// Source delivers images to h until ctx is done or the input ends.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// Options selects and configures a source.
type Options struct {
	Kind   string // synthetic, file or ffmpeg
	Input  string // file path, or ffmpeg input (path/URL or raw input arguments)
	Format planar.Format
	Width  int
	Height int
	FPS    int
	Loop   bool   // rewind files at EOF
	Binary string // ffmpeg executable, "ffmpeg" when empty
}

// Open creates the source described by opts.
func Open(opts Options) (Source, error) {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	switch strings.ToLower(opts.Kind) {
	case "", "synthetic":
		return NewSynthetic(opts.Width, opts.Height, opts.FPS), nil
	case "file":
		if opts.Input == "" {
			return nil, fmt.Errorf("file source needs an input path")
		}
		return &fileSource{opts: opts}, nil
	case "ffmpeg":
		if opts.Input == "" {
			return nil, fmt.Errorf("ffmpeg source needs an input")
		}
		f := NewFFmpeg(opts.Input, opts.Format, opts.Width, opts.Height)
		if opts.Binary != "" {
			f.Binary = opts.Binary
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown source %q", opts.Kind)
}

type fileSource struct {
	opts Options
}

func (s *fileSource) Run(ctx context.Context, h Handler) error {
	f, err := os.Open(s.opts.Input)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := NewReader(f, s.opts.Format, s.opts.Width, s.opts.Height, s.opts.FPS)
	if err != nil {
		return err
	}
	r.Rewind = s.opts.Loop
	return r.Run(ctx, h)
}
