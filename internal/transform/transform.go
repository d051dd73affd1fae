// Package transform hands packed I420 frames to an opaque image transform and
// delivers the resulting RGBA frames to the display.
package transform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransformFailure reports a transform that failed or returned a buffer of
// the wrong size. The affected frame is dropped.
var ErrTransformFailure = errors.New("transform failure")

// Transformer turns a packed I420 buffer (w*h + 2*(w/2)*(h/2) bytes) into a
// packed RGBA buffer (w*h*4 bytes). Implementations may run in-process or
// delegate to another process or host; the gateway does not care.
type Transformer interface {
	Transform(data []byte, width, height int) ([]byte, error)
}

// Func adapts a plain function to the Transformer interface.
type Func func(data []byte, width, height int) ([]byte, error)

// Transform calls f.
func (f Func) Transform(data []byte, width, height int) ([]byte, error) {
	return f(data, width, height)
}

// Options selects and tunes a built-in transform.
type Options struct {
	Brightness int
	Contrast   float64
	EdgeLow    int
	EdgeHigh   int
}

// ByName returns the built-in transform called name: "edges" or "color".
// Brightness and contrast effects run before it when set.
func ByName(name string, opts Options) (Transformer, error) {
	var final Transformer
	switch strings.ToLower(name) {
	case "edges", "canny":
		final = NewEdgeDetect(opts.EdgeLow, opts.EdgeHigh)
	case "color", "passthrough":
		final = ColorConvert{}
	default:
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	chain := &Chain{Final: final}
	if opts.Brightness != 0 {
		chain.Add(NewBrightness(opts.Brightness))
	}
	if opts.Contrast != 0 && opts.Contrast != 1 {
		chain.Add(NewContrast(opts.Contrast))
	}
	if len(chain.Effects) == 0 {
		return final, nil
	}
	return chain, nil
}
