// Package planar holds the frame data model shared by the capture, transform
// and display stages, and the routines that reshape camera-native multi-plane
// images into canonical tightly packed I420.
package planar

import (
	"errors"
	"fmt"
)

// ErrInvalidImageShape reports camera-provided dimensions or strides that
// cannot describe a 4:2:0 image.
var ErrInvalidImageShape = errors.New("invalid image shape")

// Plane is one sampled plane of an image. RowStride is the byte distance
// between the starts of consecutive rows; PixelStride is the byte distance
// between consecutive samples within a row.
//
// Width and Height optionally declare the plane's sample grid. Zero means the
// grid is implied by the image size.
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
	Width       int
	Height      int
}

// Image is a multi-plane 4:2:0 image: luma followed by the two chroma planes.
// The plane buffers are borrowed from the capture source and are only valid
// while the capture callback runs.
type Image struct {
	Width  int
	Height int
	Planes [3]Plane
}

// PackedSize is the byte size of a tightly packed I420 frame.
func PackedSize(w, h int) int {
	return w*h + 2*(w/2)*(h/2)
}

// ColorSize is the byte size of a packed RGBA frame.
func ColorSize(w, h int) int {
	return w * h * 4
}

// PackedFrame is a tightly packed I420 frame: the Y block, then U, then V.
// It must not be modified once created.
type PackedFrame struct {
	Width  int
	Height int
	Data   []byte
}

// Y returns the luma block.
func (f PackedFrame) Y() []byte { return f.Data[:f.Width*f.Height] }

// U returns the first chroma block.
func (f PackedFrame) U() []byte {
	ys := f.Width * f.Height
	return f.Data[ys : ys+f.chromaSize()]
}

// V returns the second chroma block.
func (f PackedFrame) V() []byte {
	ys := f.Width * f.Height
	return f.Data[ys+f.chromaSize():]
}

func (f PackedFrame) chromaSize() int { return (f.Width / 2) * (f.Height / 2) }

// Validate checks that the dimensions are even and the buffer has the exact
// packed size.
func (f PackedFrame) Validate() error {
	if err := checkDims(f.Width, f.Height); err != nil {
		return err
	}
	if len(f.Data) != PackedSize(f.Width, f.Height) {
		return fmt.Errorf("%w: packed frame %dx%d has %d bytes, want %d",
			ErrInvalidImageShape, f.Width, f.Height, len(f.Data), PackedSize(f.Width, f.Height))
	}
	return nil
}

// ColorFrame is a packed RGBA frame, four bytes per pixel, row-major with no
// padding. Seq is the sequence number of the submission that produced it.
type ColorFrame struct {
	Width  int
	Height int
	Data   []byte
	Seq    uint64
}

// Consistent reports whether the buffer length matches the dimensions.
func (f ColorFrame) Consistent() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) == ColorSize(f.Width, f.Height)
}

func checkDims(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: non-positive size %dx%d", ErrInvalidImageShape, w, h)
	}
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: odd size %dx%d", ErrInvalidImageShape, w, h)
	}
	return nil
}
