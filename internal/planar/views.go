package planar

import (
	"fmt"
	"strings"
)

// Format identifies a raw camera frame layout.
type Format int

const (
	FormatI420 Format = iota
	FormatNV12
	FormatNV21
	FormatUYVY
)

// ParseFormat maps a format name (or its ffmpeg pix_fmt alias) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i420", "yuv420p":
		return FormatI420, nil
	case "nv12":
		return FormatNV12, nil
	case "nv21":
		return FormatNV21, nil
	case "uyvy", "uyvy422":
		return FormatUYVY, nil
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

// String returns the ffmpeg pix_fmt name of the format.
func (f Format) String() string {
	switch f {
	case FormatI420:
		return "yuv420p"
	case FormatNV12:
		return "nv12"
	case FormatNV21:
		return "nv21"
	case FormatUYVY:
		return "uyvy422"
	}
	return "unknown"
}

// RawSize is the byte size of one contiguous frame in format f.
func RawSize(f Format, w, h int) int {
	if f == FormatUYVY {
		return w * h * 2
	}
	return PackedSize(w, h)
}

// View describes a contiguous raw frame as a multi-plane Image without
// copying. The returned planes alias buf.
func View(f Format, buf []byte, w, h int) (Image, error) {
	if err := checkDims(w, h); err != nil {
		return Image{}, err
	}
	if len(buf) < RawSize(f, w, h) {
		return Image{}, fmt.Errorf("%w: %s frame %dx%d has %d bytes, want %d",
			ErrInvalidImageShape, f, w, h, len(buf), RawSize(f, w, h))
	}
	ys := w * h
	cs := (w / 2) * (h / 2)
	img := Image{Width: w, Height: h}
	switch f {
	case FormatI420:
		img.Planes[0] = Plane{Data: buf[:ys], RowStride: w, PixelStride: 1}
		img.Planes[1] = Plane{Data: buf[ys : ys+cs], RowStride: w / 2, PixelStride: 1}
		img.Planes[2] = Plane{Data: buf[ys+cs : ys+2*cs], RowStride: w / 2, PixelStride: 1}
	case FormatNV12, FormatNV21:
		return SemiPlanarView(buf, w, h, w, f == FormatNV21)
	case FormatUYVY:
		// U0 Y0 V0 Y1 per pixel pair; chroma rows come from even lines only.
		img.Planes[0] = Plane{Data: buf[1:], RowStride: 2 * w, PixelStride: 2}
		img.Planes[1] = Plane{Data: buf[0:], RowStride: 4 * w, PixelStride: 4}
		img.Planes[2] = Plane{Data: buf[2:], RowStride: 4 * w, PixelStride: 4}
	default:
		return Image{}, fmt.Errorf("%w: unsupported format %d", ErrInvalidImageShape, int(f))
	}
	return img, nil
}

// SemiPlanarSize is the buffer size of a semi-planar frame whose luma and
// interleaved chroma rows are rowStride bytes apart.
func SemiPlanarSize(h, rowStride int) int {
	return rowStride*h + rowStride*(h/2)
}

// SemiPlanarView describes a semi-planar (NV12, or NV21 when vu is set) frame
// with padded rows. Chroma samples are interleaved, so both chroma planes
// have a pixel stride of 2 and alias the same buffer.
func SemiPlanarView(buf []byte, w, h, rowStride int, vu bool) (Image, error) {
	if err := checkDims(w, h); err != nil {
		return Image{}, err
	}
	if rowStride < w {
		return Image{}, fmt.Errorf("%w: row stride %d below width %d", ErrInvalidImageShape, rowStride, w)
	}
	if len(buf) < SemiPlanarSize(h, rowStride) {
		return Image{}, fmt.Errorf("%w: semi-planar frame has %d bytes, want %d",
			ErrInvalidImageShape, len(buf), SemiPlanarSize(h, rowStride))
	}
	ys := rowStride * h
	first := Plane{Data: buf[ys:], RowStride: rowStride, PixelStride: 2}
	second := Plane{Data: buf[ys+1:], RowStride: rowStride, PixelStride: 2}
	img := Image{Width: w, Height: h}
	img.Planes[0] = Plane{Data: buf[:ys], RowStride: rowStride, PixelStride: 1}
	if vu {
		img.Planes[1], img.Planes[2] = second, first
	} else {
		img.Planes[1], img.Planes[2] = first, second
	}
	return img, nil
}
