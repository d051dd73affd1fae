package planar

import "fmt"

var planeNames = [3]string{"Y", "U", "V"}

// Repack converts a multi-plane 4:2:0 image with arbitrary row and pixel
// strides into a freshly allocated, tightly packed I420 frame.
//
// On failure the returned error wraps ErrInvalidImageShape and no frame is
// produced. Repack keeps no state and may run concurrently on disjoint inputs.
func Repack(img Image) (PackedFrame, error) {
	if err := validateImage(img); err != nil {
		return PackedFrame{}, err
	}
	out := make([]byte, PackedSize(img.Width, img.Height))
	return repack(out, img), nil
}

// RepackInto is Repack writing into dst, which must be exactly
// PackedSize(width, height) bytes long. The returned frame aliases dst.
func RepackInto(dst []byte, img Image) (PackedFrame, error) {
	if err := validateImage(img); err != nil {
		return PackedFrame{}, err
	}
	if len(dst) != PackedSize(img.Width, img.Height) {
		return PackedFrame{}, fmt.Errorf("%w: destination has %d bytes, want %d",
			ErrInvalidImageShape, len(dst), PackedSize(img.Width, img.Height))
	}
	return repack(dst, img), nil
}

func repack(out []byte, img Image) PackedFrame {
	w, h := img.Width, img.Height
	ySize := w * h
	cw, ch := w/2, h/2
	cSize := cw * ch

	copyPlane(out[:ySize], img.Planes[0], w, h)
	copyPlane(out[ySize:ySize+cSize], img.Planes[1], cw, ch)
	copyPlane(out[ySize+cSize:], img.Planes[2], cw, ch)

	return PackedFrame{Width: w, Height: h, Data: out}
}

// copyPlane writes a cols×rows sample grid into dst without stride.
func copyPlane(dst []byte, p Plane, cols, rows int) {
	switch {
	case p.PixelStride == 1 && p.RowStride == cols:
		copy(dst, p.Data[:cols*rows])
	case p.PixelStride == 1:
		for r := 0; r < rows; r++ {
			src := r * p.RowStride
			copy(dst[r*cols:(r+1)*cols], p.Data[src:src+cols])
		}
	default:
		o := 0
		for r := 0; r < rows; r++ {
			i := r * p.RowStride
			for c := 0; c < cols; c++ {
				dst[o] = p.Data[i]
				o++
				i += p.PixelStride
			}
		}
	}
}

func validateImage(img Image) error {
	if err := checkDims(img.Width, img.Height); err != nil {
		return err
	}
	for i, p := range img.Planes {
		cols, rows := img.Width, img.Height
		if i > 0 {
			cols, rows = img.Width/2, img.Height/2
		}
		if err := validatePlane(planeNames[i], p, cols, rows); err != nil {
			return err
		}
	}
	return nil
}

func validatePlane(name string, p Plane, cols, rows int) error {
	if (p.Width != 0 || p.Height != 0) && (p.Width != cols || p.Height != rows) {
		return fmt.Errorf("%w: %s plane declares %dx%d samples, 4:2:0 needs %dx%d",
			ErrInvalidImageShape, name, p.Width, p.Height, cols, rows)
	}
	if p.PixelStride < 1 {
		return fmt.Errorf("%w: %s plane pixel stride %d", ErrInvalidImageShape, name, p.PixelStride)
	}
	if p.RowStride < 0 {
		return fmt.Errorf("%w: %s plane row stride %d", ErrInvalidImageShape, name, p.RowStride)
	}
	// Rows may overlap; the last row is often not padded out to a full row
	// stride.
	need := (rows-1)*p.RowStride + (cols-1)*p.PixelStride + 1
	if len(p.Data) < need {
		return fmt.Errorf("%w: %s plane has %d bytes, needs %d",
			ErrInvalidImageShape, name, len(p.Data), need)
	}
	return nil
}
