package planar

// Scale resamples a packed I420 frame to w×h with nearest-neighbour
// sampling. It returns f unchanged when the size already matches.
func Scale(f PackedFrame, w, h int) (PackedFrame, error) {
	if err := f.Validate(); err != nil {
		return PackedFrame{}, err
	}
	if err := checkDims(w, h); err != nil {
		return PackedFrame{}, err
	}
	if f.Width == w && f.Height == h {
		return f, nil
	}
	out := PackedFrame{Width: w, Height: h, Data: make([]byte, PackedSize(w, h))}
	scalePlane(f.Y(), f.Width, f.Height, out.Y(), w, h)
	scalePlane(f.U(), f.Width/2, f.Height/2, out.U(), w/2, h/2)
	scalePlane(f.V(), f.Width/2, f.Height/2, out.V(), w/2, h/2)
	return out, nil
}

func scalePlane(src []byte, sw, sh int, dst []byte, dw, dh int) {
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		for x := 0; x < dw; x++ {
			dst[y*dw+x] = src[sy*sw+x*sw/dw]
		}
	}
}
