package planar

// I420ToRGBA converts planar I420 to packed RGBA with a BT.601 integer
// approximation. It does nothing when the buffers are too small.
func I420ToRGBA(y, u, v []byte, w, h int, out []byte) {
	if w <= 0 || h <= 0 {
		return
	}
	cw := w / 2
	if len(y) < w*h || len(u) < cw*(h/2) || len(v) < cw*(h/2) || len(out) < ColorSize(w, h) {
		return
	}
	for yy := 0; yy < h; yy++ {
		crow := (yy / 2) * cw
		for xx := 0; xx < w; xx++ {
			c := int(y[yy*w+xx]) - 16
			d := int(u[crow+xx/2]) - 128
			e := int(v[crow+xx/2]) - 128
			if c < 0 {
				c = 0
			}
			off := (yy*w + xx) * 4
			out[off+0] = clamp8((298*c + 409*e + 128) >> 8)
			out[off+1] = clamp8((298*c - 100*d - 208*e + 128) >> 8)
			out[off+2] = clamp8((298*c + 516*d + 128) >> 8)
			out[off+3] = 255
		}
	}
}

// FrameToRGBA converts a packed I420 frame into a new RGBA buffer.
func FrameToRGBA(f PackedFrame) []byte {
	out := make([]byte, ColorSize(f.Width, f.Height))
	I420ToRGBA(f.Y(), f.U(), f.V(), f.Width, f.Height, out)
	return out
}

// RGBAToI420 converts packed RGBA (w*h*4) to planar I420, averaging each
// 2×2 block for chroma. Width and height must be even.
func RGBAToI420(rgba []byte, w, h int, y, u, v []byte) {
	for yrow := 0; yrow < h; yrow++ {
		for x := 0; x < w; x++ {
			off := (yrow*w + x) * 4
			r := int(rgba[off+0])
			g := int(rgba[off+1])
			b := int(rgba[off+2])
			y[yrow*w+x] = clamp8(((66*r + 129*g + 25*b + 128) >> 8) + 16)
		}
	}
	cw := w / 2
	for yrow := 0; yrow < h; yrow += 2 {
		for x := 0; x < w; x += 2 {
			var rSum, gSum, bSum int
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					off := ((yrow+dy)*w + (x + dx)) * 4
					rSum += int(rgba[off+0])
					gSum += int(rgba[off+1])
					bSum += int(rgba[off+2])
				}
			}
			r, g, b := rSum>>2, gSum>>2, bSum>>2
			u[(yrow/2)*cw+x/2] = clamp8(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
			v[(yrow/2)*cw+x/2] = clamp8(((112*r - 94*g - 18*b + 128) >> 8) + 128)
		}
	}
}

func clamp8(x int) byte {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return byte(x)
}
