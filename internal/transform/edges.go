package transform

import "camview/internal/planar"

const (
	defaultEdgeLow  = 80
	defaultEdgeHigh = 200
)

// EdgeDetect renders the Canny edge map of the frame as white edges on an
// opaque black background.
type EdgeDetect struct {
	Low  int
	High int
}

// NewEdgeDetect creates an edge detector with hysteresis thresholds low and
// high; non-positive values fall back to 80 and 200.
func NewEdgeDetect(low, high int) *EdgeDetect {
	if low <= 0 {
		low = defaultEdgeLow
	}
	if high <= 0 {
		high = defaultEdgeHigh
	}
	if low > high {
		low, high = high, low
	}
	return &EdgeDetect{Low: low, High: high}
}

// Transform implements Transformer.
func (e *EdgeDetect) Transform(data []byte, width, height int) ([]byte, error) {
	f := planar.PackedFrame{Width: width, Height: height, Data: data}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	gray := rgbaToGray(planar.FrameToRGBA(f), width, height)
	edges := canny(gray, width, height, e.Low, e.High)

	out := make([]byte, planar.ColorSize(width, height))
	for i, on := range edges {
		var v byte
		if on {
			v = 255
		}
		out[i*4+0], out[i*4+1], out[i*4+2], out[i*4+3] = v, v, v, 255
	}
	return out, nil
}

// rgbaToGray uses the BT.601 luma weights in 14-bit fixed point.
func rgbaToGray(rgba []byte, w, h int) []byte {
	gray := make([]byte, w*h)
	for i := range gray {
		r, g, b := int(rgba[i*4]), int(rgba[i*4+1]), int(rgba[i*4+2])
		gray[i] = byte((r*4899 + g*9617 + b*1868 + 8192) >> 14)
	}
	return gray
}

// canny returns the edge mask of a gray image: 3×3 Sobel gradients with L1
// magnitude, non-maximum suppression and hysteresis between low and high.
func canny(gray []byte, w, h, low, high int) []bool {
	at := func(x, y int) int {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return int(gray[y*w+x])
	}

	dx := make([]int, w*h)
	dy := make([]int, w*h)
	mag := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*w + x
			dx[i], dy[i] = gx, gy
			mag[i] = abs(gx) + abs(gy)
		}
	}
	magAt := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// tan(22.5°) and tan(67.5°) in 15-bit fixed point.
	const (
		shift = 15
		tg22  = 13573
		tg67  = 79109
	)
	const (
		none = iota
		weak
		strong
	)
	class := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ay := abs(dy[i]) << shift
			tg22x := abs(dx[i]) * tg22
			tg67x := abs(dx[i]) * tg67
			var a, b int
			switch {
			case ay < tg22x:
				a, b = magAt(x-1, y), magAt(x+1, y)
			case ay > tg67x:
				a, b = magAt(x, y-1), magAt(x, y+1)
			case (dx[i] < 0) != (dy[i] < 0):
				a, b = magAt(x+1, y-1), magAt(x-1, y+1)
			default:
				a, b = magAt(x-1, y-1), magAt(x+1, y+1)
			}
			if m <= a || m < b {
				continue
			}
			if m > high {
				class[i] = strong
				stack = append(stack, i)
			} else {
				class[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == weak {
					class[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	edges := make([]bool, w*h)
	for i, c := range class {
		edges[i] = c == strong
	}
	return edges
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
