package transform

import "camview/internal/planar"

// ColorConvert converts the I420 frame to RGBA without further processing.
type ColorConvert struct{}

// Transform implements Transformer.
func (ColorConvert) Transform(data []byte, width, height int) ([]byte, error) {
	f := planar.PackedFrame{Width: width, Height: height, Data: data}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return planar.FrameToRGBA(f), nil
}
