package transform

import (
	"fmt"

	"camview/internal/planar"
)

// Effect adjusts a packed I420 frame before the final color transform.
type Effect interface {
	Apply(frame planar.PackedFrame) (planar.PackedFrame, error)
	Name() string
}

// Chain runs its effects in order on a private copy of the input and then
// hands the result to Final.
type Chain struct {
	Effects []Effect
	Final   Transformer
}

// Add appends an effect to the chain.
func (c *Chain) Add(e Effect) {
	c.Effects = append(c.Effects, e)
}

// Transform implements Transformer.
func (c *Chain) Transform(data []byte, width, height int) ([]byte, error) {
	if c.Final == nil {
		return nil, fmt.Errorf("chain has no final transform")
	}
	frame := planar.PackedFrame{Width: width, Height: height, Data: append([]byte(nil), data...)}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	for i, e := range c.Effects {
		next, err := e.Apply(frame)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s) failed: %w", i, e.Name(), err)
		}
		frame = next
	}
	return c.Final.Transform(frame.Data, frame.Width, frame.Height)
}

// Brightness shifts luma by a fixed amount in [-255, 255].
type Brightness struct {
	adjustment int
}

// NewBrightness clamps adjustment to [-255, 255].
func NewBrightness(adjustment int) *Brightness {
	if adjustment < -255 {
		adjustment = -255
	}
	if adjustment > 255 {
		adjustment = 255
	}
	return &Brightness{adjustment: adjustment}
}

// Apply modifies the luma block in place; the chain owns the frame.
func (b *Brightness) Apply(frame planar.PackedFrame) (planar.PackedFrame, error) {
	y := frame.Y()
	for i, px := range y {
		y[i] = clampByte(int(px) + b.adjustment)
	}
	return frame, nil
}

// Name implements Effect.
func (b *Brightness) Name() string { return fmt.Sprintf("Brightness(%+d)", b.adjustment) }

// Contrast scales luma around mid-gray. Factors are clamped to [0, 4].
type Contrast struct {
	factor float64
}

// NewContrast creates a contrast effect; 1.0 leaves the frame unchanged.
func NewContrast(factor float64) *Contrast {
	if factor < 0 {
		factor = 0
	}
	if factor > 4 {
		factor = 4
	}
	return &Contrast{factor: factor}
}

// Apply modifies the luma block in place; the chain owns the frame.
func (c *Contrast) Apply(frame planar.PackedFrame) (planar.PackedFrame, error) {
	y := frame.Y()
	for i, px := range y {
		y[i] = clampByte(int((float64(px)-128)*c.factor + 128.5))
	}
	return frame, nil
}

// Name implements Effect.
func (c *Contrast) Name() string { return fmt.Sprintf("Contrast(%.2f)", c.factor) }

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
