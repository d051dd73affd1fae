// Package display shows the most recently transformed frame. Producers swap
// frames into a single latest-wins slot; the display refresh loop uploads and
// draws whatever the slot holds on its own schedule.
package display

import (
	"errors"
	"sync/atomic"

	"camview/internal/planar"
)

// ErrSlotUnavailable reports that no frame has been presented yet. Rendering
// an empty slot clears to the background instead of failing.
var ErrSlotUnavailable = errors.New("no frame presented yet")

// Slot holds at most one immutable color frame. Stores swap the whole frame
// pointer, so a reader sees either the old or the new frame, never a mix of
// their dimensions and data.
type Slot struct {
	cur atomic.Pointer[planar.ColorFrame]
}

// Store installs f and returns the frame it replaced, or nil.
func (s *Slot) Store(f planar.ColorFrame) *planar.ColorFrame {
	return s.cur.Swap(&f)
}

// Load returns the current frame. The frame must be treated as read-only.
func (s *Slot) Load() (*planar.ColorFrame, bool) {
	f := s.cur.Load()
	return f, f != nil
}
