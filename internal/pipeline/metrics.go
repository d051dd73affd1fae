package pipeline

import "sync/atomic"

// counters observe the capture side of the pipeline. Transform and display
// keep their own counters.
type counters struct {
	captured  atomic.Uint64 // images delivered by the source
	repacked  atomic.Uint64 // images repacked to I420
	invalid   atomic.Uint64 // images dropped with ErrInvalidImageShape
	scaled    atomic.Uint64 // frames resized to the output size
	submitted atomic.Uint64 // frames accepted by the gateway
	rejected  atomic.Uint64 // frames the gateway refused
}

// CaptureStats is a snapshot of the capture-side counters.
type CaptureStats struct {
	Captured  uint64 `json:"captured"`
	Repacked  uint64 `json:"repacked"`
	Invalid   uint64 `json:"invalid"`
	Scaled    uint64 `json:"scaled"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
}

func (c *counters) snapshot() CaptureStats {
	return CaptureStats{
		Captured:  c.captured.Load(),
		Repacked:  c.repacked.Load(),
		Invalid:   c.invalid.Load(),
		Scaled:    c.scaled.Load(),
		Submitted: c.submitted.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// Map flattens the snapshot into named counters.
func (s CaptureStats) Map() map[string]uint64 {
	return map[string]uint64{
		"frames_captured":  s.Captured,
		"frames_repacked":  s.Repacked,
		"frames_invalid":   s.Invalid,
		"frames_scaled":    s.Scaled,
		"frames_submitted": s.Submitted,
		"frames_rejected":  s.Rejected,
	}
}
