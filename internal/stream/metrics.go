package stream

import "sync/atomic"

// Encoder counters, shared by every pipeline in the process.
var (
	framesIn       atomic.Uint64 // canvas frames written to the encoder
	framesSkipped  atomic.Uint64 // polls with no canvas or a mismatched size
	accessUnits    atomic.Uint64 // access units read back from the encoder
	samplesSent    atomic.Uint64 // samples accepted by the track
	samplesDropped atomic.Uint64 // samples dropped on a full queue
)

// ResetCounters resets all metrics to zero.
func ResetCounters() {
	framesIn.Store(0)
	framesSkipped.Store(0)
	accessUnits.Store(0)
	samplesSent.Store(0)
	samplesDropped.Store(0)
}

// GetCounters returns a snapshot of current metrics.
func GetCounters() map[string]uint64 {
	return map[string]uint64{
		"frames_in":       framesIn.Load(),
		"frames_skipped":  framesSkipped.Load(),
		"access_units":    accessUnits.Load(),
		"samples_sent":    samplesSent.Load(),
		"samples_dropped": samplesDropped.Load(),
	}
}

func incFramesIn() { framesIn.Add(1) }
func incFramesSkipped() { framesSkipped.Add(1) }
func incAccessUnits() { accessUnits.Add(1) }
func incSamplesDropped() { samplesDropped.Add(1) }
func incSamplesSent(n int) {
	if n > 0 {
		samplesSent.Add(uint64(n))
	}
}
