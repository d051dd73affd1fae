package stream

import (
	"github.com/pion/webrtc/v3/pkg/media"
)

// SampleWriter is anything that accepts encoded samples, such as
// *webrtc.TrackLocalStaticSample or a SampleBroadcaster.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

// newAsyncSampleWriter runs w.WriteSample on its own goroutine behind a small
// queue so the encoder loop never waits on network backpressure. enqueue
// reports false and drops the sample when the queue is full.
func newAsyncSampleWriter(w SampleWriter) (enqueue func(media.Sample) bool, stop func()) {
	ch := make(chan media.Sample, 4)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case s := <-ch:
				if err := w.WriteSample(s); err == nil {
					incSamplesSent(1)
				}
			case <-quit:
				return
			}
		}
	}()
	enqueue = func(s media.Sample) bool {
		select {
		case ch <- s:
			return true
		default:
			incSamplesDropped()
			return false
		}
	}
	return enqueue, func() { close(quit) }
}
