package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camview/internal/planar"
)

type fakeBackend struct {
	mu        sync.Mutex
	clears    int
	uploads   []*planar.ColorFrame
	draws     int
	swaps     int
	uploadErr error
}

func (b *fakeBackend) Clear() { b.mu.Lock(); b.clears++; b.mu.Unlock() }
func (b *fakeBackend) Swap()  { b.mu.Lock(); b.swaps++; b.mu.Unlock() }

func (b *fakeBackend) Upload(f *planar.ColorFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return b.uploadErr
	}
	b.uploads = append(b.uploads, f)
	return nil
}

func (b *fakeBackend) DrawQuad() error { b.mu.Lock(); b.draws++; b.mu.Unlock(); return nil }

func (b *fakeBackend) lastUpload() *planar.ColorFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.uploads) == 0 {
		return nil
	}
	return b.uploads[len(b.uploads)-1]
}

// colorFrame fills every byte with the low byte of seq so a torn frame would
// show mixed values.
func colorFrame(w, h int, seq uint64) planar.ColorFrame {
	data := make([]byte, planar.ColorSize(w, h))
	for i := range data {
		data[i] = byte(seq)
	}
	return planar.ColorFrame{Width: w, Height: h, Data: data, Seq: seq}
}

func TestSurface_EmptyRenderClears(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)

	require.NoError(t, s.Render())
	assert.Equal(t, Empty, s.State())
	assert.Equal(t, 1, b.clears)
	assert.Equal(t, 0, b.draws)
	assert.Equal(t, 1, b.swaps)

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestSurface_PresentThenRenderShowsNewDimensions(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)

	s.Present(colorFrame(8, 4, 1))
	require.NoError(t, s.Render())
	s.Present(colorFrame(2, 6, 2))
	require.NoError(t, s.Render())

	up := b.lastUpload()
	require.NotNil(t, up)
	assert.Equal(t, 2, up.Width)
	assert.Equal(t, 6, up.Height)
	assert.Equal(t, Loaded, s.State())
}

func TestSurface_RenderIsIdempotent(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)

	s.Present(colorFrame(2, 2, 1))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Render())
	}
	assert.Len(t, b.uploads, 1)
	assert.Equal(t, 3, b.draws)
	st := s.Stats()
	assert.Equal(t, uint64(3), st.Renders)
	assert.Equal(t, uint64(1), st.Uploads)
}

func TestSurface_RejectsInconsistentFrame(t *testing.T) {
	s := NewSurface(&fakeBackend{})
	s.Present(planar.ColorFrame{Width: 4, Height: 4, Data: make([]byte, 10)})
	assert.Equal(t, Empty, s.State())
	assert.Equal(t, uint64(1), s.Stats().Rejected)
}

func TestSurface_CountsUnrenderedOverwrites(t *testing.T) {
	s := NewSurface(&fakeBackend{})
	s.Present(colorFrame(2, 2, 1))
	s.Present(colorFrame(2, 2, 2))
	require.NoError(t, s.Render())
	s.Present(colorFrame(2, 2, 3))

	st := s.Stats()
	assert.Equal(t, uint64(3), st.Presented)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestSurface_UploadFailureKeepsPreviousTexture(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)
	s.Present(colorFrame(2, 2, 1))
	require.NoError(t, s.Render())

	b.uploadErr = errors.New("texture lost")
	s.Present(colorFrame(2, 2, 2))
	err := s.Render()
	require.Error(t, err)
	assert.Equal(t, 2, b.draws)
	assert.Equal(t, uint64(1), b.lastUpload().Seq)
}

func (b *fakeBackend) setUploadErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadErr = err
}

func TestSurface_UploadFailureSchedulesRetry(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)
	b.setUploadErr(errors.New("texture lost"))
	s.Present(colorFrame(2, 2, 3))
	<-s.Redraw()

	require.Error(t, s.Render())
	select {
	case <-s.Redraw():
	default:
		t.Fatal("failed upload did not schedule a redraw")
	}
}

func TestSurface_RunRetriesFailedUpload(t *testing.T) {
	b := &fakeBackend{}
	b.setUploadErr(errors.New("texture lost"))
	s := NewSurface(b)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()

	s.Present(colorFrame(2, 2, 5))
	require.Eventually(t, func() bool {
		return s.Stats().Renders >= 3
	}, 2*time.Second, time.Millisecond)
	b.setUploadErr(nil)

	// No further Present: the retry alone must bring the frame on screen.
	require.Eventually(t, func() bool {
		up := b.lastUpload()
		return up != nil && up.Seq == 5
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestSurface_ConcurrentPresentsNeverTear(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)

	sizes := [][2]int{{2, 2}, {4, 2}, {8, 6}, {16, 16}}
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sz := sizes[i%len(sizes)]
			s.Present(colorFrame(sz[0], sz[1], uint64(i+1)))
		}(i)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_ = s.Render()
			}
		}
	}()
	wg.Wait()
	close(done)

	require.NoError(t, s.Render())
	cur, err := s.Current()
	require.NoError(t, err)
	assert.True(t, cur.Consistent())
	for _, v := range cur.Data {
		require.Equal(t, byte(cur.Seq), v)
	}
	sz := sizes[(cur.Seq-1)%uint64(len(sizes))]
	assert.Equal(t, sz[0], cur.Width, "seq %d", cur.Seq)
	assert.Equal(t, sz[1], cur.Height)
	assert.Equal(t, cur.Seq, b.lastUpload().Seq)
}

func TestSurface_RunRendersOnRedraw(t *testing.T) {
	b := &fakeBackend{}
	s := NewSurface(b)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()

	s.Present(colorFrame(4, 4, 7))
	require.Eventually(t, func() bool {
		up := b.lastUpload()
		return up != nil && up.Seq == 7
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
}
