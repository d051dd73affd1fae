package server

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camview/internal/stream"
)

type fakeCanvas struct {
	snap atomic.Pointer[image.RGBA]
}

func (c *fakeCanvas) Snapshot() *image.RGBA { return c.snap.Load() }

func (c *fakeCanvas) Next() ([]byte, bool) {
	if s := c.snap.Load(); s != nil {
		return s.Pix, true
	}
	return nil, true
}

func (c *fakeCanvas) render(w, h int) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	c.snap.Store(img)
}

type fakeEncoder struct {
	mu      sync.Mutex
	started int
	stopped int
	cfg     stream.PipelineConfig
	err     error
}

func (f *fakeEncoder) start(cfg stream.PipelineConfig) (stopper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.started++
	f.cfg = cfg
	return f, nil
}

func (f *fakeEncoder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeEncoder) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

func newTestServer(t *testing.T) (*Server, *fakeCanvas, *fakeEncoder, *httptest.Server) {
	t.Helper()
	canvas := &fakeCanvas{}
	enc := &fakeEncoder{}
	s, err := New(Config{EncoderWidth: 4, EncoderHeight: 2, EncoderFPS: 10}, canvas, func() any {
		return map[string]any{"display": map[string]float64{"fps": 12}}
	})
	require.NoError(t, err)
	s.startEncoder = enc.start
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, canvas, enc, ts
}

func TestIndex(t *testing.T) {
	_, _, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/frame.jpg")
	assert.Contains(t, string(body), `type="file"`, "viewer can show a local image")

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFrameUnavailableBeforeRender(t *testing.T) {
	_, _, _, ts := newTestServer(t)
	for _, path := range []string{"/frame.jpg", "/frame.png"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestFrameSnapshots(t *testing.T) {
	_, canvas, _, ts := newTestServer(t)
	canvas.render(8, 6)

	resp, err := http.Get(ts.URL + "/frame.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	resp2, err := http.Get(ts.URL + "/frame.jpg")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	cfg, err := jpeg.DecodeConfig(resp2.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	assert.Equal(t, 6, cfg.Height)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/frame.jpg", nil)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)
}

func TestStatsAndHealth(t *testing.T) {
	_, canvas, _, ts := newTestServer(t)

	var stats struct {
		Pipeline struct {
			Display struct {
				FPS float64 `json:"fps"`
			} `json:"display"`
		} `json:"pipeline"`
		Encoder  map[string]uint64 `json:"encoder"`
		Sessions int               `json:"sessions"`
	}
	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 12.0, stats.Pipeline.Display.FPS)
	assert.Contains(t, stats.Encoder, "frames_in")

	canvas.render(2, 2)
	var health map[string]any
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["rendered"])
	assert.NotEmpty(t, health["version"])
}

func TestWHEPRejectsBadRequests(t *testing.T) {
	_, _, enc, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/whep")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/whep", "application/sdp", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/whep", "application/sdp", strings.NewReader("not sdp"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/whep", nil)
	req.Header.Set("Origin", "http://example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/whep/unknown", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	started, _ := enc.counts()
	assert.Zero(t, started)
}

func newOffer(t *testing.T) (*webrtc.PeerConnection, string) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	require.NoError(t, err)
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(offer))
	<-gathered
	return pc, pc.LocalDescription().SDP
}

func postOffer(t *testing.T, url, sdp string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/whep", "application/sdp", strings.NewReader(sdp))
	require.NoError(t, err)
	return resp
}

func TestWHEPSessionLifecycle(t *testing.T) {
	s, _, enc, ts := newTestServer(t)

	_, sdp1 := newOffer(t)
	resp := postOffer(t, ts.URL, sdp1)
	answer, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(answer))
	assert.Equal(t, "application/sdp", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(answer), "H264")
	loc1 := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc1, "/whep/"))

	_, sdp2 := newOffer(t)
	resp = postOffer(t, ts.URL, sdp2)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loc2 := resp.Header.Get("Location")
	assert.NotEqual(t, loc1, loc2)
	assert.Equal(t, 2, s.SessionCount())

	started, stopped := enc.counts()
	assert.Equal(t, 1, started, "sessions share one encoder")
	assert.Zero(t, stopped)
	assert.Equal(t, 4, enc.cfg.Width)
	assert.Equal(t, 10, enc.cfg.FPS)

	del := func(loc string) int {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+loc, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del(loc1))
	_, stopped = enc.counts()
	assert.Zero(t, stopped, "encoder keeps running for the remaining session")

	assert.Equal(t, http.StatusNoContent, del(loc2))
	_, stopped = enc.counts()
	assert.Equal(t, 1, stopped)
	assert.Zero(t, s.SessionCount())
}

func TestWHEPEncoderFailure(t *testing.T) {
	s, _, enc, ts := newTestServer(t)
	enc.err = errors.New("ffmpeg not found")

	_, sdp := newOffer(t)
	resp := postOffer(t, ts.URL, sdp)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Zero(t, s.SessionCount())
}
