// Package stream encodes the displayed canvas to H.264 with ffmpeg and fans
// the encoded samples out to WebRTC tracks.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/sirupsen/logrus"
)

// Source produces raw frames of a fixed size. Next reports false once the
// source is closed; a nil frame means nothing is available yet.
type Source interface {
	Next() ([]byte, bool)
}

// PipelineConfig defines how to produce H.264 and where to write it.
type PipelineConfig struct {
	Width, Height int
	FPS           int
	// PixFmt is the ffmpeg pixel format of the frames returned by Source.
	PixFmt string
	// Binary is the ffmpeg executable.
	Binary string
	Source Source
	Track  SampleWriter
}

func (c *PipelineConfig) setDefaults() {
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.PixFmt == "" {
		c.PixFmt = "rgba"
	}
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
}

func (c PipelineConfig) frameSize() int {
	return c.Width * c.Height * 4
}

// Args returns the ffmpeg arguments: raw frames on stdin, Annex-B H.264 on
// stdout.
func (c PipelineConfig) Args() []string {
	c.setDefaults()
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", c.PixFmt,
		"-s:v", strconv.Itoa(c.Width) + "x" + strconv.Itoa(c.Height),
		"-r", strconv.Itoa(c.FPS),
		"-i", "-",
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-profile:v", "baseline",
		"-g", strconv.Itoa(c.FPS),
		"-bf", "0",
		"-pix_fmt", "yuv420p",
		"-f", "h264",
		"-",
	}
}

// Pipeline is a running ffmpeg H.264 encoder.
type Pipeline struct {
	cfg    PipelineConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	log    *logrus.Entry
	quit   chan struct{}
	wg     sync.WaitGroup
	stopMu sync.Once

	enqueue    func(media.Sample) bool
	stopWriter func()
}

// StartH264Pipeline starts ffmpeg, feeds it frames from cfg.Source at cfg.FPS
// and writes every encoded access unit to cfg.Track.
func StartH264Pipeline(cfg PipelineConfig) (*Pipeline, error) {
	cfg.setDefaults()
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return nil, fmt.Errorf("invalid encoder size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Source == nil || cfg.Track == nil {
		return nil, errors.New("encoder needs a source and a track")
	}

	p := &Pipeline{
		cfg:  cfg,
		log:  logrus.WithField("component", "encoder"),
		quit: make(chan struct{}),
	}
	cmd := exec.Command(cfg.Binary, cfg.Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Binary, err)
	}
	p.cmd, p.stdin = cmd, stdin
	p.enqueue, p.stopWriter = newAsyncSampleWriter(cfg.Track)

	p.log.WithFields(logrus.Fields{
		"function": "StartH264Pipeline",
		"width":    cfg.Width,
		"height":   cfg.Height,
		"fps":      cfg.FPS,
	}).Info("H.264 encoder started")

	p.wg.Add(3)
	go func() {
		defer p.wg.Done()
		p.pump(stdin)
	}()
	go func() {
		defer p.wg.Done()
		p.drain(stdout)
	}()
	go func() {
		defer p.wg.Done()
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			p.log.WithField("function", "Pipeline.stderr").Debug(sc.Text())
		}
	}()
	return p, nil
}

// pump writes one source frame per tick to w until Stop, the source closes,
// or a write fails.
func (p *Pipeline) pump(w io.Writer) {
	ticker := time.NewTicker(time.Second / time.Duration(p.cfg.FPS))
	defer ticker.Stop()
	size := p.cfg.frameSize()
	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
		}
		frame, ok := p.cfg.Source.Next()
		if !ok {
			return
		}
		if len(frame) != size {
			incFramesSkipped()
			continue
		}
		if _, err := w.Write(frame); err != nil {
			p.log.WithFields(logrus.Fields{
				"function": "Pipeline.pump",
				"error":    err,
			}).Debug("Encoder input closed")
			return
		}
		incFramesIn()
	}
}

// drain splits the encoder output into access units and enqueues them as
// samples until r is exhausted.
func (p *Pipeline) drain(r io.Reader) {
	ar := newAnnexBReader(r)
	dur := time.Second / time.Duration(p.cfg.FPS)
	for {
		au, err := ar.readAccessUnit()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.WithFields(logrus.Fields{
					"function": "Pipeline.drain",
					"error":    err,
				}).Warn("Reading encoder output failed")
			}
			return
		}
		incAccessUnits()
		p.enqueue(media.Sample{Data: au, Duration: dur})
	}
}

// Stop terminates ffmpeg and waits for the pipeline goroutines. It is safe
// to call more than once.
func (p *Pipeline) Stop() {
	p.stopMu.Do(func() {
		close(p.quit)
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		p.wg.Wait()
		_ = p.cmd.Wait()
		p.stopWriter()
		p.log.WithField("function", "Pipeline.Stop").Info("H.264 encoder stopped")
	})
}
