package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"camview/internal/planar"
)

// FFmpeg captures through an ffmpeg child process that decodes the input and
// writes raw frames of the requested format and size to stdout.
type FFmpeg struct {
	// Binary is the ffmpeg executable; "ffmpeg" when empty.
	Binary string

	input  string
	format planar.Format
	w, h   int
}

// NewFFmpeg creates an ffmpeg source. input is either a path or URL, read in
// real time, or a full set of ffmpeg input arguments when it starts with '-'
// (for example "-f v4l2 -video_size 640x480 -i /dev/video0").
func NewFFmpeg(input string, format planar.Format, w, h int) *FFmpeg {
	return &FFmpeg{input: input, format: format, w: w, h: h}
}

// Args returns the ffmpeg command line after the binary name.
func (f *FFmpeg) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if in := strings.TrimSpace(f.input); strings.HasPrefix(in, "-") {
		args = append(args, strings.Fields(in)...)
	} else {
		args = append(args, "-re", "-i", in)
	}
	return append(args,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", f.w, f.h),
		"-pix_fmt", f.format.String(),
		"-f", "rawvideo",
		"-",
	)
}

// Run implements Source. The child process is killed when ctx is done.
func (f *FFmpeg) Run(ctx context.Context, h Handler) error {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, f.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "FFmpeg.Run",
		"pid":      cmd.Process.Pid,
		"format":   f.format.String(),
		"width":    f.w,
		"height":   f.h,
	}).Info("ffmpeg capture started")

	rd, err := NewReader(stdout, f.format, f.w, f.h, 0)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}
	runErr := rd.Run(ctx, h)
	if ctx.Err() != nil {
		_ = cmd.Wait()
		return nil
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return runErr
}
