package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, "edges", cfg.Transform)
	assert.Equal(t, time.Second/60, cfg.Refresh())
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "port: 9000\ntransform: color\nview_width: 320\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "color", cfg.Transform)
	assert.Equal(t, 320, cfg.ViewWidth)
	assert.Equal(t, 480, cfg.ViewHeight, "unset keys keep their defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "port: [1, 2\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		"PORT":         "8080",
		"VIDEO_WIDTH":  "320",
		"VIDEO_HEIGHT": "bogus",
		"SOURCE":       "ffmpeg",
		"INPUT":        "/dev/video0",
		"LOOP":         "true",
		"LOG_LEVEL":    "debug",
	}))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, "ffmpeg", cfg.Source)
	assert.Equal(t, "/dev/video0", cfg.Input)
	assert.True(t, cfg.Loop)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseLayering(t *testing.T) {
	path := writeFile(t, "port: 9000\nfps: 15\ntransform: color\n")
	env := envMap(map[string]string{"FPS": "20", "TRANSFORM": "edges"})

	cfg, err := Parse("camview", []string{"-config", path, "-transform", "color", "-view-width", "320"}, env)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port, "file")
	assert.Equal(t, 20, cfg.FPS, "env beats file")
	assert.Equal(t, "color", cfg.Transform, "flag beats env")
	assert.Equal(t, 320, cfg.ViewWidth)
}

func TestParseConfigFromEnv(t *testing.T) {
	path := writeFile(t, "port: 7000\n")
	cfg, err := Parse("camview", nil, envMap(map[string]string{"CAMVIEW_CONFIG": path}))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse("camview", []string{"-width", "641"}, envMap(nil))
	assert.ErrorContains(t, err, "capture size")

	_, err = Parse("camview", []string{"-nope"}, envMap(nil))
	assert.Error(t, err)
}

func TestPathFromArgs(t *testing.T) {
	assert.Equal(t, "a.yaml", PathFromArgs([]string{"-config", "a.yaml"}))
	assert.Equal(t, "b.yaml", PathFromArgs([]string{"-port", "1", "--config=b.yaml"}))
	assert.Equal(t, "", PathFromArgs([]string{"-config"}))
	assert.Equal(t, "", PathFromArgs([]string{"--", "-config", "c.yaml"}))
	assert.Equal(t, "", PathFromArgs([]string{"config", "d.yaml"}))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port":          func(c *Config) { c.Port = 0 },
		"odd size":      func(c *Config) { c.Height = 479 },
		"fps":           func(c *Config) { c.FPS = 0 },
		"output size":   func(c *Config) { c.OutWidth = 100 },
		"view size":     func(c *Config) { c.ViewWidth = 0 },
		"refresh":       func(c *Config) { c.RefreshHz = -1 },
		"encoder fps":   func(c *Config) { c.EncoderFPS = 0 },
		"max in flight": func(c *Config) { c.MaxInFlight = -2 },
		"source":        func(c *Config) { c.Source = "webcam" },
		"input":         func(c *Config) { c.Source = "file" },
		"format":        func(c *Config) { c.InputFormat = "rgb24" },
		"transform":     func(c *Config) { c.Transform = "sepia" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.OutWidth, cfg.OutHeight = 320, 240
	cfg.Source, cfg.Input = "file", "frames.yuv"
	assert.NoError(t, cfg.Validate())
}
