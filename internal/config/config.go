// Package config holds the camview settings. Values are layered: built-in
// defaults, then an optional YAML file, then environment variables, then
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"camview/internal/planar"
	"camview/internal/transform"
)

// Config is the full camview configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Capture.
	Source      string `yaml:"source"`       // synthetic, file or ffmpeg
	Input       string `yaml:"input"`        // file path or ffmpeg input
	InputFormat string `yaml:"input_format"` // i420, nv12, nv21 or uyvy422
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
	Loop        bool   `yaml:"loop"`

	// Frames are resized to OutWidth×OutHeight before the transform when set.
	OutWidth  int `yaml:"out_width"`
	OutHeight int `yaml:"out_height"`

	Transform   string  `yaml:"transform"` // edges or color
	Brightness  int     `yaml:"brightness"`
	Contrast    float64 `yaml:"contrast"`
	EdgeLow     int     `yaml:"edge_low"`
	EdgeHigh    int     `yaml:"edge_high"`
	MaxInFlight int     `yaml:"max_in_flight"`

	// Display.
	ViewWidth  int `yaml:"view_width"`
	ViewHeight int `yaml:"view_height"`
	RefreshHz  int `yaml:"refresh_hz"`

	// Encoder for WHEP viewers.
	EncoderFPS int    `yaml:"encoder_fps"`
	FFmpeg     string `yaml:"ffmpeg"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8000,
		Source:      "synthetic",
		InputFormat: "nv21",
		Width:       640,
		Height:      480,
		FPS:         30,
		Transform:   "edges",
		EdgeLow:     80,
		EdgeHigh:    200,
		ViewWidth:   640,
		ViewHeight:  480,
		RefreshHz:   60,
		EncoderFPS:  30,
		FFmpeg:      "ffmpeg",
		LogLevel:    "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// getenv. Unset, empty or malformed values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = x
			}
		}
	}
	str("HOST", &c.Host)
	num("PORT", &c.Port)
	num("FPS", &c.FPS)
	num("VIDEO_WIDTH", &c.Width)
	num("VIDEO_HEIGHT", &c.Height)
	str("SOURCE", &c.Source)
	str("INPUT", &c.Input)
	str("INPUT_FORMAT", &c.InputFormat)
	str("TRANSFORM", &c.Transform)
	num("MAX_IN_FLIGHT", &c.MaxInFlight)
	num("VIEW_WIDTH", &c.ViewWidth)
	num("VIEW_HEIGHT", &c.ViewHeight)
	num("REFRESH_HZ", &c.RefreshHz)
	str("FFMPEG", &c.FFmpeg)
	str("LOG_LEVEL", &c.LogLevel)
	if v := getenv("LOOP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Loop = b
		}
	}
}

// BindFlags registers one flag per setting on fs, with the current values as
// defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "bind host")
	fs.IntVar(&c.Port, "port", c.Port, "bind port")
	fs.StringVar(&c.Source, "source", c.Source, "capture source: synthetic, file or ffmpeg")
	fs.StringVar(&c.Input, "input", c.Input, "file path or ffmpeg input")
	fs.StringVar(&c.InputFormat, "input-format", c.InputFormat, "raw input format: i420, nv12, nv21 or uyvy422")
	fs.IntVar(&c.Width, "width", c.Width, "capture width")
	fs.IntVar(&c.Height, "height", c.Height, "capture height")
	fs.IntVar(&c.FPS, "fps", c.FPS, "capture frame rate")
	fs.BoolVar(&c.Loop, "loop", c.Loop, "rewind file input at EOF")
	fs.IntVar(&c.OutWidth, "out-width", c.OutWidth, "resize width before the transform (0 keeps the capture size)")
	fs.IntVar(&c.OutHeight, "out-height", c.OutHeight, "resize height before the transform (0 keeps the capture size)")
	fs.StringVar(&c.Transform, "transform", c.Transform, "transform: edges or color")
	fs.IntVar(&c.Brightness, "brightness", c.Brightness, "luma offset applied before the transform")
	fs.Float64Var(&c.Contrast, "contrast", c.Contrast, "luma contrast factor applied before the transform")
	fs.IntVar(&c.EdgeLow, "edge-low", c.EdgeLow, "edge detector low threshold")
	fs.IntVar(&c.EdgeHigh, "edge-high", c.EdgeHigh, "edge detector high threshold")
	fs.IntVar(&c.MaxInFlight, "max-in-flight", c.MaxInFlight, "concurrent transforms before frames are dropped (0 is unlimited)")
	fs.IntVar(&c.ViewWidth, "view-width", c.ViewWidth, "display canvas width")
	fs.IntVar(&c.ViewHeight, "view-height", c.ViewHeight, "display canvas height")
	fs.IntVar(&c.RefreshHz, "refresh", c.RefreshHz, "display refresh rate in Hz")
	fs.IntVar(&c.EncoderFPS, "encoder-fps", c.EncoderFPS, "WHEP encoder frame rate")
	fs.StringVar(&c.FFmpeg, "ffmpeg", c.FFmpeg, "ffmpeg executable")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
}

// Parse builds the configuration from args and the environment. The YAML
// file named by -config, or by CAMVIEW_CONFIG, is applied first.
func Parse(name string, args []string, getenv func(string) string) (Config, error) {
	path := PathFromArgs(args)
	if path == "" {
		path = getenv("CAMVIEW_CONFIG")
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(getenv)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("config", path, "YAML config file")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// PathFromArgs returns the value of a -config flag in args, if any.
func PathFromArgs(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name := strings.TrimLeft(a, "-")
		if len(name) == len(a) || len(a)-len(name) > 2 {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf(format, a...))
	}
	if c.Port <= 0 || c.Port > 65535 {
		bad("port %d out of range", c.Port)
	}
	if !evenPositive(c.Width, c.Height) {
		bad("capture size %dx%d must be positive and even", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		bad("fps %d must be positive", c.FPS)
	}
	if (c.OutWidth != 0 || c.OutHeight != 0) && !evenPositive(c.OutWidth, c.OutHeight) {
		bad("output size %dx%d must be positive and even", c.OutWidth, c.OutHeight)
	}
	if !evenPositive(c.ViewWidth, c.ViewHeight) {
		bad("view size %dx%d must be positive and even", c.ViewWidth, c.ViewHeight)
	}
	if c.RefreshHz <= 0 {
		bad("refresh rate %d must be positive", c.RefreshHz)
	}
	if c.EncoderFPS <= 0 {
		bad("encoder fps %d must be positive", c.EncoderFPS)
	}
	if c.MaxInFlight < 0 {
		bad("max in flight %d must not be negative", c.MaxInFlight)
	}
	switch strings.ToLower(c.Source) {
	case "synthetic":
	case "file", "ffmpeg":
		if c.Input == "" {
			bad("%s source needs an input", c.Source)
		}
	default:
		bad("unknown source %q", c.Source)
	}
	if _, err := planar.ParseFormat(c.InputFormat); err != nil {
		errs = append(errs, err)
	}
	if _, err := transform.ByName(c.Transform, c.TransformOptions()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TransformOptions returns the transform tuning.
func (c Config) TransformOptions() transform.Options {
	return transform.Options{
		Brightness: c.Brightness,
		Contrast:   c.Contrast,
		EdgeLow:    c.EdgeLow,
		EdgeHigh:   c.EdgeHigh,
	}
}

// Refresh returns the display refresh period.
func (c Config) Refresh() time.Duration {
	if c.RefreshHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.RefreshHz)
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func evenPositive(w, h int) bool {
	return w > 0 && h > 0 && w%2 == 0 && h%2 == 0
}
