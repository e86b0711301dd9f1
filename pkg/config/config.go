package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/offlinefirst/motionreplay/pkg/motion"
)

const DefaultFileName = "replayer.yaml"

// Config captures the user-adjustable knobs for recording and playback.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Motion    MotionConfig    `yaml:"motion"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Capture   CaptureConfig   `yaml:"capture"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	RecordingsDir string `yaml:"recordings_dir" env:"REPLAYER_RECORDINGS_DIR"`
	CatalogPath   string `yaml:"catalog_path" env:"REPLAYER_CATALOG_PATH"`
	ExportDir     string `yaml:"export_dir" env:"REPLAYER_EXPORT_DIR"`
}

// MotionConfig tunes raw motion conditioning during recording.
type MotionConfig struct {
	Smoothing     float64       `yaml:"smoothing" env:"REPLAYER_MOTION_SMOOTHING"`
	StopThreshold int           `yaml:"stop_threshold" env:"REPLAYER_MOTION_STOP_THRESHOLD"`
	StopFrames    int           `yaml:"stop_frames" env:"REPLAYER_MOTION_STOP_FRAMES"`
	Tick          time.Duration `yaml:"tick" env:"REPLAYER_MOTION_TICK"`
	RampDuration  time.Duration `yaml:"ramp_duration" env:"REPLAYER_MOTION_RAMP_DURATION"`
	RampDecay     float64       `yaml:"ramp_decay" env:"REPLAYER_MOTION_RAMP_DECAY"`
	RampEnabled   bool          `yaml:"ramp_enabled" env:"REPLAYER_MOTION_RAMP_ENABLED"`
	SensitivityX  float64       `yaml:"sensitivity_x" env:"REPLAYER_MOTION_SENSITIVITY_X"`
	SensitivityY  float64       `yaml:"sensitivity_y" env:"REPLAYER_MOTION_SENSITIVITY_Y"`
}

// PlaybackConfig tunes the replay scheduler.
type PlaybackConfig struct {
	Sensitivity  float64       `yaml:"sensitivity" env:"REPLAYER_PLAYBACK_SENSITIVITY"`
	Velocity     float64       `yaml:"velocity" env:"REPLAYER_PLAYBACK_VELOCITY"`
	StartDelay   time.Duration `yaml:"start_delay" env:"REPLAYER_PLAYBACK_START_DELAY"`
	SettleDelay  time.Duration `yaml:"settle_delay" env:"REPLAYER_PLAYBACK_SETTLE_DELAY"`
	ScreenWidth  int           `yaml:"screen_width" env:"REPLAYER_PLAYBACK_SCREEN_WIDTH"`
	ScreenHeight int           `yaml:"screen_height" env:"REPLAYER_PLAYBACK_SCREEN_HEIGHT"`
	Loop         bool          `yaml:"loop" env:"REPLAYER_PLAYBACK_LOOP"`
	LoopCount    int           `yaml:"loop_count" env:"REPLAYER_PLAYBACK_LOOP_COUNT"` // <= 0 repeats until stopped
}

// CaptureConfig toggles capture behaviour.
type CaptureConfig struct {
	// AlwaysOn records raw motion without holding the right button.
	AlwaysOn bool `yaml:"always_on" env:"REPLAYER_CAPTURE_ALWAYS_ON"`
	// Paced replays script input at its recorded cadence.
	Paced bool `yaml:"paced" env:"REPLAYER_CAPTURE_PACED"`
}

// SessionConfig controls the session lifecycle.
type SessionConfig struct {
	Autoplay bool `yaml:"autoplay" env:"REPLAYER_SESSION_AUTOPLAY"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"REPLAYER_LOG_LEVEL"`
	Format string `yaml:"format" env:"REPLAYER_LOG_FORMAT"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" env:"REPLAYER_OTEL_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"REPLAYER_OTEL_ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"REPLAYER_OTEL_SERVICE_NAME"`
	SampleRatio float64 `yaml:"sample_ratio" env:"REPLAYER_OTEL_SAMPLE_RATIO"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			RecordingsDir: "recordings",
			CatalogPath:   filepath.Join("recordings", "catalog.db"),
			ExportDir:     "exports",
		},
		Motion: MotionConfig{
			Smoothing:     0.70,
			StopThreshold: 1,
			StopFrames:    2,
			Tick:          4 * time.Millisecond,
			RampDuration:  40 * time.Millisecond,
			RampDecay:     0.45,
			RampEnabled:   true,
			SensitivityX:  1.0,
			SensitivityY:  1.0,
		},
		Playback: PlaybackConfig{
			Sensitivity:  1.0,
			Velocity:     1.0,
			StartDelay:   2 * time.Second,
			SettleDelay:  2 * time.Millisecond,
			ScreenWidth:  1920,
			ScreenHeight: 1080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "motionreplay",
			SampleRatio: 1,
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./replayer.yaml but tolerates a missing file.
// REPLAYER_* environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	file, err := os.Open(candidate)
	switch {
	case err == nil:
		defer file.Close()
		if err := decodeYAML(file, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config file %q: %w", candidate, err)
		}
		cfg.Source = candidate
	case errors.Is(err, os.ErrNotExist):
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	default:
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.RecordingsDir) == "" {
		return errors.New("paths.recordings_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	if err := c.MotionParams().Validate(); err != nil {
		return fmt.Errorf("motion: %w", err)
	}

	if c.Playback.Sensitivity <= 0 {
		return errors.New("playback.sensitivity must be positive")
	}
	if c.Playback.Velocity <= 0 {
		return errors.New("playback.velocity must be positive")
	}
	if c.Playback.StartDelay < 0 {
		return errors.New("playback.start_delay must not be negative")
	}
	if c.Playback.SettleDelay < 0 {
		return errors.New("playback.settle_delay must not be negative")
	}
	if c.Playback.ScreenWidth <= 0 || c.Playback.ScreenHeight <= 0 {
		return errors.New("playback.screen_width and playback.screen_height must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sample_ratio must be between 0 and 1")
	}
	return nil
}

// MotionParams converts the motion section into processor parameters.
func (c Config) MotionParams() motion.Params {
	return motion.Params{
		Smoothing:     c.Motion.Smoothing,
		StopThreshold: c.Motion.StopThreshold,
		StopFrames:    c.Motion.StopFrames,
		Tick:          c.Motion.Tick,
		RampDuration:  c.Motion.RampDuration,
		RampDecay:     c.Motion.RampDecay,
		RampEnabled:   c.Motion.RampEnabled,
		SensitivityX:  c.Motion.SensitivityX,
		SensitivityY:  c.Motion.SensitivityY,
		HistorySize:   motion.DefaultHistorySize,
	}
}

func (c *Config) normalize() {
	c.Paths.RecordingsDir = filepath.Clean(strings.TrimSpace(c.Paths.RecordingsDir))
	c.Paths.CatalogPath = strings.TrimSpace(c.Paths.CatalogPath)
	c.Paths.ExportDir = strings.TrimSpace(c.Paths.ExportDir)

	defaults := Default()

	if c.Paths.RecordingsDir == "." || c.Paths.RecordingsDir == "" {
		c.Paths.RecordingsDir = defaults.Paths.RecordingsDir
	}
	if c.Paths.CatalogPath == "" {
		c.Paths.CatalogPath = filepath.Join(c.Paths.RecordingsDir, "catalog.db")
	}
	if c.Paths.ExportDir == "" {
		c.Paths.ExportDir = defaults.Paths.ExportDir
	}
	if level, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = level
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
