// Package config loads the YAML configuration file, applies environment
// variable overrides, fills defaults and validates once at startup. The rest
// of the program receives typed parameter structs, never the raw file shape.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/edgesentinel/alertgate/internal/alert"
	"github.com/edgesentinel/alertgate/internal/motion"
	"github.com/edgesentinel/alertgate/internal/roi"
	"github.com/edgesentinel/alertgate/internal/vote"
)

// ZoneConfig is one named polygon in the roi section.
type ZoneConfig struct {
	Points  [][2]float64 `yaml:"points"`
	Classes []string     `yaml:"classes"`
}

// ClassVoteConfig is the temporal voting tuning for one class.
type ClassVoteConfig struct {
	WindowSize    int `yaml:"window_size"`
	VotesRequired int `yaml:"votes_required"`
}

// Config mirrors the YAML file's sections.
type Config struct {
	Camera struct {
		URL                     string `yaml:"url" env:"CAMERA_URL"`
		BufferSize              int    `yaml:"buffer_size"`
		RTSPTransport           string `yaml:"rtsp_transport"`
		ReconnectBackoffSeconds int    `yaml:"reconnect_backoff_seconds"`
	} `yaml:"camera"`

	Motion struct {
		Threshold              int     `yaml:"threshold"`
		MinContourArea         int     `yaml:"min_contour_area"`
		BackgroundLearningRate float64 `yaml:"background_learning_rate"`
		Downscale              int     `yaml:"downscale"`
		SkipFramesNoMotion     *bool   `yaml:"skip_frames_no_motion"`
		PeriodicInterval       int64   `yaml:"periodic_detection_interval"`
	} `yaml:"motion"`

	ROI struct {
		Enabled      bool                  `yaml:"enabled"`
		IncludeZones map[string]ZoneConfig `yaml:"include_zones"`
		ExcludeZones map[string]ZoneConfig `yaml:"exclude_zones"`
	} `yaml:"roi"`

	Detection struct {
		Enabled        bool     `yaml:"enabled"`
		Endpoint       string   `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		Confidence     float64  `yaml:"confidence"`
		TargetClasses  []string `yaml:"target_classes" env:"TARGET_CLASSES" envSeparator:","`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
	} `yaml:"detection"`

	Temporal map[string]ClassVoteConfig `yaml:"temporal"`

	Alerts struct {
		Enabled                bool           `yaml:"enabled"`
		CooldownSeconds        map[string]int `yaml:"cooldown_seconds"`
		DefaultCooldownSeconds int            `yaml:"default_cooldown_seconds"`
		SendImage              bool           `yaml:"send_image"`
		TelegramToken          string         `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
		TelegramChatID         string         `yaml:"-" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"alerts"`

	Recording struct {
		SnapshotsDir string `yaml:"snapshots_dir"`
		JPEGQuality  int    `yaml:"jpeg_quality"`
	} `yaml:"recording"`

	Database struct {
		Path          string `yaml:"path" env:"ALERTGATE_DB_PATH"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"database"`

	Web struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port" env:"ALERTGATE_PORT"`
	} `yaml:"web"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads the YAML file at path, applies environment overrides, fills
// defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a runnable configuration without a file, used by dev mode.
func Default() *Config {
	cfg := &Config{}
	cfg.Detection.Enabled = true
	cfg.Alerts.Enabled = true
	cfg.Web.Enabled = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Camera.ReconnectBackoffSeconds <= 0 {
		c.Camera.ReconnectBackoffSeconds = 2
	}
	if c.Motion.Threshold <= 0 {
		c.Motion.Threshold = 25
	}
	if c.Motion.MinContourArea <= 0 {
		c.Motion.MinContourArea = 500
	}
	if c.Motion.BackgroundLearningRate <= 0 {
		c.Motion.BackgroundLearningRate = 0.01
	}
	if c.Motion.Downscale <= 0 {
		c.Motion.Downscale = 2
	}
	if c.Detection.Confidence <= 0 {
		c.Detection.Confidence = 0.55
	}
	if len(c.Detection.TargetClasses) == 0 {
		c.Detection.TargetClasses = []string{"cat"}
	}
	if c.Detection.TimeoutSeconds <= 0 {
		c.Detection.TimeoutSeconds = 10
	}
	if c.Temporal == nil {
		c.Temporal = map[string]ClassVoteConfig{
			"cat": {WindowSize: 3, VotesRequired: 2},
		}
	}
	if c.Alerts.DefaultCooldownSeconds <= 0 {
		c.Alerts.DefaultCooldownSeconds = 60
	}
	if c.Recording.JPEGQuality <= 0 {
		c.Recording.JPEGQuality = 85
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/events.db"
	}
	if c.Database.RetentionDays <= 0 {
		c.Database.RetentionDays = 30
	}
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port <= 0 {
		c.Web.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
}

// Validate checks cross-field constraints the zero values cannot express.
func (c *Config) Validate() error {
	for name, vc := range c.Temporal {
		if vc.WindowSize <= 0 {
			return fmt.Errorf("temporal.%s: window_size must be positive, got %d", name, vc.WindowSize)
		}
		if vc.VotesRequired <= 0 {
			return fmt.Errorf("temporal.%s: votes_required must be positive, got %d", name, vc.VotesRequired)
		}
	}
	if c.Detection.Confidence < 0 || c.Detection.Confidence > 1 {
		return fmt.Errorf("detection.confidence must be in [0,1], got %v", c.Detection.Confidence)
	}
	if c.Detection.Enabled && c.Detection.Endpoint == "" {
		return fmt.Errorf("detection.endpoint required when detection is enabled")
	}
	for name, cd := range c.Alerts.CooldownSeconds {
		if cd < 0 {
			return fmt.Errorf("alerts.cooldown_seconds.%s must not be negative, got %d", name, cd)
		}
	}
	// Zone shape errors surface through roi.NewFilter; only the reference
	// frame is checked here.
	return nil
}

// MotionParams converts the motion section.
func (c *Config) MotionParams() motion.Params {
	return motion.Params{
		Threshold:      c.Motion.Threshold,
		MinContourArea: c.Motion.MinContourArea,
		LearningRate:   c.Motion.BackgroundLearningRate,
		Downscale:      c.Motion.Downscale,
	}
}

// ROIConfig converts the roi section into zone structs.
func (c *Config) ROIConfig() roi.Config {
	out := roi.Config{Enabled: c.ROI.Enabled}
	out.IncludeZones = zones(c.ROI.IncludeZones)
	out.ExcludeZones = zones(c.ROI.ExcludeZones)
	return out
}

func zones(m map[string]ZoneConfig) []roi.Zone {
	out := make([]roi.Zone, 0, len(m))
	for name, zc := range m {
		z := roi.Zone{Name: name, Classes: zc.Classes}
		for _, p := range zc.Points {
			z.Polygon = append(z.Polygon, roi.Point{X: p[0], Y: p[1]})
		}
		out = append(out, z)
	}
	return out
}

// VoteParams converts the temporal section.
func (c *Config) VoteParams() map[string]vote.ClassParams {
	out := make(map[string]vote.ClassParams, len(c.Temporal))
	for name, vc := range c.Temporal {
		out[name] = vote.ClassParams{
			WindowSize:    vc.WindowSize,
			VotesRequired: vc.VotesRequired,
		}
	}
	return out
}

// CooldownPolicy converts the alerts cooldown map.
func (c *Config) CooldownPolicy() alert.CooldownPolicy {
	p := alert.CooldownPolicy{
		PerClass: make(map[string]time.Duration, len(c.Alerts.CooldownSeconds)),
		Default:  time.Duration(c.Alerts.DefaultCooldownSeconds) * time.Second,
	}
	for name, s := range c.Alerts.CooldownSeconds {
		p.PerClass[name] = time.Duration(s) * time.Second
	}
	return p
}

// SkipWhenNoMotion reports whether the detector is gated on the motion
// pre-filter. Unset defaults to true; an explicit false runs the detector on
// every frame.
func (c *Config) SkipWhenNoMotion() bool {
	return c.Motion.SkipFramesNoMotion == nil || *c.Motion.SkipFramesNoMotion
}

// ReconnectBackoff converts the camera reconnect backoff.
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.Camera.ReconnectBackoffSeconds) * time.Second
}

// DetectionTimeout converts the detector request timeout.
func (c *Config) DetectionTimeout() time.Duration {
	return time.Duration(c.Detection.TimeoutSeconds) * time.Second
}

// ListenAddr returns the web section's host:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}
