package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"seeknobs/knobs"
)

// BusKind selects where knob values come from.
type BusKind string

const (
	BusSim  BusKind = "sim"
	BusMIDI BusKind = "midi"
)

// EmitConfig controls the control-change output stage
type EmitConfig struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled"`
	Channel       int    `mapstructure:"channel" json:"channel"` // MIDI channel 0-15
	Port          string `mapstructure:"port" json:"port,omitempty"`
	InitialPolicy string `mapstructure:"initialPolicy" json:"initialPolicy"`
}

// IndicatorConfig controls where knob colours are shown
type IndicatorConfig struct {
	Launchpad     bool   `mapstructure:"launchpad" json:"launchpad"`
	LaunchpadPort string `mapstructure:"launchpadPort" json:"launchpadPort,omitempty"`
	Palette       string `mapstructure:"palette" json:"palette,omitempty"` // GPL file; empty uses the hue wheel
}

// BusConfig selects the knob source
type BusConfig struct {
	Kind       BusKind `mapstructure:"kind" json:"kind"`
	MIDIInPort string  `mapstructure:"midiInPort" json:"midiInPort,omitempty"`
	NoteBase   int     `mapstructure:"noteBase" json:"noteBase"` // first note mapped to a button
}

// SimConfig tunes the simulated expander
type SimConfig struct {
	Seed      int64 `mapstructure:"seed" json:"seed"`
	LatencyMs int   `mapstructure:"latencyMs" json:"latencyMs"`
	FailPins  []int `mapstructure:"failPins" json:"failPins,omitempty"`
}

// LogConfig selects log level and destination
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	ChannelCount     int     `mapstructure:"channelCount" json:"channelCount"`
	Pins             []int   `mapstructure:"pins" json:"pins"`
	ButtonMask       uint32  `mapstructure:"buttonMask" json:"buttonMask"`
	OutputIDs        []int   `mapstructure:"outputIds" json:"outputIds"`
	ValueMax         int     `mapstructure:"valueMax" json:"valueMax"`
	FeedbackDivisor  int     `mapstructure:"feedbackDivisor" json:"feedbackDivisor"`
	ReportIntervalMs int     `mapstructure:"reportIntervalMs" json:"reportIntervalMs"`
	Brightness       float64 `mapstructure:"brightness" json:"brightness"`
	BusTimeoutMs     int     `mapstructure:"busTimeoutMs" json:"busTimeoutMs"`

	Emit      EmitConfig      `mapstructure:"emit" json:"emit"`
	Indicator IndicatorConfig `mapstructure:"indicator" json:"indicator"`
	Bus       BusConfig       `mapstructure:"bus" json:"bus"`
	Sim       SimConfig       `mapstructure:"sim" json:"sim"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

const (
	configName = "config"
	configType = "json"
	envPrefix  = "SEEKNOBS"

	defaultReportIntervalMs = 100
	defaultBrightness       = 0.2
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	core := knobs.DefaultConfig()
	return &Config{
		ChannelCount:     core.ChannelCount,
		Pins:             toInts(core.Pins),
		ButtonMask:       core.ButtonMask,
		OutputIDs:        toInts(core.OutputIDs),
		ValueMax:         int(core.ValueMax),
		FeedbackDivisor:  int(core.FeedbackDivisor),
		ReportIntervalMs: defaultReportIntervalMs,
		Brightness:       defaultBrightness,
		Emit: EmitConfig{
			Enabled:       true,
			InitialPolicy: knobs.InitialZero.String(),
		},
		Bus: BusConfig{Kind: BusSim, NoteBase: 36},
		Sim: SimConfig{Seed: 1},
		Log: LogConfig{Level: "info"},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "seeknobs"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("channelCount", d.ChannelCount)
	v.SetDefault("pins", d.Pins)
	v.SetDefault("buttonMask", d.ButtonMask)
	v.SetDefault("outputIds", d.OutputIDs)
	v.SetDefault("valueMax", d.ValueMax)
	v.SetDefault("feedbackDivisor", d.FeedbackDivisor)
	v.SetDefault("reportIntervalMs", d.ReportIntervalMs)
	v.SetDefault("brightness", d.Brightness)
	v.SetDefault("busTimeoutMs", d.BusTimeoutMs)
	v.SetDefault("emit.enabled", d.Emit.Enabled)
	v.SetDefault("emit.channel", d.Emit.Channel)
	v.SetDefault("emit.port", d.Emit.Port)
	v.SetDefault("emit.initialPolicy", d.Emit.InitialPolicy)
	v.SetDefault("indicator.launchpad", d.Indicator.Launchpad)
	v.SetDefault("indicator.launchpadPort", d.Indicator.LaunchpadPort)
	v.SetDefault("indicator.palette", d.Indicator.Palette)
	v.SetDefault("bus.kind", string(d.Bus.Kind))
	v.SetDefault("bus.midiInPort", d.Bus.MIDIInPort)
	v.SetDefault("bus.noteBase", d.Bus.NoteBase)
	v.SetDefault("sim.seed", d.Sim.Seed)
	v.SetDefault("sim.latencyMs", d.Sim.LatencyMs)
	v.SetDefault("sim.failPins", d.Sim.FailPins)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	return v
}

// Load reads the config at path, or the default location when path is empty.
// A missing file yields the defaults (plus any SEEKNOBS_* environment overrides).
func Load(path string, logger *zap.SugaredLogger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("config")

	if path == "" {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}

	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			logger.Debugw("Loaded config file", "path", path)
		} else if os.IsNotExist(err) {
			logger.Debugw("Config file not found, using defaults", "path", path)
		} else {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.sanitize(logger)
	return &cfg, nil
}

// sanitize replaces out-of-range soft settings with defaults, warning about each.
// Table shapes are left alone: those are checked by Pipeline.
func (c *Config) sanitize(logger *zap.SugaredLogger) {
	d := DefaultConfig()

	if c.ReportIntervalMs <= 0 {
		logger.Warnw("Invalid report interval specified, using default value",
			"key", "reportIntervalMs", "invalidValue", c.ReportIntervalMs, "defaultValue", d.ReportIntervalMs)
		c.ReportIntervalMs = d.ReportIntervalMs
	}

	if c.Brightness < 0 || c.Brightness > 1 {
		logger.Warnw("Invalid brightness specified, using default value",
			"key", "brightness", "invalidValue", c.Brightness, "defaultValue", d.Brightness)
		c.Brightness = d.Brightness
	}

	if c.Emit.Channel < 0 || c.Emit.Channel > 15 {
		logger.Warnw("Invalid MIDI channel specified, using default value",
			"key", "emit.channel", "invalidValue", c.Emit.Channel, "defaultValue", d.Emit.Channel)
		c.Emit.Channel = d.Emit.Channel
	}

	if _, err := knobs.ParseInitialPolicy(c.Emit.InitialPolicy); err != nil {
		logger.Warnw("Invalid initial policy specified, using default value",
			"key", "emit.initialPolicy", "invalidValue", c.Emit.InitialPolicy, "defaultValue", d.Emit.InitialPolicy)
		c.Emit.InitialPolicy = d.Emit.InitialPolicy
	}

	if c.Bus.NoteBase < 0 || c.Bus.NoteBase > 127 {
		logger.Warnw("Invalid note base specified, using default value",
			"key", "bus.noteBase", "invalidValue", c.Bus.NoteBase, "defaultValue", d.Bus.NoteBase)
		c.Bus.NoteBase = d.Bus.NoteBase
	}

	switch c.Bus.Kind {
	case BusSim, BusMIDI:
	default:
		logger.Warnw("Invalid bus kind specified, using default value",
			"key", "bus.kind", "invalidValue", c.Bus.Kind, "defaultValue", d.Bus.Kind)
		c.Bus.Kind = d.Bus.Kind
	}
}

// Pipeline converts the file form into a validated core config.
func (c *Config) Pipeline() (knobs.Config, error) {
	pins, err := toBytes("pins", c.Pins, 255)
	if err != nil {
		return knobs.Config{}, err
	}
	ids, err := toBytes("outputIds", c.OutputIDs, 127)
	if err != nil {
		return knobs.Config{}, err
	}
	if c.ValueMax <= 0 || c.ValueMax > 65535 {
		return knobs.Config{}, fmt.Errorf("%w: valueMax %d out of range", knobs.ErrConfig, c.ValueMax)
	}
	if c.FeedbackDivisor <= 0 || c.FeedbackDivisor > 65535 {
		return knobs.Config{}, fmt.Errorf("%w: feedbackDivisor %d out of range", knobs.ErrConfig, c.FeedbackDivisor)
	}
	policy, err := knobs.ParseInitialPolicy(c.Emit.InitialPolicy)
	if err != nil {
		return knobs.Config{}, err
	}

	kc := knobs.Config{
		ChannelCount:    c.ChannelCount,
		Pins:            pins,
		ButtonMask:      c.ButtonMask,
		OutputIDs:       ids,
		ValueMax:        uint16(c.ValueMax),
		FeedbackDivisor: uint16(c.FeedbackDivisor),
		Emit:            c.Emit.Enabled,
		InitialPolicy:   policy,
		BusTimeout:      time.Duration(c.BusTimeoutMs) * time.Millisecond,
	}
	if err := kc.Validate(); err != nil {
		return knobs.Config{}, err
	}
	return kc, nil
}

// ReportInterval is the minimum gap between diagnostics lines.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalMs) * time.Millisecond
}

// Save writes the config to path, or the default location when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func toInts(b []uint8) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func toBytes(key string, in []int, max int) ([]uint8, error) {
	out := make([]uint8, len(in))
	for i, v := range in {
		if v < 0 || v > max {
			return nil, fmt.Errorf("%w: %s[%d] = %d out of range 0-%d", knobs.ErrConfig, key, i, v, max)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
