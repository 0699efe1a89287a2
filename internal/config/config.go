// ABOUTME: JSON configuration for the mixgraph CLI
// ABOUTME: Defaults, file loading, environment overrides and validation
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultPath = "mixgraph.json"

type AppConfig struct {
	Logging   LoggingConfig   `json:"logging"`
	Audio     AudioConfig     `json:"audio"`
	Resources ResourcesConfig `json:"resources"`
	Control   ControlConfig   `json:"control"`
	Mixers    []MixerConfig   `json:"mixers"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

type AudioConfig struct {
	// Driver is "oto", "portaudio", "malgo", "null" or "wav:<path>"
	Driver         string `json:"driver"`
	Device         string `json:"device"`
	SampleRate     int    `json:"sample_rate"`
	BufferFrames   int    `json:"buffer_frames"`
	TickIntervalMs int    `json:"tick_interval_ms"`
	DevicePollMs   int    `json:"device_poll_ms"`
}

type ResourcesConfig struct {
	Dir        string   `json:"dir"`
	HTTPBase   string   `json:"http_base"`
	HTTPIndex  string   `json:"http_index"`
	CacheDir   string   `json:"cache_dir"`
	Extensions []string `json:"extensions"`
}

type ControlConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Name            string `json:"name"`
	MDNS            bool   `json:"mdns"`
	MeterIntervalMs int    `json:"meter_interval_ms"`
}

// MixerConfig declares a mixer created under the master at startup
type MixerConfig struct {
	Name    string         `json:"name"`
	Volume  *float64       `json:"volume,omitempty"`
	Balance float64        `json:"balance"`
	Effects []EffectConfig `json:"effects"`
}

// EffectConfig declares one effect; Params depend on Type
type EffectConfig struct {
	Type     string             `json:"type"`
	Priority int                `json:"priority"`
	Params   map[string]float64 `json:"params"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Audio: AudioConfig{
			Driver:         "oto",
			SampleRate:     48000,
			BufferFrames:   512,
			TickIntervalMs: 2,
			DevicePollMs:   1000,
		},
		Resources: ResourcesConfig{
			Dir:        "assets",
			Extensions: []string{"mp3", "wav", "ogg", "flac", "opus"},
		},
		Control: ControlConfig{
			Port:            8928,
			Name:            "mixgraph",
			MDNS:            true,
			MeterIntervalMs: 100,
		},
		Mixers: []MixerConfig{{Name: "music"}, {Name: "effects"}},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv lets the environment override logging and device selection
func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if driver := strings.TrimSpace(os.Getenv("MIXGRAPH_DRIVER")); driver != "" {
		c.Audio.Driver = driver
	}
	if device := strings.TrimSpace(os.Getenv("MIXGRAPH_DEVICE")); device != "" {
		c.Audio.Device = device
	}
	if port := strings.TrimSpace(os.Getenv("MIXGRAPH_PORT")); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Control.Port = p
		}
	}
}

func (c *AppConfig) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.BufferFrames <= 0 {
		return errors.New("audio.buffer_frames must be positive")
	}
	if c.Audio.TickIntervalMs <= 0 {
		return errors.New("audio.tick_interval_ms must be positive")
	}
	if c.Audio.DevicePollMs <= 0 {
		return errors.New("audio.device_poll_ms must be positive")
	}
	if c.Control.Enabled && (c.Control.Port <= 0 || c.Control.Port > 65535) {
		return fmt.Errorf("control.port out of range: %d", c.Control.Port)
	}

	seen := make(map[string]bool)
	for i, m := range c.Mixers {
		name := strings.TrimSpace(m.Name)
		if name == "" || name == "master" {
			return fmt.Errorf("mixers[%d]: invalid name %q", i, m.Name)
		}
		if seen[name] {
			return fmt.Errorf("mixers[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if m.Volume != nil && (*m.Volume < 0 || *m.Volume > 1) {
			return fmt.Errorf("mixers[%d].volume must be within [0, 1]", i)
		}
		if m.Balance < -1 || m.Balance > 1 {
			return fmt.Errorf("mixers[%d].balance must be within [-1, 1]", i)
		}
		for j, e := range m.Effects {
			switch strings.ToLower(e.Type) {
			case "gain", "lowpass", "echo":
			default:
				return fmt.Errorf("mixers[%d].effects[%d]: unknown type %q", i, j, e.Type)
			}
		}
	}
	return nil
}

func (a AudioConfig) TickInterval() time.Duration {
	return time.Duration(a.TickIntervalMs) * time.Millisecond
}

func (a AudioConfig) DevicePollInterval() time.Duration {
	return time.Duration(a.DevicePollMs) * time.Millisecond
}

func (c ControlConfig) MeterInterval() time.Duration {
	return time.Duration(c.MeterIntervalMs) * time.Millisecond
}
