// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers file merge, env overrides and rejected values
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MergesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixgraph.json")
	data := `{
		"logging": {"level": "debug"},
		"audio": {"sample_rate": 44100},
		"mixers": [{"name": "ambience", "volume": 0.5, "effects": [{"type": "lowpass", "priority": 1, "params": {"cutoff": 900}}]}]
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MIXGRAPH_DEVICE", "headphones")
	t.Setenv("MIXGRAPH_PORT", "9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to override config, got %q", cfg.Logging.Level)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Fatalf("expected sample rate 44100, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.BufferFrames != 512 {
		t.Fatalf("expected default buffer frames to be preserved, got %d", cfg.Audio.BufferFrames)
	}
	if cfg.Audio.Device != "headphones" || cfg.Control.Port != 9000 {
		t.Fatalf("env overrides not applied: device=%q port=%d", cfg.Audio.Device, cfg.Control.Port)
	}
	if len(cfg.Mixers) != 1 || cfg.Mixers[0].Name != "ambience" || *cfg.Mixers[0].Volume != 0.5 {
		t.Fatalf("mixers = %+v", cfg.Mixers)
	}
	if got := cfg.Mixers[0].Effects[0].Params["cutoff"]; got != 900 {
		t.Fatalf("effect params = %v", cfg.Mixers[0].Effects[0].Params)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.Driver != "oto" || cfg.Audio.TickInterval().Milliseconds() != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg.Audio)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{"), 0o600)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load() error = %v, want parse error", err)
	}
}

func TestValidate(t *testing.T) {
	loud := 1.5
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"defaults", func(*AppConfig) {}, ""},
		{"sample rate", func(c *AppConfig) { c.Audio.SampleRate = 0 }, "sample_rate"},
		{"tick", func(c *AppConfig) { c.Audio.TickIntervalMs = -1 }, "tick_interval_ms"},
		{"port", func(c *AppConfig) { c.Control.Enabled = true; c.Control.Port = 70000 }, "control.port"},
		{"master name", func(c *AppConfig) { c.Mixers = []MixerConfig{{Name: "master"}} }, "invalid name"},
		{"duplicate", func(c *AppConfig) { c.Mixers = []MixerConfig{{Name: "a"}, {Name: "a"}} }, "duplicate"},
		{"volume", func(c *AppConfig) { c.Mixers = []MixerConfig{{Name: "a", Volume: &loud}} }, "volume"},
		{"effect", func(c *AppConfig) {
			c.Mixers = []MixerConfig{{Name: "a", Effects: []EffectConfig{{Type: "flanger"}}}}
		}, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
