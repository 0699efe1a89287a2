// ABOUTME: Tests for the logging package
// ABOUTME: Verifies level parsing and field propagation
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithAddsFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	With("component", "mixer-1").Infof("hello %d", 1)
	Debugf("dropped")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	if logs[0].Message != "hello 1" {
		t.Fatalf("unexpected message %q", logs[0].Message)
	}
	fields := logs[0].ContextMap()
	if fields["component"] != "mixer-1" {
		t.Fatalf("expected component field, got %v", fields["component"])
	}
}

func TestInitRejectsBadInput(t *testing.T) {
	defer SetLogger(zap.NewNop())

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json debug", Config{Level: "debug", Format: "json"}, false},
		{"bad format", Config{Format: "xml"}, true},
		{"bad level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}
