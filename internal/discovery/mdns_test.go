// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers defaults, TXT records and service entry parsing
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManagerDefaults(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Studio", Port: 8928})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.Path != "/mixgraph" {
		t.Errorf("Path = %q, want /mixgraph", mgr.config.Path)
	}
	mgr.Stop()
}

func TestTXT(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{"path only", Config{}, []string{"path=/mixgraph"}},
		{"with version", Config{Path: "/ctl", Version: "1.2.0"}, []string{"path=/ctl", "version=1.2.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewManager(tt.config).TXT()
			if len(got) != len(tt.want) {
				t.Fatalf("TXT() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("TXT()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEntryToServer(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "Studio." + ServiceType + ".local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8928,
		InfoFields: []string{"version=1", "path=/ctl"},
	}

	got := entryToServer(entry)
	if got.Name != "Studio" || got.Host != "192.168.1.20" || got.Port != 8928 || got.Path != "/ctl" {
		t.Fatalf("entryToServer() = %+v", got)
	}
	if url := got.URL(); url != "ws://192.168.1.20:8928/ctl" {
		t.Errorf("URL() = %q", url)
	}
}
