// ABOUTME: Resource provider boundary for encoded audio data
// ABOUTME: Name lookup returning a stream or absence, plus provider chaining
package resources

import (
	"io"
	"sort"
)

// Provider supplies encoded audio by logical name. A missing resource is
// reported as absent, never as an error.
type Provider interface {
	GetStream(name string) (io.ReadCloser, bool)
	GetAvailableResources() []string
}

// Chain queries providers in order and returns the first match
type Chain []Provider

func (c Chain) GetStream(name string) (io.ReadCloser, bool) {
	for _, p := range c {
		if rc, ok := p.GetStream(name); ok {
			return rc, true
		}
	}
	return nil, false
}

// GetAvailableResources merges and de-duplicates every provider's names
func (c Chain) GetAvailableResources() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range c {
		for _, n := range p.GetAvailableResources() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// candidates returns name followed by name with each fallback extension
func candidates(name string, extensions []string) []string {
	out := []string{name}
	for _, ext := range extensions {
		out = append(out, name+"."+ext)
	}
	return out
}
