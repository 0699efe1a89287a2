// ABOUTME: In-memory resource provider
// ABOUTME: Holds encoded audio blobs by name, used for embedded assets and tests
package resources

import (
	"bytes"
	"io"
	"sort"
	"sync"
)

// Memory serves byte slices registered by name
type Memory struct {
	mu         sync.RWMutex
	data       map[string][]byte
	extensions []string
}

// NewMemory creates an empty provider
func NewMemory(extensions ...string) *Memory {
	return &Memory{data: make(map[string][]byte), extensions: extensions}
}

// Add registers data under name
func (m *Memory) Add(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = data
}

// Remove forgets name
func (m *Memory) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
}

func (m *Memory) GetStream(name string) (io.ReadCloser, bool) {
	if name == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, candidate := range candidates(name, m.extensions) {
		if data, ok := m.data[candidate]; ok {
			return io.NopCloser(bytes.NewReader(data)), true
		}
	}
	return nil, false
}

func (m *Memory) GetAvailableResources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
