// ABOUTME: HTTP resource provider with an on-disk cache
// ABOUTME: Fetches base/name over HTTP, treating any non-200 response as absent
package resources

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sendspin/mixgraph/internal/logging"
)

// HTTP fetches resources from a web server
type HTTP struct {
	baseURL  string
	index    string
	cacheDir string
	client   *http.Client
}

// HTTPConfig configures an HTTP provider
type HTTPConfig struct {
	BaseURL string
	// Index is an optional path under BaseURL listing one resource name per line
	Index    string
	CacheDir string
	Timeout  time.Duration
}

// NewHTTP creates an HTTP provider and its cache directory
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("resources: empty base url")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "mixgraph-resources")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &HTTP{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		index:    cfg.Index,
		cacheDir: cfg.CacheDir,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (h *HTTP) resolve(name string) string {
	escaped := make([]string, 0)
	for _, part := range strings.Split(strings.TrimPrefix(name, "/"), "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return h.baseURL + "/" + strings.Join(escaped, "/")
}

func (h *HTTP) cachePath(u string) string {
	hash := sha256.Sum256([]byte(u))
	return filepath.Join(h.cacheDir, fmt.Sprintf("%x%s", hash[:8], path.Ext(u)))
}

func (h *HTTP) GetStream(name string) (io.ReadCloser, bool) {
	if name == "" {
		return nil, false
	}

	u := h.resolve(name)
	cachePath := h.cachePath(u)

	if f, err := os.Open(cachePath); err == nil {
		logging.Debugf("Resource cache hit: %s", name)
		return f, true
	}

	resp, err := h.client.Get(u)
	if err != nil {
		logging.Warnf("Failed to fetch resource %s: %v", name, err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Debugf("Resource %s unavailable: HTTP %d", name, resp.StatusCode)
		return nil, false
	}

	tmp, err := os.CreateTemp(h.cacheDir, "fetch-*")
	if err != nil {
		logging.Warnf("Failed to create cache file: %v", err)
		return nil, false
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		logging.Warnf("Failed to save resource %s: %v", name, err)
		return nil, false
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		logging.Warnf("Failed to store resource %s: %v", name, err)
		return nil, false
	}

	f, err := os.Open(cachePath)
	if err != nil {
		return nil, false
	}
	return f, true
}

// GetAvailableResources reads the index listing, if one is configured
func (h *HTTP) GetAvailableResources() []string {
	if h.index == "" {
		return nil
	}
	resp, err := h.client.Get(h.resolve(h.index))
	if err != nil {
		logging.Warnf("Failed to fetch resource index: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
	}
	return names
}

// Cleanup removes cached downloads
func (h *HTTP) Cleanup() error {
	return os.RemoveAll(h.cacheDir)
}
