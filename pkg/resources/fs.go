// ABOUTME: Filesystem resource provider
// ABOUTME: Serves files from an fs.FS, retrying lookups with fallback extensions
package resources

import (
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// DefaultExtensions are tried when a name does not match a file directly
var DefaultExtensions = []string{"mp3", "wav", "ogg", "flac", "opus"}

// FS serves resources from a filesystem
type FS struct {
	fsys       fs.FS
	extensions []string
}

// NewFS creates a provider over fsys. With no extensions, DefaultExtensions are used.
func NewFS(fsys fs.FS, extensions ...string) *FS {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &FS{fsys: fsys, extensions: extensions}
}

// NewDir creates a provider over a directory on disk
func NewDir(dir string, extensions ...string) *FS {
	return NewFS(os.DirFS(dir), extensions...)
}

func (f *FS) GetStream(name string) (io.ReadCloser, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return nil, false
	}
	for _, candidate := range candidates(name, f.extensions) {
		file, err := f.fsys.Open(candidate)
		if err != nil {
			continue
		}
		if info, err := file.Stat(); err != nil || info.IsDir() {
			file.Close()
			continue
		}
		return file, true
	}
	return nil, false
}

func (f *FS) GetAvailableResources() []string {
	var names []string
	_ = fs.WalkDir(f.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	sort.Strings(names)
	return names
}
