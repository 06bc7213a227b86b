package resource

import (
	"path/filepath"
	"strings"
)

// Key identifies a resource: a local file path or a URL.
// Two acquisitions with equal keys share one Image.
type Key string

// remotePrefix marks keys that are fetched over the network.
const remotePrefix = "http"

// NewKey canonicalizes name. URLs are kept as-is; relative paths are
// resolved against baseDir and cleaned.
func NewKey(name, baseDir string) Key {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, remotePrefix) {
		return Key(name)
	}
	if !filepath.IsAbs(name) && baseDir != "" {
		name = filepath.Join(baseDir, name)
	}
	return Key(filepath.Clean(name))
}

// IsRemote reports whether the key is loaded through the remote queue.
func (k Key) IsRemote() bool {
	return strings.HasPrefix(string(k), remotePrefix)
}

func (k Key) String() string {
	return string(k)
}
