package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"image-resource-cache/internal/binding"
)

// Entry describes one displayed resource at the end of a run.
type Entry struct {
	Key    string `json:"key"`
	Remote bool   `json:"remote"`
	State  string `json:"state"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Empty  bool   `json:"empty"`
	Saved  string `json:"saved,omitempty"`
}

// FromBindings snapshots the displayed resource of each binding.
// saved maps binding ids to the path of their last save.
func FromBindings(bs []*binding.Binding, saved map[string]string) []Entry {
	entries := make([]Entry, 0, len(bs))
	for _, b := range bs {
		h := b.Active()
		if h == nil {
			continue
		}
		w, ht := h.Size()
		entries = append(entries, Entry{
			Key:    h.Key().String(),
			Remote: h.Key().IsRemote(),
			State:  h.State().String(),
			Width:  w,
			Height: ht,
			Empty:  h.Empty(),
			Saved:  saved[b.ID().String()],
		})
	}
	return entries
}

// Write writes the entries as indented JSON to path.
func Write(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}
