package binding

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"image-resource-cache/internal/resource"
)

// EventKind names a notification sent to the host layer.
type EventKind int

const (
	// EventSize reports a change of the displayed image size.
	EventSize EventKind = iota
	// EventSaved reports a completed save.
	EventSaved
	// EventMonitor reports a change in cache or queue counts.
	EventMonitor
)

func (k EventKind) String() string {
	switch k {
	case EventSize:
		return "size"
	case EventSaved:
		return "saved"
	case EventMonitor:
		return "monitor"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one notification.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
	Path   string
	Stats  resource.Stats
}

// Update runs once per frame on the render goroutine: it swaps the
// displayed image if Set changed it, starts its load, uploads it once
// loaded, applies pending edits and saves, and emits change events.
func (b *Binding) Update(tok *resource.RenderToken, up resource.Uploader) error {
	var (
		events []Event
		err    error
	)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}

	if b.monitor {
		if s := b.cache.Stats(); s != b.stats {
			b.stats = s
			events = append(events, Event{Kind: EventMonitor, Stats: s})
		}
	}

	if b.want != "" && b.want != b.shown {
		if b.active != nil {
			b.active.Release()
		}
		b.active = b.cache.Acquire(b.want)
		b.shown = b.want
		b.ready = false
		b.log.WithField("key", b.shown).Debug("Displayed image changed")
	}

	w, h := 0, 0
	if img := b.active; img != nil {
		img.RequestLoad()
		if img.Loaded() {
			if b.canvasW > 0 {
				img.Allocate(tok, b.canvasW, b.canvasH)
			}

			// Edits and saves wait on the binding until the image they
			// target is loaded.
			for _, t := range []resource.Transform{b.resize, b.crop, b.capture} {
				if t != nil {
					img.RequestTransform(t)
				}
			}
			b.resize, b.crop, b.capture = nil, nil, nil
			if b.save != "" {
				img.RequestSave(b.save)
				b.save = ""
			}

			if err = img.EnsureUploaded(tok, up); err != nil {
				b.log.WithError(err).WithField("key", img.Key()).Warn("Upload failed")
			}

			path, saved, serr := img.ApplySave(tok)
			switch {
			case serr != nil:
				b.log.WithError(serr).WithField("path", path).Warn("Save failed")
				if err == nil {
					err = serr
				}
			case saved:
				b.log.WithFields(logrus.Fields{"key": img.Key(), "path": path}).Info("Image saved")
				events = append(events, Event{Kind: EventSaved, Path: path})
			}

			w, h = img.Size()
			b.ready = true
		}
	}

	if w != b.width || h != b.height {
		b.width, b.height = w, h
		events = append(events, Event{Kind: EventSize, Width: w, Height: h})
	}
	b.mu.Unlock()

	for _, e := range events {
		b.notify(e)
	}
	return err
}
