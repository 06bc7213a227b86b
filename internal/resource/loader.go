package resource

import (
	"context"
	"image"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"image-resource-cache/internal/texture"
)

// DecodeFunc turns encoded bytes into pixels.
type DecodeFunc func(r io.Reader) (*image.NRGBA, error)

// DefaultDecode decodes every format the texture package registers.
var DefaultDecode DecodeFunc = texture.Decode

// Loader drains one Queue on its own goroutine, doing the blocking
// fetch and decode for each item in FIFO order.
type Loader struct {
	name   string
	queue  *Queue
	source Source
	decode DecodeFunc
	log    *logrus.Entry

	done atomic.Int64
}

func newLoader(name string, q *Queue, src Source, decode DecodeFunc, log *logrus.Entry) *Loader {
	return &Loader{
		name:   name,
		queue:  q,
		source: src,
		decode: decode,
		log:    log.WithField("loader", name),
	}
}

// Name returns "local" or "remote".
func (l *Loader) Name() string { return l.name }

// Depth returns the number of items waiting in the loader's queue.
func (l *Loader) Depth() int { return l.queue.Len() }

// Done returns how many items the loader has processed.
func (l *Loader) Done() int64 { return l.done.Load() }

// run returns once the queue is closed; an item already popped is
// finished first.
func (l *Loader) run(ctx context.Context) {
	l.log.Debug("Loader started")
	for {
		img, ok := l.queue.Pop()
		if !ok {
			l.log.WithField("processed", l.done.Load()).Debug("Loader stopped")
			return
		}
		img.performLoad(ctx, l.source, l.decode, l.log)
		l.done.Add(1)
	}
}
