package resource

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Cache is a reference-counted store of images keyed by Key, with a local
// and a remote loader that fill them in the background.
//
// An Image lives in the cache exactly as long as it has references.
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	items   map[Key]*Image
	orphans []Texture

	local  *Loader
	remote *Loader

	log     *logrus.Entry
	claimed atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// Stats is a snapshot for monitoring.
type Stats struct {
	Resources   int
	LocalDepth  int
	RemoteDepth int
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	local  Source
	remote Source
	decode DecodeFunc
	log    *logrus.Entry
}

// WithLocalSource sets the source used for filesystem keys.
func WithLocalSource(s Source) Option {
	return func(o *options) { o.local = s }
}

// WithRemoteSource sets the source used for http(s) keys.
func WithRemoteSource(s Source) Option {
	return func(o *options) { o.remote = s }
}

// WithDecoder replaces the image decoder.
func WithDecoder(d DecodeFunc) Option {
	return func(o *options) { o.decode = d }
}

// WithLogger sets the log entry used by the cache and its loaders.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.log = l }
}

// NewCache creates an empty cache. Loaders do not run until Start.
func NewCache(opts ...Option) *Cache {
	o := options{
		local:  FileSource{},
		remote: &HTTPSource{},
		decode: DefaultDecode,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = logrus.NewEntry(l)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		items:  make(map[Key]*Image),
		local:  newLoader("local", NewQueue(), o.local, o.decode, o.log),
		remote: newLoader("remote", NewQueue(), o.remote, o.decode, o.log),
		log:    o.log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the two loader goroutines. Later calls do nothing.
func (c *Cache) Start() {
	c.startOnce.Do(func() {
		for _, l := range []*Loader{c.local, c.remote} {
			c.wg.Add(1)
			go func(l *Loader) {
				defer c.wg.Done()
				l.run(c.ctx)
			}(l)
		}
	})
}

// Close stops both loaders and is meant for teardown. The fetch context is
// cancelled, so a remote load in flight fails and its image stays Loaded
// with an empty payload; a local load in flight completes. Items still
// queued are dropped, marked Loaded (empty), and their queue references
// released.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		left := append(c.local.queue.Close(), c.remote.queue.Close()...)
		c.cancel()
		c.wg.Wait()

		for _, img := range left {
			img.markAbandoned()
			c.release(img)
		}
		c.log.WithFields(logrus.Fields{
			"abandoned": len(left),
			"resources": c.Count(),
		}).Debug("Cache closed")
	})
}

// ClaimRenderToken returns the cache's only RenderToken.
// It panics when called twice.
func (c *Cache) ClaimRenderToken() *RenderToken {
	if !c.claimed.CompareAndSwap(false, true) {
		panic("resource: render token already claimed")
	}
	return &RenderToken{cache: c}
}

func (c *Cache) checkToken(tok *RenderToken) {
	if tok == nil || tok.cache != c {
		panic("resource: render operation without this cache's render token")
	}
}

// Acquire returns a handle to the image for key, creating it on a miss.
func (c *Cache) Acquire(key Key) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.items[key]
	if ok {
		img.refs++
		return &Handle{imageRef: img}
	}

	img = &Image{key: key, cache: c, refs: 1}
	c.items[key] = img
	return &Handle{imageRef: img}
}

// Find returns the live image for key without taking a reference.
func (c *Cache) Find(key Key) (*Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.items[key]
	return img, ok
}

// Count returns the number of live images.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the live image count and both queue depths.
func (c *Cache) Stats() Stats {
	return Stats{
		Resources:   c.Count(),
		LocalDepth:  c.local.Depth(),
		RemoteDepth: c.remote.Depth(),
	}
}

// Loaders returns the local and remote loaders.
func (c *Cache) Loaders() (local, remote *Loader) {
	return c.local, c.remote
}

// ReleaseTextures frees textures of images destroyed since the last call.
// Render goroutine only.
func (c *Cache) ReleaseTextures(tok *RenderToken) int {
	c.checkToken(tok)

	c.mu.Lock()
	orphans := c.orphans
	c.orphans = nil
	c.mu.Unlock()

	for _, t := range orphans {
		t.Release()
	}
	return len(orphans)
}

func (c *Cache) retain(img *Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img.refs <= 0 {
		panic(fmt.Sprintf("resource: retain of destroyed image %q", img.key))
	}
	img.refs++
}

// release drops one reference and destroys the image at zero.
func (c *Cache) release(img *Image) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img.refs <= 0 {
		panic(fmt.Sprintf("resource: release of %q with no references", img.key))
	}
	img.refs--
	if img.refs > 0 {
		return img.refs
	}

	if c.items[img.key] == img {
		delete(c.items, img.key)
	}
	img.destroy()
	return 0
}

// enqueue takes the queue's reference and pushes img on its queue.
func (c *Cache) enqueue(img *Image) {
	c.mu.Lock()
	if img.refs <= 0 {
		c.mu.Unlock()
		img.markAbandoned()
		return
	}
	img.refs++
	c.mu.Unlock()

	img.state.Store(int32(Queued))

	l := c.local
	if img.key.IsRemote() {
		l = c.remote
	}
	if !l.queue.Push(img) {
		img.markAbandoned()
		c.release(img)
		return
	}
	c.log.WithFields(logrus.Fields{
		"key":    img.key,
		"loader": l.name,
	}).Debug("Resource queued")
}
