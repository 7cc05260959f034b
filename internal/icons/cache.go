package icons

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-panel/internal/weather"
)

// DefaultSize is the edge length icons are scaled to.
const DefaultSize = 72

const fetchTimeout = 30 * time.Second

// Backing is an optional second-level store shared between processes.
type Backing interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Set(ctx context.Context, code, bitmap string) error
}

// Cache keeps encoded icon bitmaps by provider icon code and tracks the
// active code. A code is fetched at most once while it is active or cached.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]string
	inflight map[string]bool
	active   string
	fetcher  weather.IconFetcher
	backing  Backing
	size     int
	onUpdate func(code string)
	onError  func(code string, err error)
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithBacking adds a shared second-level store.
func WithBacking(b Backing) Option {
	return func(c *Cache) { c.backing = b }
}

// WithSize overrides DefaultSize.
func WithSize(size int) Option {
	return func(c *Cache) {
		if size > 0 {
			c.size = size
		}
	}
}

// NewCache creates an empty cache. onUpdate is invoked whenever the active
// icon's bitmap becomes available; it must not call back into the cache.
func NewCache(fetcher weather.IconFetcher, onUpdate func(code string), log *zap.SugaredLogger, opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]string),
		inflight: make(map[string]bool),
		fetcher:  fetcher,
		size:     DefaultSize,
		onUpdate: onUpdate,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnError registers fn to be told about failed icon fetches. Like onUpdate it
// must not call back into the cache.
func (c *Cache) OnError(fn func(code string, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Get returns the cached bitmap for code.
func (c *Cache) Get(code string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[code]
	return b, ok
}

// Active returns the code most recently passed to Ensure.
func (c *Cache) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Current returns the active code and its bitmap once resolved.
func (c *Cache) Current() (code, bitmap string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[c.active]
	return c.active, b, ok
}

// Ensure makes code the active icon. Re-requesting the active code is a
// no-op. A cached bitmap is signalled synchronously; otherwise the fetch runs
// in the background and signals on success.
func (c *Cache) Ensure(code string) {
	if code == "" {
		return
	}

	c.mu.Lock()
	if code == c.active {
		c.mu.Unlock()
		return
	}
	c.active = code
	_, cached := c.entries[code]
	pending := c.inflight[code]
	if !cached && !pending {
		c.inflight[code] = true
	}
	c.mu.Unlock()

	if cached {
		c.notify(code)
		return
	}
	if pending {
		// the running fetch signals once it lands, since code is active again
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetch(code)
	}()
}

// Reset forgets the active code; completions for codes that are no longer
// active are cached without signalling. Bitmaps live for the whole process.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = ""
}

// Wait blocks until in-flight fetches have completed.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) fetch(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	bitmap, err := c.load(ctx, code)
	if err != nil {
		c.log.Warnw("icons: fetch failed", "code", code, "error", err)
		c.mu.Lock()
		delete(c.inflight, code)
		// leave the code unresolved so the next report retries
		if c.active == code {
			c.active = ""
		}
		onError := c.onError
		c.mu.Unlock()
		if onError != nil {
			onError(code, err)
		}
		return
	}

	c.mu.Lock()
	delete(c.inflight, code)
	c.entries[code] = bitmap
	current := c.active == code
	c.mu.Unlock()

	c.log.Debugw("icons: cached", "code", code)
	if current {
		c.notify(code)
	}
}

func (c *Cache) load(ctx context.Context, code string) (string, error) {
	if c.backing != nil {
		bitmap, ok, err := c.backing.Get(ctx, code)
		if err != nil {
			c.log.Warnw("icons: backing lookup failed", "code", code, "error", err)
		} else if ok {
			return bitmap, nil
		}
	}

	raw, err := c.fetcher.FetchIcon(ctx, code)
	if err != nil {
		return "", err
	}
	bitmap, err := Encode(raw, c.size)
	if err != nil {
		return "", err
	}

	if c.backing != nil {
		if err := c.backing.Set(ctx, code, bitmap); err != nil {
			c.log.Warnw("icons: backing store failed", "code", code, "error", err)
		}
	}
	return bitmap, nil
}

func (c *Cache) notify(code string) {
	if c.onUpdate != nil {
		c.onUpdate(code)
	}
}
