// Package assets loads overlay images, backgrounds and audio clips in the
// background and caches them by URI. A load is started once per URI; the
// render path polls readiness and never waits. Failed loads stay
// unavailable until forgotten.
package assets

import (
	"context"
	"log/slog"
	"sync"
)

// Loader fetches and decodes one asset.
type Loader[T any] func(ctx context.Context, uri string) (T, error)

// Cache memoizes asynchronous loads by URI.
type Cache[T any] struct {
	load   Loader[T]
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*Future[T]
	wg      sync.WaitGroup
}

// NewCache creates a cache backed by load.
func NewCache[T any](load Loader[T], logger *slog.Logger) *Cache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache[T]{
		load:    load,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*Future[T]),
	}
}

// Get returns the future for uri, starting the load on first request.
func (c *Cache[T]) Get(uri string) *Future[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.entries[uri]; ok {
		return f
	}

	f := newFuture[T]()
	c.entries[uri] = f

	if c.ctx.Err() != nil {
		var zero T
		f.resolve(zero, ErrClosed)
		return f
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		val, err := c.load(c.ctx, uri)
		if err != nil {
			c.logger.Warn("asset unavailable", "uri", uri, "error", err)
		} else {
			c.logger.Debug("asset loaded", "uri", uri)
		}
		f.resolve(val, err)
	}()
	return f
}

// Peek returns the asset if it has finished loading, starting the load if
// it was never requested.
func (c *Cache[T]) Peek(uri string) (T, bool) {
	return c.Get(uri).Value()
}

// Prefetch starts loads for every uri.
func (c *Cache[T]) Prefetch(uris ...string) {
	for _, uri := range uris {
		if uri != "" {
			c.Get(uri)
		}
	}
}

// Forget drops the entry for uri so the next Get reloads it.
func (c *Cache[T]) Forget(uri string) {
	c.mu.Lock()
	delete(c.entries, uri)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close cancels loads in progress and waits for them to resolve.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}
