package hostproc

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/loom/formatbridge/internal/logging"
)

// Cache memoises Resolve and invalidates itself whenever HOST_CACHE changes
// on disk (a binary replaced or a manifest rewritten). Without this, a
// client that resolved the host path once would keep launching a stale
// binary after an in-place upgrade of HOST_CACHE until process restart.
type Cache struct {
	mu        sync.Mutex
	hostPath  string
	hostCache string
	cached    *Resolution
	watcher   *fsnotify.Watcher
	log       *logging.Logger
}

// NewCache builds a Cache and starts watching hostCache for changes, if set.
// Watch failures are non-fatal: Resolve is simply called fresh every time.
func NewCache(hostPath, hostCache string) *Cache {
	c := &Cache{hostPath: hostPath, hostCache: hostCache, log: logging.New("hostproc")}
	if hostCache == "" {
		return c
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Warnf("could not start HOST_CACHE watcher: %v", err)
		return c
	}
	if err := w.Add(hostCache); err != nil {
		c.log.Warnf("could not watch HOST_CACHE %s: %v", hostCache, err)
		_ = w.Close()
		return c
	}
	c.watcher = w
	go c.watchLoop()
	return c
}

func (c *Cache) watchLoop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				c.invalidate()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warnf("HOST_CACHE watcher error: %v", err)
		}
	}
}

func (c *Cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// Resolve returns the cached resolution, recomputing it if none is cached
// (first call, or after an invalidating filesystem event).
func (c *Cache) Resolve() (Resolution, error) {
	if c.hostCache != "" && c.watcher == nil {
		// Watching HOST_CACHE failed, so nothing would ever invalidate a
		// cached result: resolve fresh on every call instead.
		return Resolve(c.hostPath, c.hostCache)
	}
	c.mu.Lock()
	if c.cached != nil {
		r := *c.cached
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	r, err := Resolve(c.hostPath, c.hostCache)
	if err != nil {
		return Resolution{}, err
	}
	c.mu.Lock()
	c.cached = &r
	c.mu.Unlock()
	return r, nil
}

// Close stops the watcher, if any.
func (c *Cache) Close() {
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
}
