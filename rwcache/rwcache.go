// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rwcache implements the rolling-window cache of spec §4.3: a
// single local directory that grows by prefetching blocks of files up to
// cache_size+increment_size, then shrinks back to cache_size on a
// foreground Update call, recycling evicted files once the source
// corpus is exhausted.
//
// As with dbcache, the retrieval pack's internal/cache/* subtree kept
// only test files for the real cache engine, so this package is
// grounded on the spec's own state-machine description plus this
// module's clock (poll-loop determinism), queue (deque snapshot/commit),
// errs, logger and metrics packages.
package rwcache

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	gocfg "github.com/prefetchcache/prefetchcache/cfg"
	"github.com/prefetchcache/prefetchcache/clock"
	"github.com/prefetchcache/prefetchcache/errs"
	"github.com/prefetchcache/prefetchcache/internal/metastore"
	"github.com/prefetchcache/prefetchcache/logger"
	"github.com/prefetchcache/prefetchcache/metrics"
	"github.com/prefetchcache/prefetchcache/queue"
	"github.com/prefetchcache/prefetchcache/scheme"
)

// Block is the maximum number of descriptors fetched per prefetch cycle
// (spec §4.3, glossary "Block").
const Block = 20

const giB = 1 << 30

// unboundedCacheSize stands in for "effectively unbounded" (spec §4.3's
// default when Config.CacheSize is left zero), chosen small enough that
// adding a 1 GiB increment never overflows int64.
const unboundedCacheSize = math.MaxInt64 / 2

// Config holds RWCache's construction inputs (spec §4.3).
type Config struct {
	// FromURLs is the corpus. Order is shuffled once at construction.
	FromURLs []string
	// ToDir is the single local directory files are staged into.
	ToDir string
	// CacheSize is the steady-state active-set budget. Zero means
	// effectively unbounded.
	CacheSize int64
	// IncrementSize bounds how far active+staged may grow above
	// CacheSize before the background loop blocks. Zero defaults to
	// CacheSize + 1 GiB.
	IncrementSize int64
	// PollInterval overrides the 5-second poll the background loop
	// sleeps between budget checks; zero uses the spec default.
	PollInterval time.Duration
}

// Cache is a rolling-window prefetching cache (spec §4.3).
type Cache struct {
	toDir           string
	cacheSize       int64
	incrementSize   int64
	maxSize         int64
	pollInterval    time.Duration
	copyConcurrency int

	registry *scheme.Registry
	clock    clock.Clock
	metrics  metrics.Handle
	errSink  func(error)

	mu       sync.Mutex
	uncached *queue.Deque[scheme.FileDescriptor]
	staged   *queue.Deque[scheme.FileDescriptor]
	active   *queue.Deque[scheme.FileDescriptor]
	evicted  *queue.Deque[scheme.FileDescriptor]

	caching  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option customizes New.
type Option func(*Cache)

// WithMetrics wires a metrics.Handle; omit for metrics.NoopHandle{}.
func WithMetrics(h metrics.Handle) Option {
	return func(c *Cache) { c.metrics = h }
}

// WithErrorSink registers a callback invoked when the background loop
// terminates on error, per spec §7's "registered error sink".
func WithErrorSink(f func(error)) Option {
	return func(c *Cache) { c.errSink = f }
}

// WithClock overrides the clock used for the poll loop's sleeps; tests
// use this to drive the loop with clock.SimulatedClock instead of
// waiting on real 5-second timers.
func WithClock(c2 clock.Clock) Option {
	return func(c *Cache) { c.clock = c2 }
}

// WithCopyConcurrency overrides the number of files the background loop
// fetches in parallel within a block; omit to use gocfg.DefaultCopyConcurrency().
func WithCopyConcurrency(n int) Option {
	return func(c *Cache) { c.copyConcurrency = n }
}

// New constructs a Cache per spec §4.3: resume from metadata if present,
// otherwise shuffle the corpus, query sizes, and synchronously fill the
// active set up to cache_size. It then persists state and calls Start.
func New(ctx context.Context, registry *scheme.Registry, cfg Config, opts ...Option) (*Cache, error) {
	cacheSize, incrementSize, maxSize := resolveSizes(cfg)

	c := &Cache{
		toDir:           cfg.ToDir,
		cacheSize:       cacheSize,
		incrementSize:   incrementSize,
		maxSize:         maxSize,
		pollInterval:    cfg.PollInterval,
		copyConcurrency: gocfg.DefaultCopyConcurrency(),
		registry:        registry,
		clock:           clock.RealClock{},
		metrics:         metrics.NoopHandle{},
		uncached:        queue.New[scheme.FileDescriptor](),
		staged:          queue.New[scheme.FileDescriptor](),
		active:          queue.New[scheme.FileDescriptor](),
		evicted:         queue.New[scheme.FileDescriptor](),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 5 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(cfg.ToDir, 0o755); err != nil {
		return nil, fmt.Errorf("rwcache: creating cache dir: %w", err)
	}

	state, ok, err := metastore.LoadRWCache(cfg.ToDir)
	if err != nil {
		return nil, fmt.Errorf("rwcache: loading metadata: %w", err)
	}
	if ok {
		c.uncached = queue.Of(state.Uncached)
		c.staged = queue.Of(state.Staged)
		c.active = queue.Of(state.Active)
		c.evicted = queue.Of(state.Evicted)
		logger.Infof("rwcache: resumed %d active, %d staged, %d uncached, %d evicted from metadata",
			c.active.Len(), c.staged.Len(), c.uncached.Len(), c.evicted.Len())
	} else {
		if err := c.bootstrap(ctx, registry, cfg.FromURLs); err != nil {
			return nil, err
		}
	}

	if err := c.persist(); err != nil {
		return nil, err
	}
	c.Start(ctx)
	return c, nil
}

func resolveSizes(cfg Config) (cacheSize, incrementSize, maxSize int64) {
	cacheSize = cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = unboundedCacheSize
	}
	incrementSize = cfg.IncrementSize
	if incrementSize <= 0 {
		incrementSize = cacheSize + giB
	}
	maxSize = cacheSize + incrementSize
	if maxSize < cacheSize {
		maxSize = math.MaxInt64
	}
	return
}

// bootstrap shuffles from_urls, queries each one's size via the scheme
// layer, and synchronously fetches files from the head of the resulting
// uncached deque into the active set until the next one would exceed
// cache_size (spec §4.3 step 2).
func (c *Cache) bootstrap(ctx context.Context, registry *scheme.Registry, fromURLs []string) error {
	urls := append([]string(nil), fromURLs...)
	rand.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })

	for _, raw := range urls {
		s, normalized, err := registry.Resolve(raw)
		if err != nil {
			return err
		}
		size, err := s.Size(ctx, normalized)
		if err != nil {
			return err
		}
		c.uncached.PushBack(scheme.FileDescriptor{URL: normalized, Size: size})
	}

	var activeSize int64
	for !c.uncached.IsEmpty() {
		next := c.uncached.PeekFrontN(1)
		if len(next) == 0 {
			break
		}
		if activeSize+next[0].Size > c.cacheSize {
			break
		}
		desc := c.uncached.PopFront()
		if _, err := c.copyOne(ctx, desc); err != nil {
			return err
		}
		c.active.PushBack(desc)
		activeSize += desc.Size
	}
	logger.Infof("rwcache: bootstrapped %d active files (%d bytes) from %d urls", c.active.Len(), activeSize, len(urls))
	return nil
}

func (c *Cache) copyOne(ctx context.Context, desc scheme.FileDescriptor) (int64, error) {
	s, normalized, err := c.registry.Resolve(desc.URL)
	if err != nil {
		return 0, err
	}
	r, err := s.OpenRead(ctx, normalized)
	if err != nil {
		return 0, errs.RemoteIO("open", normalized, err)
	}
	defer r.Close()

	destPath := filepath.Join(c.toDir, scheme.Basename(normalized))
	w, err := os.Create(destPath) //nolint:gosec // destPath is derived from the cache's own descriptor
	if err != nil {
		return 0, errs.RemoteIO("create", destPath, err)
	}
	defer w.Close()

	written, err := io.Copy(w, r)
	if err != nil {
		return written, errs.RemoteIO("copy", normalized, err)
	}
	return written, nil
}

func sumSize(descs []scheme.FileDescriptor) int64 {
	var total int64
	for _, d := range descs {
		total += d.Size
	}
	return total
}

func (c *Cache) persist() error {
	c.mu.Lock()
	state := metastore.RWCacheState{
		Uncached: c.uncached.Snapshot(),
		Staged:   c.staged.Snapshot(),
		Active:   c.active.Snapshot(),
		Evicted:  c.evicted.Snapshot(),
	}
	c.mu.Unlock()
	return metastore.SaveRWCache(c.toDir, state)
}

// Start clears the stop signal and spawns the background fetch loop
// (spec §4.3 "Lifecycle operations").
func (c *Cache) Start(ctx context.Context) {
	c.stopOnce = sync.Once{}
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.caching.Store(true)
	go c.loop(ctx)
}

// Stop signals the background loop to exit at its next boundary (block
// start, poll wait, or callback entry) and waits for it to do so.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

// IsCaching reports whether the background loop is waiting for budget
// or actively copying a block.
func (c *Cache) IsCaching() bool {
	return c.caching.Load()
}

// CurrentFiles returns the local paths of every file currently visible
// to the consumer (spec §4.3).
func (c *Cache) CurrentFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	descs := c.active.Snapshot()
	paths := make([]string, len(descs))
	for i, d := range descs {
		paths[i] = filepath.Join(c.toDir, scheme.Basename(d.URL))
	}
	return paths
}

// Size returns Σsize(active) + Σsize(staged).
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sumSize(c.active.Snapshot()) + sumSize(c.staged.Snapshot())
}

// ActiveSize returns Σsize(active).
func (c *Cache) ActiveSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sumSize(c.active.Snapshot())
}

// Update promotes staged into active and evicts from the head of active
// until the budget is restored (spec §4.3 "Promotion").
func (c *Cache) Update(ctx context.Context) error {
	c.mu.Lock()
	promoted := c.staged.Drain()
	c.active.PushAllBack(promoted)

	var evicted []scheme.FileDescriptor
	for sumSize(c.active.Snapshot()) > c.cacheSize && !c.active.IsEmpty() {
		desc := c.active.PopFront()
		evicted = append(evicted, desc)
	}
	c.mu.Unlock()

	for _, desc := range evicted {
		path := filepath.Join(c.toDir, scheme.Basename(desc.URL))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("%w: evicting %s: %v", errs.ErrStateCorrupt, path, err)
		}
		c.mu.Lock()
		c.evicted.PushBack(desc)
		c.mu.Unlock()
	}

	if err := c.persist(); err != nil {
		return err
	}
	c.metrics.TransitionCount(ctx, "rwcache")
	c.metrics.ActiveSetBytes(ctx, c.ActiveSize(), "rwcache")
	logger.Infof("rwcache: update promoted %d staged, evicted %d, active_size=%d", len(promoted), len(evicted), c.ActiveSize())
	return nil
}

// loop is the background fetch loop (spec §4.3 "PrepareNextCacheBlock"),
// re-entering itself after every successfully committed block until the
// corpus and eviction pool are both empty or stop fires.
func (c *Cache) loop(ctx context.Context) {
	defer close(c.done)
	defer c.caching.Store(false)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		c.mu.Lock()
		pending := c.uncached.PeekFrontN(Block)
		c.mu.Unlock()

		if len(pending) == 0 {
			c.mu.Lock()
			rotated := !c.evicted.IsEmpty()
			if rotated {
				c.uncached.PushAllBack(c.evicted.Drain())
			}
			c.mu.Unlock()
			if !rotated {
				logger.Infof("rwcache: corpus and eviction pool both empty, background loop exiting")
				return
			}
			c.mu.Lock()
			pending = c.uncached.PeekFrontN(Block)
			c.mu.Unlock()
			if len(pending) == 0 {
				return
			}
		}

		if c.stopped() {
			return
		}
		if !c.waitForBudget(pending) {
			return // stop fired mid-wait
		}

		start := time.Now()
		copied, err := c.copyBlock(ctx, pending)
		if err != nil {
			logger.Errorf("rwcache: block copy failed: %v", err)
			if c.errSink != nil {
				c.errSink(err)
			}
			c.stopOnce.Do(func() { close(c.stopCh) })
			return
		}
		c.metrics.BlockCopyLatency(ctx, time.Since(start), "rwcache")
		c.metrics.FilesCopied(ctx, int64(len(pending)), "rwcache")

		if c.stopped() {
			return
		}

		c.mu.Lock()
		head := c.uncached.PeekFrontN(len(pending))
		if !descsEqual(head, pending) {
			c.mu.Unlock()
			err := fmt.Errorf("%w: uncached head changed between snapshot and commit", errs.ErrStateCorrupt)
			logger.Errorf("rwcache: %v", err)
			if c.errSink != nil {
				c.errSink(err)
			}
			return
		}
		committed := c.uncached.PopFrontN(len(pending))
		c.staged.PushAllBack(committed)
		c.mu.Unlock()

		_ = copied
		if err := c.persist(); err != nil {
			logger.Errorf("rwcache: persisting after block commit: %v", err)
			if c.errSink != nil {
				c.errSink(err)
			}
			return
		}

		if c.stopped() {
			return
		}
	}
}

func (c *Cache) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// waitForBudget sleeps in pollInterval increments until active+staged+
// pending fits under maxSize, honoring stop each iteration. Returns
// false if stop fired first.
func (c *Cache) waitForBudget(pending []scheme.FileDescriptor) bool {
	pendingSize := sumSize(pending)
	for {
		c.mu.Lock()
		fits := sumSize(c.active.Snapshot())+sumSize(c.staged.Snapshot())+pendingSize <= c.maxSize
		c.mu.Unlock()
		if fits {
			return true
		}
		if clock.Sleep(c.clock, c.pollInterval, c.stopCh) {
			return false
		}
	}
}

func (c *Cache) copyBlock(ctx context.Context, pending []scheme.FileDescriptor) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.copyConcurrency)
	var total int64
	var mu sync.Mutex
	for _, desc := range pending {
		desc := desc
		g.Go(func() error {
			n, err := c.copyOne(gctx, desc)
			if err != nil {
				return err
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

func descsEqual(a, b []scheme.FileDescriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
