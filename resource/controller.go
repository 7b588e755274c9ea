package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by callers that cannot proceed when a
// non-blocking memory reservation is denied.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds global resource limits for one extractor instance.
type Config struct {
	// MemoryLimitBytes caps the bytes held by materialized blocks and the
	// block cache. 0 means track only, no hard limit.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers caps concurrent background jobs such as store
	// downloads and staging. 0 defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec throttles background IO so bulk staging does not
	// starve foreground payload reads. 0 means unlimited.
	IOLimitBytesPerSec int64
}

// Controller tracks and limits memory, background concurrency, and IO
// throughput. A nil *Controller is valid and enforces nothing.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	bgSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireMemory reserves bytes, blocking until the reservation fits under
// the limit or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes without blocking. It reports whether the
// reservation succeeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit in bytes, 0 if unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireBackground reserves a background worker slot, blocking while all
// slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground reserves a worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground returns a worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// AcquireIO waits until the throughput limit admits the given byte count.
// Counts larger than the limiter burst are admitted in burst-sized
// chunks, so callers may acquire arbitrarily large reads.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
