package autoplay

import (
	"sync"
	"time"
)

// Ticker is a cancellable repeating callback.
type Ticker interface {
	Stop()
}

// Clock schedules repeating callbacks.
type Clock interface {
	Every(d time.Duration, fn func()) Ticker
}

// RealClock runs callbacks on a time.Ticker goroutine.
type RealClock struct{}

type realTicker struct {
	t        *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (RealClock) Every(d time.Duration, fn func()) Ticker {
	rt := &realTicker{t: time.NewTicker(d), stopCh: make(chan struct{})}
	go func() {
		for {
			select {
			case <-rt.stopCh:
				return
			case <-rt.t.C:
				fn()
			}
		}
	}()
	return rt
}

func (rt *realTicker) Stop() {
	rt.stopOnce.Do(func() {
		rt.t.Stop()
		close(rt.stopCh)
	})
}

// ManualClock fires callbacks only when Advance is called. Used by tests.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	tickers []*manualTicker
}

type manualTicker struct {
	c       *ManualClock
	every   time.Duration
	next    time.Duration
	fn      func()
	stopped bool
}

func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) Every(d time.Duration, fn func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{c: c, every: d, next: c.now + d, fn: fn}
	c.tickers = append(c.tickers, t)
	return t
}

func (t *manualTicker) Stop() {
	t.c.mu.Lock()
	t.stopped = true
	t.c.mu.Unlock()
}

// Advance moves time forward by d and fires every callback that came due, in order.
// Callbacks run without the clock lock held, so they may start or stop tickers.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due *manualTicker
		for _, t := range c.tickers {
			if t.stopped || t.next > target {
				continue
			}
			if due == nil || t.next < due.next {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = due.next
		due.next += due.every
		fn := due.fn
		c.mu.Unlock()
		fn()
	}
}

// Live counts tickers that have not been stopped.
func (c *ManualClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}
