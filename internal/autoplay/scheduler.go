// Package autoplay advances a cursor on a timer. At most one ticker is live per
// Scheduler; every tick carries the generation it was scheduled under so a tick
// that races with Pause or SetSpeed can be recognised and dropped.
package autoplay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/domain"
)

// StepFunc is invoked on every tick. Callers that hold their own lock should
// check Live(gen) under it before acting.
type StepFunc func(gen uint64)

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSpeed sets the initial and reset speed in seconds. Out-of-range values are ignored.
func WithSpeed(sec float64) Option {
	return func(s *Scheduler) {
		if domain.ValidSpeed(sec) {
			s.defaultSpeed = sec
			s.speed = sec
		}
	}
}

type Scheduler struct {
	clock        Clock
	logger       *zap.Logger
	step         StepFunc
	defaultSpeed float64

	mu      sync.Mutex
	speed   float64
	playing bool
	stopped bool
	gen     uint64
	ticker  Ticker
}

// Handle scopes one Play call. Stopping a handle only pauses the scheduler
// when no later Play, Pause or SetSpeed has superseded it.
type Handle struct {
	s   *Scheduler
	gen uint64
}

func (h *Handle) Stop() {
	if h == nil || h.s == nil {
		return
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.s.gen == h.gen {
		h.s.pauseLocked()
	}
}

func (h *Handle) Live() bool {
	if h == nil || h.s == nil {
		return false
	}
	return h.s.Live(h.gen)
}

func New(step StepFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:        RealClock{},
		logger:       zap.NewNop(),
		step:         step,
		defaultSpeed: domain.DefaultSpeedSeconds,
		speed:        domain.DefaultSpeedSeconds,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play starts ticking every Speed seconds. Playing again returns the current handle.
func (s *Scheduler) Play() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return &Handle{}
	}
	if !s.playing {
		s.playing = true
		s.scheduleLocked()
		s.logger.Debug("autoplay_play", zap.Float64("speed", s.speed))
	}
	return &Handle{s: s, gen: s.gen}
}

func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
}

// Toggle flips between playing and paused and reports the new state.
func (s *Scheduler) Toggle() bool {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()
	if playing {
		s.Pause()
		return false
	}
	return s.Play().Live()
}

// SetSpeed changes the interval, rescheduling in place when playing.
func (s *Scheduler) SetSpeed(sec float64) error {
	if !domain.ValidSpeed(sec) {
		return domain.ErrInvalidSpeed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = sec
	if s.playing {
		s.scheduleLocked()
	}
	return nil
}

// Reset pauses and restores the default speed; called when a new game is installed.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
	s.speed = s.defaultSpeed
}

// Stop tears the scheduler down; later Play calls are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
	s.stopped = true
}

// Live reports whether a tick of generation gen may still act.
func (s *Scheduler) Live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && s.gen == gen
}

func (s *Scheduler) State() domain.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PlaybackState{Playing: s.playing, Speed: s.speed}
}

func (s *Scheduler) Playing() bool { return s.State().Playing }

func (s *Scheduler) Speed() float64 { return s.State().Speed }

func (s *Scheduler) pauseLocked() {
	s.gen++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.playing {
		s.logger.Debug("autoplay_pause")
	}
	s.playing = false
}

func (s *Scheduler) scheduleLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.gen++
	gen := s.gen
	d := time.Duration(s.speed * float64(time.Second))
	s.ticker = s.clock.Every(d, func() { s.fire(gen) })
}

// fire runs the step without holding the scheduler lock so the step may call back in.
func (s *Scheduler) fire(gen uint64) {
	if !s.Live(gen) {
		return
	}
	if s.step != nil {
		s.step(gen)
	}
}
