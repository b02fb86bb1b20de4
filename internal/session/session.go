// Package session owns the loaded game and keeps the cursor, evaluations,
// autoplay and previews consistent with it. Every public operation runs under
// one lock; network calls happen off the lock and resolve by game identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/autoplay"
	"github.com/park285/chessflix/internal/branch"
	"github.com/park285/chessflix/internal/cursor"
	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/evalclient"
	"github.com/park285/chessflix/internal/evalstore"
	"github.com/park285/chessflix/internal/preview"
	"github.com/park285/chessflix/internal/rules"
)

const (
	DefaultDepth        = 20
	DefaultPreviewCount = 3
	MinDepth            = 1
	MaxDepth            = 30
	MaxPreviewCount     = 10
)

var ErrClosed = errors.New("session closed")

// Backend is the evaluation service.
type Backend interface {
	evalstore.Evaluator
	Reset(ctx context.Context) error
	Previews(ctx context.Context, fen string, count, depth int) ([]evalclient.Preview, error)
}

// Publisher receives a snapshot after every change.
type Publisher interface {
	Publish(snap Snapshot)
}

type PublisherFunc func(Snapshot)

func (f PublisherFunc) Publish(snap Snapshot) { f(snap) }

// Spawner runs background evaluation work.
type Spawner func(fn func())

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(c autoplay.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithSpawner replaces the goroutine per background request. Tests pass a synchronous spawner.
func WithSpawner(sp Spawner) Option {
	return func(s *Session) {
		if sp != nil {
			s.spawner = sp
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

func WithSpeed(sec float64) Option {
	return func(s *Session) { s.speed = sec }
}

func WithPreviewSpeed(sec float64) Option {
	return func(s *Session) { s.previewSpeed = sec }
}

// WithAnalysis sets the defaults restored on every submission.
func WithAnalysis(depth, previewCount int) Option {
	return func(s *Session) {
		if depth >= MinDepth && depth <= MaxDepth {
			s.defaultDepth = depth
		}
		if previewCount >= 0 && previewCount <= MaxPreviewCount {
			s.defaultCount = previewCount
		}
	}
}

type Session struct {
	backend      Backend
	logger       *zap.Logger
	clock        autoplay.Clock
	spawner      Spawner
	publisher    Publisher
	speed        float64
	previewSpeed float64
	defaultDepth int
	defaultCount int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	cursor       *cursor.Cursor
	store        *evalstore.Store
	sched        *autoplay.Scheduler
	previews     []*preview.Game
	previewsAt   int
	depth        int
	previewCount int
	fetching     uuid.UUID
	queue        []func()
	closed       bool

	// snapshots are sequenced and queued under mu; one drainer delivers them in order.
	seq      uint64
	outbox   []Snapshot
	draining bool
}

func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:      backend,
		logger:       zap.NewNop(),
		spawner:      func(fn func()) { go fn() },
		speed:        domain.DefaultSpeedSeconds,
		previewSpeed: domain.DefaultSpeedSeconds,
		defaultDepth: DefaultDepth,
		defaultCount: DefaultPreviewCount,
		cursor:       cursor.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.depth = s.defaultDepth
	s.previewCount = s.defaultCount
	s.store = evalstore.New(backend, s.logger)

	schedOpts := []autoplay.Option{autoplay.WithLogger(s.logger), autoplay.WithSpeed(s.speed)}
	if s.clock != nil {
		schedOpts = append(schedOpts, autoplay.WithClock(s.clock))
	}
	s.sched = autoplay.New(s.tick, schedOpts...)
	return s
}

// Submit resets the backend, parses text as FEN or PGN and installs it.
// Prior state is untouched on any failure.
func (s *Session) Submit(ctx context.Context, text string) (*domain.Game, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if s.backend != nil {
		if err := s.backend.Reset(ctx); err != nil {
			s.logger.Warn("eval_reset_failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrResetFailed, err)
		}
	}
	game, err := rules.Load(text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.depth = s.defaultDepth
	s.previewCount = s.defaultCount
	s.installLocked(game)
	s.mu.Unlock()
	s.flush()

	s.logger.Info("game_submitted",
		zap.String("game", game.ID.String()),
		zap.String("source", string(game.Source)),
		zap.Int("plies", game.Len()))
	s.publish()
	return game, nil
}

// Load installs a prebuilt game.
func (s *Session) Load(game *domain.Game) error {
	if game == nil {
		return domain.ErrInvalidState
	}
	return s.do(func() error {
		s.installLocked(game)
		return nil
	})
}

// installLocked replaces the game and everything derived from it.
func (s *Session) installLocked(game *domain.Game) {
	s.sched.Reset()
	_, _ = s.cursor.Reset(game)
	s.store.Activate(game)
	s.closePreviewsLocked()
	s.fetching = uuid.Nil

	if s.backend == nil || game.Len() == 0 {
		return
	}
	s.store.MarkPending(game)
	s.queueLocked(func() {
		s.store.LoadBatch(s.ctx, game)
		s.publish()
	})
}

func (s *Session) Next() error {
	return s.do(func() error {
		if _, err := s.cursor.Advance(); err != nil {
			return s.mapCursorErr(err)
		}
		s.lookupLocked()
		return nil
	})
}

func (s *Session) Prev() error {
	return s.do(func() error {
		if _, err := s.cursor.Retreat(); err != nil {
			return s.mapCursorErr(err)
		}
		s.lookupLocked()
		return nil
	})
}

func (s *Session) Seek(i int) error {
	return s.do(func() error {
		if _, err := s.cursor.Seek(i); err != nil {
			return s.mapCursorErr(err)
		}
		s.lookupLocked()
		return nil
	})
}

func (s *Session) Rewind() error { return s.Seek(0) }

func (s *Session) Play() error {
	return s.do(func() error {
		if s.cursor.Game() == nil {
			return domain.ErrNoGame
		}
		s.sched.Play()
		return nil
	})
}

func (s *Session) Pause() error {
	return s.do(func() error {
		s.sched.Pause()
		return nil
	})
}

// Toggle flips autoplay and reports whether it is now playing.
func (s *Session) Toggle() (bool, error) {
	var playing bool
	err := s.do(func() error {
		if s.cursor.Game() == nil {
			return domain.ErrNoGame
		}
		playing = s.sched.Toggle()
		return nil
	})
	return playing, err
}

func (s *Session) SetSpeed(sec float64) error {
	return s.do(func() error { return s.sched.SetSpeed(sec) })
}

// tick advances the cursor for autoplay generation gen.
func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if s.closed || !s.sched.Live(gen) || s.cursor.Game() == nil {
		s.mu.Unlock()
		return
	}
	_, _ = s.cursor.Advance()
	s.lookupLocked()
	idx := s.cursor.Index()
	s.mu.Unlock()
	s.flush()
	s.logger.Debug("autoplay_tick", zap.Int("index", idx))
	s.publish()
}

// Branch replaces every move after the cursor with moves.
func (s *Session) Branch(moves []string) (branch.Result, error) {
	var res branch.Result
	err := s.do(func() error {
		r, err := s.branchLocked(s.cursor.Index(), moves)
		res = r
		return err
	})
	return res, err
}

func (s *Session) branchLocked(at int, moves []string) (branch.Result, error) {
	game := s.cursor.Game()
	if game == nil {
		return branch.Result{}, domain.ErrNoGame
	}
	res, err := branch.Branch(game, at, moves)
	if err != nil {
		return branch.Result{}, err
	}
	if res.Game == game {
		if _, err := s.cursor.Seek(res.Cursor); err != nil {
			return branch.Result{}, err
		}
		s.lookupLocked()
		return res, nil
	}
	s.installLocked(res.Game)
	if _, err := s.cursor.Seek(res.Cursor); err != nil {
		return branch.Result{}, err
	}
	s.lookupLocked()
	s.logger.Info("game_branched",
		zap.String("from", game.ID.String()),
		zap.String("game", res.Game.ID.String()),
		zap.Int("at", at),
		zap.Int("added", len(moves)))
	return res, nil
}

func (s *Session) SetDepth(d int) error {
	if d < MinDepth || d > MaxDepth {
		return fmt.Errorf("%w: depth %d outside %d..%d", domain.ErrInvalidArgs, d, MinDepth, MaxDepth)
	}
	return s.do(func() error {
		s.depth = d
		return nil
	})
}

func (s *Session) SetPreviewCount(n int) error {
	if n < 0 || n > MaxPreviewCount {
		return fmt.Errorf("%w: preview count %d outside 0..%d", domain.ErrInvalidArgs, n, MaxPreviewCount)
	}
	return s.do(func() error {
		s.previewCount = n
		return nil
	})
}

// lookupLocked requests a single evaluation for the displayed ply unless it is
// already known or a batch is still in flight.
func (s *Session) lookupLocked() {
	idx := s.cursor.Index()
	game := s.cursor.Game()
	if game == nil || idx == 0 || s.backend == nil {
		return
	}
	ply := idx - 1
	if s.store.Has(ply) || s.store.Pending() {
		return
	}
	fen := s.cursor.Position()
	s.queueLocked(func() {
		s.store.LookupSingle(s.ctx, game, ply, fen)
		s.publish()
	})
}

func (s *Session) mapCursorErr(err error) error {
	if errors.Is(err, domain.ErrInvalidState) {
		return domain.ErrNoGame
	}
	return err
}

// do runs fn under the lock and publishes when it succeeds.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	err := fn()
	s.mu.Unlock()
	s.flush()
	if err == nil {
		s.publish()
	}
	return err
}

// queueLocked defers background work until the lock is released.
func (s *Session) queueLocked(fn func()) {
	s.queue = append(s.queue, fn)
}

func (s *Session) flush() {
	s.mu.Lock()
	jobs := s.queue
	s.queue = nil
	if s.closed {
		jobs = nil
	}
	if len(jobs) > 0 {
		s.wg.Add(len(jobs))
	}
	s.mu.Unlock()
	for _, fn := range jobs {
		fn := fn
		s.spawner(func() {
			defer s.wg.Done()
			fn()
		})
	}
}

// publish queues a snapshot of the current state. The first caller to find
// the outbox idle drains it; later callers return at once, so a slow publisher
// never delivers an older snapshot after a newer one.
func (s *Session) publish() {
	if s.publisher == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.outbox = append(s.outbox, s.snapshotLocked())
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.outbox) > 0 && !s.closed {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		for _, snap := range batch {
			s.publisher.Publish(snap)
		}
		s.mu.Lock()
	}
	s.outbox = nil
	s.draining = false
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops every scheduler and cancels outstanding requests.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.sched.Stop()
	s.closePreviewsLocked()
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
