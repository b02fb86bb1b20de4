// Package preview holds the short engine continuations shown next to the main game.
// Each preview owns its cursor, its evaluations and its own autoplay.
package preview

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/autoplay"
	"github.com/park285/chessflix/internal/cursor"
	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/evalclient"
	"github.com/park285/chessflix/internal/evalstore"
	"github.com/park285/chessflix/internal/rules"
)

type Option func(*config)

type config struct {
	clock    autoplay.Clock
	logger   *zap.Logger
	speed    float64
	autoplay bool
	onTick   func(slot int)
}

func WithClock(c autoplay.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

func WithSpeed(sec float64) Option {
	return func(cfg *config) { cfg.speed = sec }
}

// WithAutoplay controls whether the preview starts playing. Default true.
func WithAutoplay(on bool) Option {
	return func(cfg *config) { cfg.autoplay = on }
}

// WithOnTick is called after every autoplay step, outside the preview lock.
func WithOnTick(fn func(slot int)) Option {
	return func(cfg *config) { cfg.onTick = fn }
}

// Game is one preview line. Safe for concurrent use.
type Game struct {
	Slot int

	logger *zap.Logger
	onTick func(slot int)
	game   *domain.Game
	store  *evalstore.Store
	sched  *autoplay.Scheduler

	mu     sync.Mutex
	cursor *cursor.Cursor
	closed bool
}

// New replays p's line from its starting position. Moves may be LAN or SAN.
func New(slot int, p evalclient.Preview, opts ...Option) (*Game, error) {
	cfg := config{logger: zap.NewNop(), speed: domain.DefaultSpeedSeconds, autoplay: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := p.StartingPosition
	if start == "" {
		start = domain.StartFEN
	}
	moves, err := rules.Replay(start, p.Moves)
	if err != nil {
		return nil, fmt.Errorf("preview %d: %w", slot, err)
	}
	game := domain.NewGame(domain.SourceFEN, start, moves, domain.Headers{})

	g := &Game{
		Slot:   slot,
		logger: cfg.logger,
		onTick: cfg.onTick,
		game:   game,
		store:  evalstore.New(nil, cfg.logger),
		cursor: cursor.New(),
	}
	g.store.Seed(game, p.Scores())
	if _, err := g.cursor.Reset(game); err != nil {
		return nil, err
	}

	schedOpts := []autoplay.Option{autoplay.WithLogger(cfg.logger), autoplay.WithSpeed(cfg.speed)}
	if cfg.clock != nil {
		schedOpts = append(schedOpts, autoplay.WithClock(cfg.clock))
	}
	g.sched = autoplay.New(g.tick, schedOpts...)
	if cfg.autoplay && game.Len() > 0 {
		g.sched.Play()
	}
	return g, nil
}

func (g *Game) tick(gen uint64) {
	g.mu.Lock()
	if g.closed || !g.sched.Live(gen) {
		g.mu.Unlock()
		return
	}
	g.stepLocked(1)
	g.mu.Unlock()
	if g.onTick != nil {
		g.onTick(g.Slot)
	}
}

// stepLocked moves by delta over 0..len, wrapping both ways.
func (g *Game) stepLocked(delta int) {
	n := g.game.Len() + 1
	next := ((g.cursor.Index()+delta)%n + n) % n
	_, _ = g.cursor.Seek(next)
}

func (g *Game) Next() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stepLocked(1)
}

func (g *Game) Prev() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stepLocked(-1)
}

// Select jumps to cursor index i.
func (g *Game) Select(i int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.cursor.Seek(i)
	return err
}

func (g *Game) Toggle() bool { return g.sched.Toggle() }

func (g *Game) Pause() { g.sched.Pause() }

func (g *Game) Play() {
	if g.game.Len() > 0 {
		g.sched.Play()
	}
}

func (g *Game) SetSpeed(sec float64) error { return g.sched.SetSpeed(sec) }

// Line returns the LAN moves leading to cursor index i.
func (g *Game) Line(i int) ([]string, error) {
	if i < 0 || i > g.game.Len() {
		return nil, domain.ErrOutOfRange
	}
	return g.game.LANs()[:i], nil
}

// CurrentLine is Line at the current cursor index.
func (g *Game) CurrentLine() []string {
	g.mu.Lock()
	i := g.cursor.Index()
	g.mu.Unlock()
	line, _ := g.Line(i)
	return line
}

func (g *Game) Game() *domain.Game { return g.game }

// View is a consistent read of the preview state.
type View struct {
	Slot     int
	Game     *domain.Game
	Index    int
	FEN      string
	Eval     *domain.EvaluationRecord
	Playback domain.PlaybackState
}

func (g *Game) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := View{
		Slot:     g.Slot,
		Game:     g.game,
		Index:    g.cursor.Index(),
		FEN:      g.cursor.Position(),
		Playback: g.sched.State(),
	}
	if v.Index > 0 {
		if rec, ok := g.store.EvaluationFor(v.Index - 1); ok {
			v.Eval = &rec
		}
	}
	return v
}

// Close stops autoplay for good.
func (g *Game) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.sched.Stop()
}
