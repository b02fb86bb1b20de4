// Package evalstore keeps per-ply evaluations for exactly one active game.
// Every request is tagged with the game it was issued for; results that
// resolve after the active game changed are dropped.
package evalstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/domain"
)

// Evaluator is the evaluation backend as seen by the store.
type Evaluator interface {
	EvaluateGame(ctx context.Context, startFEN string, lans []string) ([]int, error)
	EvaluatePosition(ctx context.Context, fen string) (int, error)
}

type Store struct {
	eval   Evaluator
	logger *zap.Logger

	mu      sync.RWMutex
	active  uuid.UUID
	records map[int]domain.EvaluationRecord
	pending bool
}

func New(eval Evaluator, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{eval: eval, logger: logger, records: make(map[int]domain.EvaluationRecord)}
}

// Activate switches the active game and forgets every record.
func (s *Store) Activate(game *domain.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = uuid.Nil
	if game != nil {
		s.active = game.ID
	}
	s.records = make(map[int]domain.EvaluationRecord)
	s.pending = false
}

// MarkPending flags a batch as in flight for game so single lookups can be skipped
// before the batch goroutine gets scheduled.
func (s *Store) MarkPending(game *domain.Game) {
	if game == nil {
		return
	}
	s.mu.Lock()
	if s.active == game.ID {
		s.pending = true
	}
	s.mu.Unlock()
}

// LoadBatch requests evaluations for every move of game. Failures and length
// mismatches leave the store empty; nothing is returned to the caller.
func (s *Store) LoadBatch(ctx context.Context, game *domain.Game) {
	if game == nil || s.eval == nil {
		return
	}
	tag := game.ID
	s.MarkPending(game)

	scores, err := s.eval.EvaluateGame(ctx, game.StartFEN, game.LANs())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != tag {
		s.logger.Debug("eval_batch_stale", zap.String("game", tag.String()))
		return
	}
	s.pending = false
	if err != nil {
		s.logger.Warn("eval_batch_failed", zap.String("game", tag.String()), zap.Error(err))
		return
	}
	if len(scores) != len(game.Moves) {
		s.logger.Warn("eval_batch_length_mismatch",
			zap.String("game", tag.String()),
			zap.Int("moves", len(game.Moves)),
			zap.Int("evaluations", len(scores)))
		return
	}
	for ply, cp := range scores {
		s.records[ply] = domain.EvaluationRecord{GameID: tag, Ply: ply, Centipawns: cp, Source: domain.EvalBatch}
	}
	s.logger.Debug("eval_batch_loaded", zap.String("game", tag.String()), zap.Int("records", len(scores)))
}

// LookupSingle evaluates fen, the position after move ply of game. The score is
// returned even when stale; it is stored only while game is still active.
// Failures yield 0.
func (s *Store) LookupSingle(ctx context.Context, game *domain.Game, ply int, fen string) int {
	if game == nil || s.eval == nil {
		return 0
	}
	tag := game.ID
	cp, err := s.eval.EvaluatePosition(ctx, fen)
	if err != nil {
		s.logger.Warn("eval_single_failed", zap.String("game", tag.String()), zap.Int("ply", ply), zap.Error(err))
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != tag {
		s.logger.Debug("eval_single_stale", zap.String("game", tag.String()), zap.Int("ply", ply))
		return cp
	}
	if ply < 0 || ply >= len(game.Moves) {
		return cp
	}
	if existing, ok := s.records[ply]; ok && existing.Source != domain.EvalSingle {
		return cp
	}
	s.records[ply] = domain.EvaluationRecord{GameID: tag, Ply: ply, Centipawns: cp, Source: domain.EvalSingle}
	return cp
}

// Seed installs evaluations that arrived together with the game.
func (s *Store) Seed(game *domain.Game, scores []int) {
	s.Activate(game)
	if game == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ply, cp := range scores {
		if ply >= len(game.Moves) {
			break
		}
		s.records[ply] = domain.EvaluationRecord{GameID: game.ID, Ply: ply, Centipawns: cp, Source: domain.EvalInline}
	}
}

// EvaluationFor returns the record at ply or, failing that, the nearest preceding one.
func (s *Store) EvaluationFor(ply int) (domain.EvaluationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ply < 0 {
		return domain.EvaluationRecord{}, false
	}
	if rec, ok := s.records[ply]; ok {
		return rec, true
	}
	best := -1
	for p := range s.records {
		if p < ply && p > best {
			best = p
		}
	}
	if best < 0 {
		return domain.EvaluationRecord{}, false
	}
	return s.records[best], true
}

func (s *Store) Has(ply int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[ply]
	return ok
}

func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Records returns the stored evaluations ordered by ply.
func (s *Store) Records() []domain.EvaluationRecord {
	s.mu.RLock()
	out := make([]domain.EvaluationRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Ply < out[j].Ply })
	return out
}
