package session

import (
	"github.com/google/uuid"

	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/movelist"
	"github.com/park285/chessflix/internal/preview"
)

type Analysis struct {
	Depth        int
	PreviewCount int
	Fetching     bool
}

// Snapshot is an immutable view of the session for rendering. Seq increases
// with every snapshot taken, so consumers can discard out-of-date ones.
type Snapshot struct {
	Seq         uint64
	HasGame     bool
	GameID      uuid.UUID
	Source      domain.SourceKind
	Headers     domain.Headers
	Index       int
	Length      int
	FEN         string
	LastMove    *domain.Move
	Pairs       []movelist.Pair
	Eval        *domain.EvaluationRecord
	EvalPending bool
	Playback    domain.PlaybackState
	Analysis    Analysis
	Previews    []preview.View
	PreviewsAt  int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	s.seq++
	snap := Snapshot{
		Seq:      s.seq,
		Playback: s.sched.State(),
		Analysis: Analysis{Depth: s.depth, PreviewCount: s.previewCount, Fetching: s.fetching != uuid.Nil},
	}
	game := s.cursor.Game()
	if game == nil {
		return snap
	}
	snap.HasGame = true
	snap.GameID = game.ID
	snap.Source = game.Source
	snap.Headers = game.Headers
	snap.Index = s.cursor.Index()
	snap.Length = game.Len()
	snap.FEN = s.cursor.Position()
	snap.Pairs = movelist.Project(game.Moves, snap.Index)
	if mv, ok := s.cursor.CurrentMove(); ok {
		snap.LastMove = &mv
	}
	if snap.Index > 0 {
		if rec, ok := s.store.EvaluationFor(snap.Index - 1); ok {
			snap.Eval = &rec
		}
	}
	snap.EvalPending = s.store.Pending()
	snap.PreviewsAt = s.previewsAt
	for _, p := range s.previews {
		snap.Previews = append(snap.Previews, p.View())
	}
	return snap
}

// Game returns the active game or nil.
func (s *Session) Game() *domain.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Game()
}
