package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/preview"
)

// FetchPreviews requests preview lines for the displayed position and returns
// how many were installed. A count of 0 clears previews without a request.
// Backend failures yield no previews, not an error.
func (s *Session) FetchPreviews(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	game := s.cursor.Game()
	if game == nil {
		s.mu.Unlock()
		return 0, domain.ErrNoGame
	}
	if s.previewCount == 0 || s.backend == nil {
		s.fetching = uuid.Nil
		s.closePreviewsLocked()
		s.mu.Unlock()
		s.publish()
		return 0, nil
	}
	fen := s.cursor.Position()
	at := s.cursor.Index()
	count, depth := s.previewCount, s.depth
	s.fetching = game.ID
	s.mu.Unlock()
	s.publish()

	lines, err := s.backend.Previews(ctx, fen, count, depth)
	if err != nil {
		s.logger.Warn("preview_fetch_failed", zap.String("game", game.ID.String()), zap.Error(err))
		lines = nil
	}

	s.mu.Lock()
	if s.closed || s.cursor.Game() == nil || s.cursor.Game().ID != game.ID || s.fetching != game.ID {
		s.mu.Unlock()
		s.logger.Debug("preview_stale", zap.String("game", game.ID.String()))
		return 0, nil
	}
	s.fetching = uuid.Nil
	s.closePreviewsLocked()
	for i, line := range lines {
		p, err := preview.New(len(s.previews), line,
			preview.WithClock(s.clock),
			preview.WithLogger(s.logger),
			preview.WithSpeed(s.previewSpeed),
			preview.WithOnTick(func(int) { s.publish() }))
		if err != nil {
			s.logger.Warn("preview_invalid", zap.Int("line", i), zap.Error(err))
			continue
		}
		s.previews = append(s.previews, p)
	}
	s.previewsAt = at
	n := len(s.previews)
	s.mu.Unlock()
	s.publish()
	return n, nil
}

func (s *Session) closePreviewsLocked() {
	for _, p := range s.previews {
		p.Close()
	}
	s.previews = nil
}

func (s *Session) previewLocked(slot int) (*preview.Game, error) {
	if slot < 0 || slot >= len(s.previews) {
		return nil, fmt.Errorf("%w: preview %d", domain.ErrOutOfRange, slot)
	}
	return s.previews[slot], nil
}

func (s *Session) withPreview(slot int, fn func(p *preview.Game) error) error {
	return s.do(func() error {
		p, err := s.previewLocked(slot)
		if err != nil {
			return err
		}
		return fn(p)
	})
}

func (s *Session) PreviewNext(slot int) error {
	return s.withPreview(slot, func(p *preview.Game) error {
		p.Next()
		return nil
	})
}

func (s *Session) PreviewPrev(slot int) error {
	return s.withPreview(slot, func(p *preview.Game) error {
		p.Prev()
		return nil
	})
}

func (s *Session) PreviewSelect(slot, index int) error {
	return s.withPreview(slot, func(p *preview.Game) error { return p.Select(index) })
}

func (s *Session) PreviewPlay(slot int) error {
	return s.withPreview(slot, func(p *preview.Game) error {
		p.Play()
		return nil
	})
}

func (s *Session) PreviewPause(slot int) error {
	return s.withPreview(slot, func(p *preview.Game) error {
		p.Pause()
		return nil
	})
}

func (s *Session) PreviewToggle(slot int) error {
	return s.withPreview(slot, func(p *preview.Game) error {
		p.Toggle()
		return nil
	})
}

func (s *Session) PreviewSpeed(slot int, sec float64) error {
	return s.withPreview(slot, func(p *preview.Game) error { return p.SetSpeed(sec) })
}

// PreviewSetPosition continues the main game from the position the previews were
// fetched at with the preview's line up to its cursor.
func (s *Session) PreviewSetPosition(slot int) error {
	return s.withPreview(slot, func(p *preview.Game) error {
		p.Pause()
		line := p.CurrentLine()
		_, err := s.branchLocked(s.previewsAt, line)
		return err
	})
}
