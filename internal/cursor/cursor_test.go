package cursor

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/rules"
)

func newGame(t *testing.T, moves ...string) *domain.Game {
	t.Helper()
	mvs, err := rules.Replay("", moves)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return domain.NewGame(domain.SourcePGN, domain.StartFEN, mvs, domain.Headers{})
}

func TestNilGameIsInvalidState(t *testing.T) {
	c := New()
	if _, err := c.Reset(nil); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Reset(nil) = %v", err)
	}
	if _, err := c.Advance(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Advance without game = %v", err)
	}
	if _, err := c.Seek(0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Seek without game = %v", err)
	}
}

func TestSeekShowsPositionAfterMove(t *testing.T) {
	g := newGame(t, "c4", "e5", "Nc3", "Nf6")
	c := New()
	if _, err := c.Reset(g); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	pos, err := c.Seek(2)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != g.Moves[1].After {
		t.Fatalf("Seek(2) = %q, want position after e5", pos)
	}
	mv, ok := c.CurrentMove()
	if !ok || mv.SAN != "e5" {
		t.Fatalf("CurrentMove = %+v %v", mv, ok)
	}
}

func TestSeekOutOfRangeKeepsCursor(t *testing.T) {
	g := newGame(t, "e4", "e5")
	c := New()
	_, _ = c.Reset(g)
	_, _ = c.Seek(1)
	for _, i := range []int{-1, 3, 100} {
		if _, err := c.Seek(i); !errors.Is(err, domain.ErrOutOfRange) {
			t.Fatalf("Seek(%d) = %v", i, err)
		}
		if c.Index() != 1 {
			t.Fatalf("cursor moved to %d on failed seek", c.Index())
		}
	}
}

func TestAdvanceWrapsToStart(t *testing.T) {
	g := newGame(t, "d4", "d5", "c4")
	c := New()
	_, _ = c.Reset(g)
	for i := 0; i < g.Len(); i++ {
		if _, err := c.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if !c.AtEnd() || c.Position() != g.LastPosition() {
		t.Fatalf("expected end of game, index=%d", c.Index())
	}
	pos, _ := c.Advance()
	if c.Index() != 0 || pos != g.StartFEN {
		t.Fatalf("advance at end: index=%d pos=%q", c.Index(), pos)
	}
}

func TestFullCycleReturnsToStart(t *testing.T) {
	g := newGame(t, "e4", "c5", "Nf3", "d6", "d4")
	c := New()
	_, _ = c.Reset(g)
	for i := 0; i < g.Len()+1; i++ {
		_, _ = c.Advance()
	}
	if c.Index() != 0 {
		t.Fatalf("len+1 advances from 0 should return to 0, got %d", c.Index())
	}
}

func TestRetreatAtStartIsNoop(t *testing.T) {
	g := newGame(t, "e4")
	c := New()
	_, _ = c.Reset(g)
	pos, err := c.Retreat()
	if err != nil || c.Index() != 0 || pos != g.StartFEN {
		t.Fatalf("Retreat at start: index=%d pos=%q err=%v", c.Index(), pos, err)
	}
}

func TestEmptyGame(t *testing.T) {
	g := domain.NewGame(domain.SourceFEN, "", nil, domain.Headers{})
	c := New()
	_, _ = c.Reset(g)
	pos, _ := c.Advance()
	if c.Index() != 0 || pos != g.StartFEN {
		t.Fatalf("advance on empty game: index=%d", c.Index())
	}
	if !c.AtStart() || !c.AtEnd() {
		t.Fatalf("empty game cursor is both at start and at end")
	}
}

func TestIndexStaysInRange(t *testing.T) {
	g := newGame(t, "e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Ba4")
	c := New()
	_, _ = c.Reset(g)
	r := rand.New(rand.NewSource(7))
	for step := 0; step < 500; step++ {
		switch r.Intn(3) {
		case 0:
			_, _ = c.Advance()
		case 1:
			_, _ = c.Retreat()
		default:
			_, _ = c.Seek(r.Intn(g.Len()+5) - 2)
		}
		if c.Index() < 0 || c.Index() > g.Len() {
			t.Fatalf("step %d: index %d out of [0,%d]", step, c.Index(), g.Len())
		}
		want, _ := g.PositionAt(c.Index())
		if c.Position() != want {
			t.Fatalf("step %d: position does not match index %d", step, c.Index())
		}
	}
}
