package cursor

import (
	"github.com/park285/chessflix/internal/domain"
)

// Cursor tracks which position of a Game is displayed.
// Index 0 is the start position; index i shows the position after move i-1.
// It is not safe for concurrent use; the owning session serializes access.
type Cursor struct {
	game  *domain.Game
	index int
}

func New() *Cursor { return &Cursor{} }

// Reset installs game and moves to its start position.
func (c *Cursor) Reset(game *domain.Game) (string, error) {
	if game == nil {
		return "", domain.ErrInvalidState
	}
	c.game = game
	c.index = 0
	return game.StartFEN, nil
}

// Advance steps forward one ply. At the end it wraps to the start position.
func (c *Cursor) Advance() (string, error) {
	if c.game == nil {
		return "", domain.ErrInvalidState
	}
	if c.index < len(c.game.Moves) {
		c.index++
	} else {
		c.index = 0
	}
	return c.Position(), nil
}

// Retreat steps back one ply; a no-op at the start.
func (c *Cursor) Retreat() (string, error) {
	if c.game == nil {
		return "", domain.ErrInvalidState
	}
	if c.index > 0 {
		c.index--
	}
	return c.Position(), nil
}

// Seek jumps to index i. The cursor is unchanged on error.
func (c *Cursor) Seek(i int) (string, error) {
	if c.game == nil {
		return "", domain.ErrInvalidState
	}
	if i < 0 || i > len(c.game.Moves) {
		return "", domain.ErrOutOfRange
	}
	c.index = i
	return c.Position(), nil
}

func (c *Cursor) Index() int { return c.index }

func (c *Cursor) Game() *domain.Game { return c.game }

func (c *Cursor) Len() int { return c.game.Len() }

func (c *Cursor) Position() string {
	pos, err := c.game.PositionAt(c.index)
	if err != nil {
		return ""
	}
	return pos
}

func (c *Cursor) AtStart() bool { return c.index == 0 }

func (c *Cursor) AtEnd() bool { return c.game != nil && c.index == len(c.game.Moves) }

// CurrentMove is the move that produced the displayed position.
func (c *Cursor) CurrentMove() (domain.Move, bool) {
	if c.game == nil || c.index == 0 {
		return domain.Move{}, false
	}
	return c.game.Moves[c.index-1], true
}
