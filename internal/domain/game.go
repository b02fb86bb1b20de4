package domain

import (
	"strings"

	"github.com/google/uuid"
)

// SourceKind tells how a Game entered the session.
type SourceKind string

const (
	SourceFEN SourceKind = "fen"
	SourcePGN SourceKind = "pgn"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Move is one applied ply. Values are never modified after the rules adapter builds them.
type Move struct {
	Before string
	After  string
	SAN    string
	LAN    string
	Ply    int
}

// Player carries optional header metadata for one side.
type Player struct {
	Name   string
	Rating int
}

// Headers is the subset of PGN tag pairs the session shows.
type Headers struct {
	White  Player
	Black  Player
	Event  string
	Site   string
	Date   string
	Result string
}

func (h Headers) IsZero() bool {
	return h == Headers{}
}

// Game is an immutable move sequence. A new ID is minted for every Game,
// including branches, and serves as the identity for stale-result checks.
type Game struct {
	ID       uuid.UUID
	Source   SourceKind
	StartFEN string
	Moves    []Move
	Headers  Headers
}

// NewGame copies moves so the caller cannot mutate the published slice afterwards.
func NewGame(source SourceKind, startFEN string, moves []Move, headers Headers) *Game {
	if strings.TrimSpace(startFEN) == "" {
		startFEN = StartFEN
	}
	return &Game{
		ID:       uuid.New(),
		Source:   source,
		StartFEN: startFEN,
		Moves:    append([]Move(nil), moves...),
		Headers:  headers,
	}
}

func (g *Game) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Moves)
}

// PositionAt returns the FEN displayed at cursor index i (0 = start).
func (g *Game) PositionAt(i int) (string, error) {
	if g == nil {
		return "", ErrInvalidState
	}
	if i < 0 || i > len(g.Moves) {
		return "", ErrOutOfRange
	}
	if i == 0 {
		return g.StartFEN, nil
	}
	return g.Moves[i-1].After, nil
}

// LANs returns the long-algebraic list the evaluation backend expects.
func (g *Game) LANs() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.Moves))
	for i, mv := range g.Moves {
		out[i] = mv.LAN
	}
	return out
}

func (g *Game) SANs() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.Moves))
	for i, mv := range g.Moves {
		out[i] = mv.SAN
	}
	return out
}

// LastPosition is the position after the final move, or the start position for an empty game.
func (g *Game) LastPosition() string {
	if g == nil {
		return ""
	}
	if len(g.Moves) == 0 {
		return g.StartFEN
	}
	return g.Moves[len(g.Moves)-1].After
}
