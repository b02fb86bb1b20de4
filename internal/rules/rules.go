// Package rules adapts github.com/corentings/chess/v2 to the immutable domain.Game model.
// Nothing outside this package touches the chess library directly.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chessflix/internal/domain"
)

var errEmptyInput = errors.New("empty input")

// ValidateFEN reports whether s decodes as a FEN position.
func ValidateFEN(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := nchess.FEN(s)
	return err == nil
}

// Load auto-detects the submission format: a valid FEN wins, anything else is read as PGN.
func Load(text string) (*domain.Game, error) {
	if ValidateFEN(text) {
		return LoadFEN(text)
	}
	return LoadPGN(text)
}

func LoadFEN(fen string) (*domain.Game, error) {
	fen = strings.TrimSpace(fen)
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.SourceFEN, Err: err}
	}
	g := nchess.NewGame(opt)
	return domain.NewGame(domain.SourceFEN, g.Position().String(), nil, domain.Headers{}), nil
}

func LoadPGN(pgn string) (*domain.Game, error) {
	pgn = strings.TrimSpace(pgn)
	if pgn == "" {
		return nil, &domain.ParseError{Kind: domain.SourcePGN, Err: errEmptyInput}
	}
	opt, err := nchess.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.SourcePGN, Err: err}
	}
	g := nchess.NewGame(opt)
	moves, err := snapshot(g)
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.SourcePGN, Err: err}
	}
	positions := g.Positions()
	start := domain.StartFEN
	if len(positions) > 0 && positions[0] != nil {
		start = positions[0].String()
	}
	return domain.NewGame(domain.SourcePGN, start, moves, headersOf(g)), nil
}

// snapshot freezes the main line of g into domain moves.
func snapshot(g *nchess.Game) ([]domain.Move, error) {
	mvs := g.Moves()
	positions := g.Positions()
	if len(positions) < len(mvs)+1 {
		return nil, fmt.Errorf("main line has %d moves but %d positions", len(mvs), len(positions))
	}
	out := make([]domain.Move, 0, len(mvs))
	for i, mv := range mvs {
		before, after := positions[i], positions[i+1]
		out = append(out, domain.Move{
			Before: before.String(),
			After:  after.String(),
			SAN:    nchess.AlgebraicNotation{}.Encode(before, mv),
			LAN:    nchess.UCINotation{}.Encode(before, mv),
			Ply:    i,
		})
	}
	return out, nil
}

func headersOf(g *nchess.Game) domain.Headers {
	tag := func(k string) string {
		v := strings.TrimSpace(g.GetTagPair(k))
		if v == "?" || v == "????.??.??" {
			return ""
		}
		return v
	}
	elo := func(k string) int {
		n, err := strconv.Atoi(tag(k))
		if err != nil {
			return 0
		}
		return n
	}
	return domain.Headers{
		White:  domain.Player{Name: tag("White"), Rating: elo("WhiteElo")},
		Black:  domain.Player{Name: tag("Black"), Rating: elo("BlackElo")},
		Event:  tag("Event"),
		Site:   tag("Site"),
		Date:   tag("Date"),
		Result: tag("Result"),
	}
}

// Board is a private, mutable rules instance used for replay. It is never shared.
type Board struct {
	g     *nchess.Game
	moves []domain.Move
}

func NewBoard(startFEN string) (*Board, error) {
	startFEN = strings.TrimSpace(startFEN)
	if startFEN == "" {
		startFEN = domain.StartFEN
	}
	opt, err := nchess.FEN(startFEN)
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.SourceFEN, Err: err}
	}
	return &Board{g: nchess.NewGame(opt)}, nil
}

// Apply plays one move given as LAN/UCI (tried first) or SAN.
func (b *Board) Apply(input string) (domain.Move, error) {
	mv, err := b.apply(input)
	if err != nil {
		return domain.Move{}, fmt.Errorf("%w: %v", domain.ErrIllegalMove, err)
	}
	return mv, nil
}

func (b *Board) apply(input string) (domain.Move, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return domain.Move{}, errEmptyInput
	}
	pos := b.g.Position()
	mv, err := b.decode(pos, raw)
	if err != nil {
		return domain.Move{}, err
	}
	if err := b.g.Move(mv, nil); err != nil {
		return domain.Move{}, err
	}
	out := domain.Move{
		Before: pos.String(),
		After:  b.g.Position().String(),
		SAN:    nchess.AlgebraicNotation{}.Encode(pos, mv),
		LAN:    nchess.UCINotation{}.Encode(pos, mv),
		Ply:    len(b.moves),
	}
	b.moves = append(b.moves, out)
	return out, nil
}

// decode resolves raw to one of the legal moves of pos so the move carries full tags.
func (b *Board) decode(pos *nchess.Position, raw string) (*nchess.Move, error) {
	cand, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(raw))
	if err != nil {
		cand, err = nchess.AlgebraicNotation{}.Decode(pos, raw)
		if err != nil {
			return nil, fmt.Errorf("%q is neither LAN nor SAN", raw)
		}
	}
	for _, legal := range pos.ValidMoves() {
		if legal.S1() == cand.S1() && legal.S2() == cand.S2() && legal.Promo() == cand.Promo() {
			m := legal
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%q is not legal in this position", raw)
}

func (b *Board) FEN() string { return b.g.Position().String() }

func (b *Board) Moves() []domain.Move { return append([]domain.Move(nil), b.moves...) }

// Replay applies inputs from startFEN on a fresh board. The first rejected input
// aborts the replay with a *domain.IllegalMoveError.
func Replay(startFEN string, inputs []string) ([]domain.Move, error) {
	b, err := NewBoard(startFEN)
	if err != nil {
		return nil, err
	}
	if err := b.ApplyAll(inputs, 0); err != nil {
		return nil, err
	}
	return b.Moves(), nil
}

// ApplyAll applies inputs in order; offset shifts the index reported on failure.
func (b *Board) ApplyAll(inputs []string, offset int) error {
	for i, in := range inputs {
		if _, err := b.apply(in); err != nil {
			applied := make([]string, 0, len(b.moves))
			for _, mv := range b.moves {
				applied = append(applied, mv.SAN)
			}
			return &domain.IllegalMoveError{Input: in, Index: offset + i, Applied: applied, Err: err}
		}
	}
	return nil
}
