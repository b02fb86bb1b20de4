package movelist

import "github.com/park285/chessflix/internal/domain"

// Ply is one half-move of a display pair.
type Ply struct {
	SAN    string
	Index  int  // 0-based ply
	Target int  // cursor index that shows the position after this ply
	Active bool // true when the cursor displays this ply's resulting position
}

// Pair groups the White and Black plies of one full move.
type Pair struct {
	Number int
	White  Ply
	Black  *Ply
}

// Project groups moves into numbered pairs. Cursor index i highlights ply i-1,
// so nothing is active at the start position.
func Project(moves []domain.Move, cursorIndex int) []Pair {
	if len(moves) == 0 {
		return nil
	}
	pairs := make([]Pair, 0, (len(moves)+1)/2)
	for i := 0; i < len(moves); i += 2 {
		p := Pair{Number: i/2 + 1, White: plyOf(moves[i], i, cursorIndex)}
		if i+1 < len(moves) {
			b := plyOf(moves[i+1], i+1, cursorIndex)
			p.Black = &b
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func plyOf(mv domain.Move, idx, cursorIndex int) Ply {
	return Ply{
		SAN:    mv.SAN,
		Index:  idx,
		Target: idx + 1,
		Active: idx == cursorIndex-1,
	}
}

// ActivePair returns the position in pairs of the pair holding the active ply, or -1.
func ActivePair(pairs []Pair) int {
	for i, p := range pairs {
		if p.White.Active || (p.Black != nil && p.Black.Active) {
			return i
		}
	}
	return -1
}
