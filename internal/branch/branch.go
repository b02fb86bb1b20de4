package branch

import (
	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/rules"
)

// Result is a successfully branched game and where the cursor lands on it.
type Result struct {
	Game   *domain.Game
	Cursor int
}

// Branch keeps the moves leading to cursor index atIndex, appends newMoves
// (LAN or SAN) and returns a new Game. The edit is atomic: the first illegal
// input fails it with a *domain.IllegalMoveError and nothing is returned.
// Empty newMoves is a no-op: the same game comes back with Cursor atIndex.
func Branch(game *domain.Game, atIndex int, newMoves []string) (Result, error) {
	if game == nil {
		return Result{}, domain.ErrInvalidState
	}
	if atIndex < 0 || atIndex > len(game.Moves) {
		return Result{}, domain.ErrOutOfRange
	}
	if len(newMoves) == 0 {
		return Result{Game: game, Cursor: atIndex}, nil
	}
	board, err := rules.NewBoard(game.StartFEN)
	if err != nil {
		return Result{}, err
	}
	// 기존 수는 LAN으로 재생해 SAN 모호성 없이 결정적으로 재구성한다.
	prefix := make([]string, atIndex)
	for i := 0; i < atIndex; i++ {
		prefix[i] = game.Moves[i].LAN
	}
	if err := board.ApplyAll(prefix, 0); err != nil {
		return Result{}, err
	}
	if err := board.ApplyAll(newMoves, atIndex); err != nil {
		return Result{}, err
	}
	next := domain.NewGame(domain.SourceFEN, game.StartFEN, board.Moves(), domain.Headers{})
	return Result{Game: next, Cursor: atIndex + len(newMoves)}, nil
}
