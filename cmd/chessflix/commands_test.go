package main

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/adapter/textpresenter"
	"github.com/park285/chessflix/internal/archive"
	"github.com/park285/chessflix/internal/autoplay"
	"github.com/park285/chessflix/internal/evalclient"
	"github.com/park285/chessflix/internal/session"
)

type stubBackend struct{}

func (stubBackend) Reset(context.Context) error { return nil }

func (stubBackend) EvaluateGame(_ context.Context, _ string, lans []string) ([]int, error) {
	out := make([]int, len(lans))
	for i := range out {
		out[i] = (i + 1) * 10
	}
	return out, nil
}

func (stubBackend) EvaluatePosition(context.Context, string) (int, error) { return 0, nil }

func (stubBackend) Previews(_ context.Context, fen string, _, _ int) ([]evalclient.Preview, error) {
	return []evalclient.Preview{{StartingPosition: fen, Moves: []string{"g2g3"}, Evaluations: []evalclient.Centipawns{5}}}, nil
}

type stubArchive struct{}

func (stubArchive) Archives(context.Context) ([]string, error) {
	return []string{"https://api.chess.com/pub/player/x/games/2023/11"}, nil
}

func (stubArchive) Games(context.Context, string) ([]archive.Summary, error) {
	return []archive.Summary{{
		URL:         "https://www.chess.com/game/live/1",
		PGN:         "1. d4 d5 2. c4 *",
		White:       archive.Player{Username: "x", Rating: 1500},
		Black:       archive.Player{Username: "y", Rating: 1400},
		TimeControl: "10 min",
		Outcome:     "win",
	}}, nil
}

func newTestApp(t *testing.T) (*app, *strings.Builder) {
	t.Helper()
	f, err := textpresenter.NewDefaultFormatter()
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	sess := session.New(stubBackend{},
		session.WithClock(autoplay.NewManualClock()),
		session.WithSpawner(func(fn func()) { fn() }))
	t.Cleanup(sess.Close)
	out := &strings.Builder{}
	a := &app{
		sess:      sess,
		archive:   stubArchive{},
		formatter: f,
		presenter: textpresenter.NewPresenter(func(m string) error {
			out.WriteString(m)
			out.WriteString("\n")
			return nil
		}),
		logger: zap.NewNop(),
	}
	return a, out
}

func run(t *testing.T, a *app, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if a.handle(context.Background(), l) {
			t.Fatalf("loop stopped at %q", l)
		}
	}
}

func TestLoadMultiLinePGNAndNavigate(t *testing.T) {
	a, out := newTestApp(t)
	run(t, a, "load 1. c4 e5", "2. Nc3 Nf6", "", "seek 2")
	if !strings.Contains(out.String(), "Loaded 4 plies.") {
		t.Fatalf("output:\n%s", out)
	}
	if !strings.Contains(out.String(), "1. c4 [e5] 2. Nc3 Nf6") || !strings.Contains(out.String(), "Eval +0.20") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestLoadFENDirect(t *testing.T) {
	a, out := newTestApp(t)
	run(t, a, "load rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if !strings.Contains(out.String(), "Loaded 0 plies.") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestBranchAndErrors(t *testing.T) {
	a, out := newTestApp(t)
	run(t, a, "load 1. c4 e5 2. Nc3 Nf6", "", "seek 2", "branch g3 Ke7 Qa8")
	if !strings.Contains(out.String(), "Illegal move Qa8 at ply 4") {
		t.Fatalf("output:\n%s", out)
	}
	run(t, a, "branch g3")
	if !strings.Contains(out.String(), "Branched: 3 plies, at ply 3.") {
		t.Fatalf("output:\n%s", out)
	}
	run(t, a, "seek 9", "speed 42", "seek x", "frobnicate")
	for _, want := range []string{"outside 0..3", "between 0.5 and 10", "Invalid arguments for seek.", "Unknown command frobnicate."} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestBareBranchKeepsGame(t *testing.T) {
	a, out := newTestApp(t)
	run(t, a, "load 1. c4 e5 2. Nc3 Nf6", "", "seek 2")
	before := a.sess.Game().ID
	run(t, a, "branch")
	if !strings.Contains(out.String(), "Branched: 4 plies, at ply 2.") {
		t.Fatalf("output:\n%s", out)
	}
	if a.sess.Game().ID != before {
		t.Fatalf("bare branch replaced the game")
	}
}

func TestPreviewSetPosition(t *testing.T) {
	a, out := newTestApp(t)
	run(t, a, "load 1. c4 e5", "", "seek 2", "previews 1", "preview 0 select 1", "preview 0 set")
	if !strings.Contains(out.String(), "[0] +0.05") {
		t.Fatalf("output:\n%s", out)
	}
	if got := a.sess.Game().SANs(); strings.Join(got, " ") != "c4 e5 g3" {
		t.Fatalf("history = %v", got)
	}
}

func TestArchiveImport(t *testing.T) {
	a, out := newTestApp(t)
	run(t, a, "games 0")
	if !strings.Contains(out.String(), "Invalid arguments for games.") {
		t.Fatalf("games before archives should be rejected:\n%s", out)
	}
	run(t, a, "archives", "games 0", "import 0")
	for _, want := range []string{"0. 2023/11", "0. x (1500) vs y (1400)", "Loaded 3 plies."} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestQuit(t *testing.T) {
	a, out := newTestApp(t)
	if !a.handle(context.Background(), "quit") {
		t.Fatalf("quit should stop the loop")
	}
	if !strings.Contains(out.String(), "Bye.") {
		t.Fatalf("output:\n%s", out)
	}
}
