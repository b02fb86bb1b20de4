package textpresenter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/chessflix/internal/archive"
	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/movelist"
	"github.com/park285/chessflix/internal/rules"
	"github.com/park285/chessflix/internal/session"
	"github.com/park285/chessflix/internal/viewfeed"
	"github.com/park285/chessflix/pkg/viewdto"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	f, err := NewDefaultFormatter()
	if err != nil {
		t.Fatalf("NewDefaultFormatter: %v", err)
	}
	return f
}

func englishSnapshot(t *testing.T, index int) session.Snapshot {
	t.Helper()
	g, err := rules.LoadPGN("[White \"Carlsen\"]\n[WhiteElo \"2850\"]\n[Black \"Nakamura\"]\n\n1. c4 e5 2. Nc3 Nf6")
	if err != nil {
		t.Fatalf("LoadPGN: %v", err)
	}
	pos, _ := g.PositionAt(index)
	snap := session.Snapshot{
		HasGame:  true,
		GameID:   g.ID,
		Source:   g.Source,
		Headers:  g.Headers,
		Index:    index,
		Length:   g.Len(),
		FEN:      pos,
		Pairs:    movelist.Project(g.Moves, index),
		Playback: domain.PlaybackState{Speed: 10},
		Analysis: session.Analysis{Depth: 20, PreviewCount: 3},
	}
	if index > 0 {
		mv := g.Moves[index-1]
		snap.LastMove = &mv
	}
	return snap
}

func TestPawns(t *testing.T) {
	cases := map[int]string{12: "+0.12", -105: "-1.05", 0: "0.00", 250: "+2.50", 10000: "+M", -10000: "-M", -5: "-0.05"}
	for cp, want := range cases {
		if got := Pawns(cp); got != want {
			t.Fatalf("Pawns(%d) = %q, want %q", cp, got, want)
		}
	}
}

func TestStatusBracketsActivePly(t *testing.T) {
	f := newFormatter(t)
	snap := englishSnapshot(t, 2)
	snap.Eval = &domain.EvaluationRecord{Ply: 1, Centipawns: -5}
	out := f.Status(snap)
	for _, want := range []string{
		"Carlsen (2850) vs Nakamura",
		"Ply 2/4",
		"Last move: e5",
		"1. c4 [e5] 2. Nc3 Nf6",
		"Eval -0.05",
		"Paused, every 10s",
		"Depth 20, previews 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("status missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "from ply") {
		t.Fatalf("exact evaluation should not mention a fallback ply:\n%s", out)
	}
}

func TestStatusFallbackAndPending(t *testing.T) {
	f := newFormatter(t)
	snap := englishSnapshot(t, 3)
	snap.Eval = &domain.EvaluationRecord{Ply: 0, Centipawns: 30}
	if out := f.Status(snap); !strings.Contains(out, "Eval +0.30 (from ply 1)") {
		t.Fatalf("fallback line missing:\n%s", out)
	}
	snap.Eval = nil
	snap.EvalPending = true
	if out := f.Status(snap); !strings.Contains(out, "evaluating") {
		t.Fatalf("pending line missing:\n%s", out)
	}
	if out := f.Status(session.Snapshot{}); out != "No game loaded. Use load first." {
		t.Fatalf("empty status = %q", out)
	}
}

func TestErrorMessages(t *testing.T) {
	f := newFormatter(t)
	snap := englishSnapshot(t, 0)
	ime := &domain.IllegalMoveError{Input: "Qa8", Index: 4, Applied: []string{"c4", "e5", "g3", "Ke7"}, Err: errors.New("x")}
	cases := []struct {
		err  error
		want string
	}{
		{ime, "Illegal move Qa8 at ply 4; applied so far: c4 e5 g3 Ke7"},
		{&domain.ParseError{Kind: domain.SourcePGN, Err: errors.New("x")}, "Could not read that as FEN or PGN."},
		{domain.ErrOutOfRange, "That ply is outside 0..4."},
		{domain.ErrNoGame, "No game loaded. Use load first."},
		{domain.ErrInvalidSpeed, "Speed must be between 0.5 and 10 seconds."},
		{archive.ErrNotFound, "Nothing found."},
		{errors.New("boom"), "Error: boom"},
	}
	for _, c := range cases {
		if got := f.Error(c.err, snap); got != c.want {
			t.Fatalf("Error(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestArchivesAndGames(t *testing.T) {
	f := newFormatter(t)
	out := f.Archives([]string{"https://api.chess.com/pub/player/x/games/2023/11"})
	if out != "0. 2023/11" {
		t.Fatalf("archives = %q", out)
	}
	out = f.Games([]archive.Summary{{
		White:       archive.Player{Username: "a", Rating: 1500},
		Black:       archive.Player{Username: "b", Rating: 1480},
		TimeControl: "10 min",
		Outcome:     "win",
	}})
	if out != "0. a (1500) vs b (1480)  10 min  win" {
		t.Fatalf("games = %q", out)
	}
}

func TestToDTOSnapshot(t *testing.T) {
	snap := englishSnapshot(t, 1)
	snap.Eval = &domain.EvaluationRecord{Ply: 0, Centipawns: 12}
	dto := ToDTOSnapshot(snap)
	if dto.Type != "snapshot" || dto.GameID != snap.GameID.String() || dto.LastMove != "c4" {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.White.Name != "Carlsen" || dto.White.Rating != 2850 {
		t.Fatalf("white = %+v", dto.White)
	}
	want := []viewdto.MovePair{
		{Number: 1, White: viewdto.MoveRef{SAN: "c4", Target: 1, Active: true}, Black: &viewdto.MoveRef{SAN: "e5", Target: 2}},
		{Number: 2, White: viewdto.MoveRef{SAN: "Nc3", Target: 3}, Black: &viewdto.MoveRef{SAN: "Nf6", Target: 4}},
	}
	if diff := cmp.Diff(want, dto.Moves); diff != "" {
		t.Fatalf("moves (-want +got):\n%s", diff)
	}
	if dto.Eval == nil || dto.Eval.Display != "+0.12" {
		t.Fatalf("eval = %+v", dto.Eval)
	}
	if empty := ToDTOSnapshot(session.Snapshot{}); empty.GameID != "" || empty.Moves != nil {
		t.Fatalf("empty dto = %+v", empty)
	}
}

type fakeFeed struct {
	err  error
	sent []any
}

func (f *fakeFeed) Publish(_ context.Context, v any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, v)
	return nil
}

func TestFeedPublisher(t *testing.T) {
	feed := &fakeFeed{}
	p := NewFeedPublisher(feed, nil)
	p.Publish(englishSnapshot(t, 2))
	if len(feed.sent) != 1 {
		t.Fatalf("sent = %d", len(feed.sent))
	}
	if dto, ok := feed.sent[0].(*viewdto.Snapshot); !ok || dto.Index != 2 {
		t.Fatalf("payload = %#v", feed.sent[0])
	}
	feed.err = viewfeed.ErrNotConnected
	p.Publish(englishSnapshot(t, 2))
	if len(feed.sent) != 1 {
		t.Fatalf("disconnected feed should drop the snapshot")
	}
}

func TestFeedPublisherDropsOlderSnapshots(t *testing.T) {
	feed := &fakeFeed{}
	p := NewFeedPublisher(feed, nil)
	at := func(index int, seq uint64) session.Snapshot {
		snap := englishSnapshot(t, index)
		snap.Seq = seq
		return snap
	}
	p.Publish(at(2, 5))
	p.Publish(at(1, 3))
	p.Publish(at(2, 5))
	p.Publish(at(3, 6))

	var got []int
	for _, v := range feed.sent {
		dto := v.(*viewdto.Snapshot)
		got = append(got, int(dto.Seq), dto.Index)
	}
	if diff := cmp.Diff([]int{5, 2, 6, 3}, got); diff != "" {
		t.Fatalf("sent seq/index (-want +got):\n%s", diff)
	}
}

func TestPresenterSkipsBlank(t *testing.T) {
	var got []string
	p := NewPresenter(func(m string) error {
		got = append(got, m)
		return nil
	})
	_ = p.Show("  ")
	_ = p.Show("hello")
	if diff := cmp.Diff([]string{"hello"}, got); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
}
