package archive

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

const monthBody = `{"games":[
 {"url":"https://www.chess.com/game/live/1","pgn":"1. e4 e5 *","time_control":"600","time_class":"rapid","end_time":1700000000,
  "white":{"username":"TobiahsRex","rating":1500,"result":"win","@id":"http://archive.test/player/tobiahsrex"},
  "black":{"username":"opp","rating":1480,"result":"checkmated","@id":"http://archive.test/player/opp"}},
 {"url":"https://www.chess.com/game/live/2","pgn":"1. d4 d5 *","time_control":"180+2","time_class":"blitz","end_time":1700000500,
  "white":{"username":"opp","rating":1490,"result":"agreed","@id":"http://archive.test/player/opp"},
  "black":{"username":"tobiahsrex","rating":1510,"result":"agreed","@id":"http://archive.test/player/tobiahsrex"}}
]}`

func newTestChessCom(t *testing.T, opts ...Option) *ChessCom {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/player/tobiahsrex/games/archives":
			ctx.SetBodyString(`{"archives":["http://archive.test/player/tobiahsrex/games/2023/11"]}`)
		case "/player/tobiahsrex/games/2023/11":
			ctx.SetBodyString(monthBody)
		case "/player/opp":
			ctx.SetBodyString(`{"username":"opp","avatar":"http://img.test/opp.png"}`)
		case "/player/tobiahsrex":
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	dial := WithDial(func(string) (net.Conn, error) { return ln.Dial() })
	return NewChessCom("http://archive.test/", "TobiahsRex", append([]Option{dial}, opts...)...)
}

func TestChessComListsArchivesAndGames(t *testing.T) {
	c := newTestChessCom(t)
	ctx := context.Background()
	archives, err := c.Archives(ctx)
	if err != nil {
		t.Fatalf("Archives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("archives = %v", archives)
	}
	games, err := c.Games(ctx, archives[0])
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("games = %d", len(games))
	}
	type view struct {
		MyColor, Outcome, TimeControl string
		MyRating                      int
	}
	var got []view
	for _, g := range games {
		got = append(got, view{g.MyColor, g.Outcome, g.TimeControl, g.MyRating})
	}
	want := []view{{"white", "win", "10 min", 1500}, {"black", "draw", "3 min +2", 1510}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summaries (-want +got):\n%s", diff)
	}
	if games[0].EndTime.Unix() != 1700000000 {
		t.Fatalf("end time = %v", games[0].EndTime)
	}
	if games[0].Black.Avatar != "" {
		t.Fatalf("avatars are only resolved with WithProfiles")
	}
}

func TestChessComProfilesSoftFail(t *testing.T) {
	c := newTestChessCom(t, WithProfiles(true))
	games, err := c.Games(context.Background(), "http://archive.test/player/tobiahsrex/games/2023/11")
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	if games[0].Black.Avatar != "http://img.test/opp.png" {
		t.Fatalf("opponent avatar = %q", games[0].Black.Avatar)
	}
	if games[0].White.Avatar != defaultAvatar {
		t.Fatalf("failed profile should fall back to default, got %q", games[0].White.Avatar)
	}
}

func TestChessComMissingArchive(t *testing.T) {
	c := newTestChessCom(t)
	_, err := c.Games(context.Background(), "http://archive.test/player/tobiahsrex/games/1999/01")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestFinishPerspective(t *testing.T) {
	s := Summary{
		White: Player{Username: "a", Rating: 1000, Result: "resigned"},
		Black: Player{Username: "B", Rating: 1100, Result: "win"},
	}
	finish(&s, "b")
	if s.MyColor != "black" || s.Outcome != "win" || s.MyRating != 1100 {
		t.Fatalf("summary = %+v", s)
	}
	finish(&s, "a")
	if s.MyColor != "white" || s.Outcome != "loss" {
		t.Fatalf("summary = %+v", s)
	}
}

func TestFormatTimeControl(t *testing.T) {
	cases := map[string]string{"600": "10 min", "180+2": "3 min +2", "90": "1.5 min", "1/86400": "1/86400", "": ""}
	for in, want := range cases {
		if got := formatTimeControl(in); got != want {
			t.Fatalf("formatTimeControl(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMonthOf(t *testing.T) {
	cases := map[string]string{
		"2023/11": "2023/11",
		"https://api.chess.com/pub/player/x/games/2024/02": "2024/02",
		"2023":    "",
		"foo/bar": "",
	}
	for in, want := range cases {
		if got := monthOf(in); got != want {
			t.Fatalf("monthOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPostgresSource(t *testing.T) {
	dsn := os.Getenv("ARCHIVE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ARCHIVE_TEST_DATABASE_URL not set")
	}
	p, err := NewPostgres(dsn, "tobiahsrex")
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	// temp tables live on one connection
	p.db.SetMaxOpenConns(1)
	ctx := context.Background()
	if _, err := p.db.ExecContext(ctx, `CREATE TEMP TABLE archived_games (
		url TEXT PRIMARY KEY, username TEXT NOT NULL, pgn TEXT NOT NULL,
		white_username TEXT NOT NULL, white_rating INT NOT NULL DEFAULT 0, white_result TEXT NOT NULL DEFAULT '',
		black_username TEXT NOT NULL, black_rating INT NOT NULL DEFAULT 0, black_result TEXT NOT NULL DEFAULT '',
		time_class TEXT NOT NULL DEFAULT '', time_control TEXT NOT NULL DEFAULT '', end_time TIMESTAMPTZ NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := p.db.ExecContext(ctx, `INSERT INTO archived_games VALUES
		('u1','tobiahsrex','1. e4 *','tobiahsrex',1500,'win','opp',1400,'resigned','rapid','600','2023-11-14T22:13:20Z')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	archives, err := p.Archives(ctx)
	if err != nil {
		t.Fatalf("Archives: %v", err)
	}
	if diff := cmp.Diff([]string{"2023/11"}, archives); diff != "" {
		t.Fatalf("archives (-want +got):\n%s", diff)
	}
	games, err := p.Games(ctx, "2023/11")
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	want := []Summary{{
		URL: "u1", PGN: "1. e4 *",
		White:     Player{Username: "tobiahsrex", Rating: 1500, Result: "win", Avatar: defaultAvatar},
		Black:     Player{Username: "opp", Rating: 1400, Result: "resigned", Avatar: defaultAvatar},
		TimeClass: "rapid", TimeControl: "10 min", MyColor: "white", MyRating: 1500, Outcome: "win",
	}}
	if diff := cmp.Diff(want, games, cmpopts.IgnoreFields(Summary{}, "EndTime")); diff != "" {
		t.Fatalf("games (-want +got):\n%s", diff)
	}
}
