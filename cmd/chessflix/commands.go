package main

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/adapter/textpresenter"
	"github.com/park285/chessflix/internal/archive"
	"github.com/park285/chessflix/internal/rules"
	"github.com/park285/chessflix/internal/session"
)

// app dispatches one command line at a time. It is driven from a single goroutine.
type app struct {
	sess      *session.Session
	archive   archive.Source
	formatter *textpresenter.Formatter
	presenter *textpresenter.Presenter
	logger    *zap.Logger

	pgn      []string
	reading  bool
	archives []string
	games    []archive.Summary
}

// handle runs one input line and reports whether the loop should stop.
func (a *app) handle(ctx context.Context, line string) bool {
	if a.reading {
		if strings.TrimSpace(line) == "" {
			a.reading = false
			text := strings.Join(a.pgn, "\n")
			a.pgn = nil
			a.submit(ctx, text)
			return false
		}
		a.pgn = append(a.pgn, line)
		return false
	}

	raw := strings.TrimSpace(line)
	if raw == "" {
		return false
	}
	parts := strings.Fields(raw)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		a.say(a.formatter.Help())
	case "quit", "exit":
		a.say(a.formatter.Bye())
		return true
	case "load":
		a.load(ctx, strings.TrimSpace(strings.TrimPrefix(raw, parts[0])))
	case "next", "n":
		a.status(a.sess.Next())
	case "prev", "p":
		a.status(a.sess.Prev())
	case "reset", "rewind":
		a.status(a.sess.Rewind())
	case "seek":
		n, ok := intArg(args, 0)
		if !ok {
			a.say(a.formatter.InvalidArgs(cmd))
			return false
		}
		a.status(a.sess.Seek(n))
	case "play":
		a.status(a.sess.Play())
	case "pause":
		a.status(a.sess.Pause())
	case "toggle":
		_, err := a.sess.Toggle()
		a.status(err)
	case "speed":
		s, ok := floatArg(args, 0)
		if !ok {
			a.say(a.formatter.InvalidArgs(cmd))
			return false
		}
		a.status(a.sess.SetSpeed(s))
	case "branch":
		if _, err := a.sess.Branch(args); err != nil {
			a.fail(err)
			return false
		}
		a.say(a.formatter.Branched(a.sess.Snapshot()))
		a.status(nil)
	case "depth":
		d, ok := intArg(args, 0)
		if !ok {
			a.say(a.formatter.InvalidArgs(cmd))
			return false
		}
		a.status(a.sess.SetDepth(d))
	case "previews":
		if len(args) > 0 {
			n, ok := intArg(args, 0)
			if !ok {
				a.say(a.formatter.InvalidArgs(cmd))
				return false
			}
			if err := a.sess.SetPreviewCount(n); err != nil {
				a.fail(err)
				return false
			}
		}
		if _, err := a.sess.FetchPreviews(ctx); err != nil {
			a.fail(err)
			return false
		}
		a.say(a.formatter.Previews(a.sess.Snapshot()))
	case "preview":
		a.preview(args)
	case "archives":
		a.listArchives(ctx)
	case "games":
		a.listGames(ctx, args)
	case "import":
		a.importGame(ctx, args)
	case "show", "status":
		a.status(nil)
	default:
		a.say(a.formatter.UnknownCommand(cmd))
	}
	return false
}

// load submits a FEN directly; anything else starts a PGN that ends at a blank line.
func (a *app) load(ctx context.Context, rest string) {
	if rest != "" && rules.ValidateFEN(rest) {
		a.submit(ctx, rest)
		return
	}
	a.reading = true
	a.pgn = nil
	if rest != "" {
		a.pgn = append(a.pgn, rest)
	}
}

func (a *app) submit(ctx context.Context, text string) {
	game, err := a.sess.Submit(ctx, text)
	if err != nil {
		a.fail(err)
		return
	}
	a.say(a.formatter.Loaded(game))
	a.status(nil)
}

func (a *app) preview(args []string) {
	slot, ok := intArg(args, 0)
	if !ok || len(args) < 2 {
		a.say(a.formatter.InvalidArgs("preview"))
		return
	}
	var err error
	switch strings.ToLower(args[1]) {
	case "next":
		err = a.sess.PreviewNext(slot)
	case "prev":
		err = a.sess.PreviewPrev(slot)
	case "play":
		err = a.sess.PreviewPlay(slot)
	case "pause":
		err = a.sess.PreviewPause(slot)
	case "toggle":
		err = a.sess.PreviewToggle(slot)
	case "speed":
		s, ok := floatArg(args, 2)
		if !ok {
			a.say(a.formatter.InvalidArgs("preview speed"))
			return
		}
		err = a.sess.PreviewSpeed(slot, s)
	case "select":
		i, ok := intArg(args, 2)
		if !ok {
			a.say(a.formatter.InvalidArgs("preview select"))
			return
		}
		err = a.sess.PreviewSelect(slot, i)
	case "set":
		if err := a.sess.PreviewSetPosition(slot); err != nil {
			a.fail(err)
			return
		}
		a.say(a.formatter.Branched(a.sess.Snapshot()))
		a.status(nil)
		return
	default:
		a.say(a.formatter.InvalidArgs("preview"))
		return
	}
	if err != nil {
		a.fail(err)
		return
	}
	a.say(a.formatter.Previews(a.sess.Snapshot()))
}

func (a *app) listArchives(ctx context.Context) {
	if a.archive == nil {
		a.say(a.formatter.NoArchive())
		return
	}
	list, err := a.archive.Archives(ctx)
	if err != nil {
		a.fail(err)
		return
	}
	a.archives = list
	a.say(a.formatter.Archives(list))
}

func (a *app) listGames(ctx context.Context, args []string) {
	if a.archive == nil {
		a.say(a.formatter.NoArchive())
		return
	}
	i, ok := intArg(args, 0)
	if !ok || i < 0 || i >= len(a.archives) {
		a.say(a.formatter.InvalidArgs("games"))
		return
	}
	games, err := a.archive.Games(ctx, a.archives[i])
	if err != nil {
		a.fail(err)
		return
	}
	a.games = games
	a.say(a.formatter.Games(games))
}

func (a *app) importGame(ctx context.Context, args []string) {
	i, ok := intArg(args, 0)
	if !ok || i < 0 || i >= len(a.games) {
		a.say(a.formatter.InvalidArgs("import"))
		return
	}
	a.logger.Info("archive_import", zap.String("url", a.games[i].URL))
	a.submit(ctx, a.games[i].PGN)
}

// status prints err, or the current view when err is nil.
func (a *app) status(err error) {
	if err != nil {
		a.fail(err)
		return
	}
	a.say(a.formatter.Status(a.sess.Snapshot()))
}

func (a *app) fail(err error) {
	a.logger.Debug("command_failed", zap.Error(err))
	a.say(a.formatter.Error(err, a.sess.Snapshot()))
}

func (a *app) say(msg string) {
	if err := a.presenter.Show(msg); err != nil {
		a.logger.Warn("output_failed", zap.Error(err))
	}
}

func intArg(args []string, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	n, err := strconv.Atoi(args[i])
	return n, err == nil
}

func floatArg(args []string, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	f, err := strconv.ParseFloat(args[i], 64)
	return f, err == nil
}
