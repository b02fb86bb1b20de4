package textpresenter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chessflix/internal/archive"
	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/evalclient"
	"github.com/park285/chessflix/internal/movelist"
	"github.com/park285/chessflix/internal/msgcat"
	"github.com/park285/chessflix/internal/session"
)

// Renderer is the message catalog as seen by the formatter.
type Renderer interface {
	Render(key string, data any) (string, error)
}

// Formatter renders session snapshots into terminal text.
type Formatter struct {
	cat Renderer
}

func NewFormatter(cat Renderer) *Formatter {
	return &Formatter{cat: cat}
}

// NewDefaultFormatter uses the embedded catalog.
func NewDefaultFormatter() (*Formatter, error) {
	cat, err := msgcat.New("")
	if err != nil {
		return nil, err
	}
	return NewFormatter(cat), nil
}

func (f *Formatter) render(key string, data any) string {
	if f == nil || f.cat == nil {
		return key
	}
	out, err := f.cat.Render(key, data)
	if err != nil {
		return key
	}
	return out
}

// Pawns formats centipawns as signed pawns with two decimals; mate scores print as M.
func Pawns(cp int) string {
	switch {
	case cp >= evalclient.MateScore:
		return "+M"
	case cp <= -evalclient.MateScore:
		return "-M"
	case cp > 0:
		return fmt.Sprintf("+%.2f", float64(cp)/100)
	case cp < 0:
		return fmt.Sprintf("-%.2f", float64(-cp)/100)
	default:
		return "0.00"
	}
}

// Moves renders numbered pairs with the active ply in brackets.
func (f *Formatter) Moves(pairs []movelist.Pair) string {
	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", p.Number, plyText(p.White)))
		if p.Black != nil {
			sb.WriteString(" ")
			sb.WriteString(plyText(*p.Black))
		}
	}
	return sb.String()
}

func plyText(p movelist.Ply) string {
	if p.Active {
		return "[" + p.SAN + "]"
	}
	return p.SAN
}

func (f *Formatter) Help() string { return strings.TrimRight(f.render("help", nil), "\n") }

// Status is the full view of the current game.
func (f *Formatter) Status(snap session.Snapshot) string {
	if !snap.HasGame {
		return f.render("error.no_game", nil)
	}
	var sb strings.Builder
	if !snap.Headers.IsZero() {
		sb.WriteString(f.render("status.header", map[string]any{
			"White":  playerText(snap.Headers.White),
			"Black":  playerText(snap.Headers.Black),
			"Event":  snap.Headers.Event,
			"Result": snap.Headers.Result,
		}))
		sb.WriteString("\n")
	}
	sb.WriteString(f.render("status.position", map[string]any{"Index": snap.Index, "Length": snap.Length, "FEN": snap.FEN}))
	sb.WriteString("\n")
	if snap.LastMove != nil {
		sb.WriteString(f.render("status.last_move", map[string]any{"SAN": snap.LastMove.SAN}))
		sb.WriteString("\n")
	}
	if moves := f.Moves(snap.Pairs); moves != "" {
		sb.WriteString(moves)
		sb.WriteString("\n")
	}
	sb.WriteString(f.evalLine(snap))
	sb.WriteString("\n")
	sb.WriteString(f.render("status.playback", map[string]any{"Playing": snap.Playback.Playing, "Speed": snap.Playback.Speed}))
	sb.WriteString("\n")
	sb.WriteString(f.render("status.analysis", map[string]any{
		"Depth":    snap.Analysis.Depth,
		"Count":    snap.Analysis.PreviewCount,
		"Fetching": snap.Analysis.Fetching,
	}))
	if len(snap.Previews) > 0 {
		sb.WriteString("\n")
		sb.WriteString(f.Previews(snap))
	}
	return sb.String()
}

func (f *Formatter) evalLine(snap session.Snapshot) string {
	switch {
	case snap.Eval != nil:
		return f.render("status.eval", map[string]any{
			"Display": Pawns(snap.Eval.Centipawns),
			"Exact":   snap.Eval.Ply == snap.Index-1,
			"Ply":     snap.Eval.Ply + 1,
		})
	case snap.EvalPending:
		return f.render("status.eval_pending", nil)
	default:
		return f.render("status.eval_none", nil)
	}
}

func playerText(p domain.Player) string {
	name := p.Name
	if name == "" {
		name = "?"
	}
	if p.Rating > 0 {
		return fmt.Sprintf("%s (%d)", name, p.Rating)
	}
	return name
}

func (f *Formatter) Previews(snap session.Snapshot) string {
	if len(snap.Previews) == 0 {
		return f.render("preview.empty", nil)
	}
	lines := make([]string, 0, len(snap.Previews))
	for _, p := range snap.Previews {
		eval := "n/a"
		if p.Eval != nil {
			eval = Pawns(p.Eval.Centipawns)
		}
		lines = append(lines, f.render("preview.line", map[string]any{
			"Slot":    p.Slot,
			"Eval":    eval,
			"Line":    f.Moves(movelist.Project(p.Game.Moves, p.Index)),
			"Index":   p.Index,
			"Length":  p.Game.Len(),
			"Playing": p.Playback.Playing,
		}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Archives(list []string) string {
	if len(list) == 0 {
		return f.render("archive.empty", nil)
	}
	lines := make([]string, 0, len(list))
	for i, a := range list {
		lines = append(lines, f.render("archive.month", map[string]any{"Index": i, "Name": archiveName(a)}))
	}
	return strings.Join(lines, "\n")
}

// archiveName shortens a monthly archive URL to YYYY/MM.
func archiveName(a string) string {
	parts := strings.Split(strings.TrimRight(a, "/"), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return a
}

func (f *Formatter) Games(list []archive.Summary) string {
	if len(list) == 0 {
		return f.render("error.not_found", nil)
	}
	lines := make([]string, 0, len(list))
	for i, g := range list {
		lines = append(lines, f.render("archive.game", map[string]any{
			"Index":       i,
			"White":       g.White.Username,
			"WhiteRating": g.White.Rating,
			"Black":       g.Black.Username,
			"BlackRating": g.Black.Rating,
			"TimeControl": g.TimeControl,
			"Outcome":     g.Outcome,
		}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Loaded(game *domain.Game) string {
	return f.render("info.loaded", map[string]any{"Length": game.Len()})
}

func (f *Formatter) Branched(snap session.Snapshot) string {
	return f.render("info.branched", map[string]any{"Length": snap.Length, "Index": snap.Index})
}

func (f *Formatter) Bye() string { return f.render("info.bye", nil) }

func (f *Formatter) UnknownCommand(cmd string) string {
	return f.render("error.unknown_command", map[string]any{"Command": cmd})
}

func (f *Formatter) InvalidArgs(cmd string) string {
	return f.render("error.invalid_args", map[string]any{"Command": cmd})
}

func (f *Formatter) NoArchive() string { return f.render("error.no_archive", nil) }

// Error maps an operation error to a user-facing line.
func (f *Formatter) Error(err error, snap session.Snapshot) string {
	var ime *domain.IllegalMoveError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ime):
		applied := strings.Join(ime.Applied, " ")
		if applied == "" {
			applied = "-"
		}
		return f.render("error.illegal_move", map[string]any{"Input": ime.Input, "Index": ime.Index, "Applied": applied})
	case errors.Is(err, domain.ErrParse):
		return f.render("error.parse", nil)
	case errors.Is(err, domain.ErrOutOfRange):
		return f.render("error.out_of_range", map[string]any{"Length": snap.Length})
	case errors.Is(err, domain.ErrNoGame), errors.Is(err, domain.ErrInvalidState):
		return f.render("error.no_game", nil)
	case errors.Is(err, domain.ErrInvalidSpeed):
		return f.render("error.invalid_speed", nil)
	case errors.Is(err, domain.ErrResetFailed):
		return f.render("error.reset_failed", nil)
	case errors.Is(err, archive.ErrNotFound):
		return f.render("error.not_found", nil)
	default:
		return f.render("error.generic", map[string]any{"Err": err.Error()})
	}
}
