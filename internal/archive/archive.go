// Package archive lists a player's past games for import. Sources are read-only.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("archive not found")

// Source is a read-only provider of monthly game archives.
type Source interface {
	Archives(ctx context.Context) ([]string, error)
	Games(ctx context.Context, archive string) ([]Summary, error)
}

type Player struct {
	Username string
	Rating   int
	Result   string
	Avatar   string
}

// Summary is one archived game from the configured user's point of view.
type Summary struct {
	URL         string
	PGN         string
	White       Player
	Black       Player
	TimeClass   string
	TimeControl string
	EndTime     time.Time
	MyColor     string
	MyRating    int
	Outcome     string // win, loss or draw
}

// drawResults are chess.com result codes that end the game without a winner.
var drawResults = map[string]bool{
	"agreed":             true,
	"repetition":         true,
	"stalemate":          true,
	"insufficient":       true,
	"50move":             true,
	"timevsinsufficient": true,
	"draw":               true,
}

// finish fills the perspective fields relative to user.
func finish(s *Summary, user string) {
	isWhite := strings.EqualFold(s.White.Username, user)
	me, opp := s.Black, s.White
	s.MyColor = "black"
	if isWhite {
		me, opp = s.White, s.Black
		s.MyColor = "white"
	}
	s.MyRating = me.Rating
	switch {
	case me.Result == "win":
		s.Outcome = "win"
	case drawResults[me.Result] || drawResults[opp.Result]:
		s.Outcome = "draw"
	default:
		s.Outcome = "loss"
	}
}

// formatTimeControl turns "600" or "180+2" into "10 min" / "3 min +2".
func formatTimeControl(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	base, inc, hasInc := strings.Cut(raw, "+")
	if strings.Contains(base, "/") {
		return raw
	}
	var secs int
	if _, err := fmt.Sscanf(base, "%d", &secs); err != nil {
		return raw
	}
	out := formatMinutes(secs)
	if hasInc && inc != "" && inc != "0" {
		out += " +" + inc
	}
	return out
}

func formatMinutes(secs int) string {
	if secs%60 == 0 {
		return fmt.Sprintf("%d min", secs/60)
	}
	return fmt.Sprintf("%.1f min", float64(secs)/60)
}
