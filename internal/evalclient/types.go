package evalclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MateScore stands in for a forced mate reported as "M3" / "#-2".
const MateScore = 10000

type PositionRequest struct {
	FEN string `json:"fen"`
}

type PositionResponse struct {
	Evaluation Centipawns `json:"evaluation"`
	Error      string     `json:"error,omitempty"`
}

type GameRequest struct {
	FEN   string   `json:"fen"`
	Moves []string `json:"moves"`
}

type GameResponse struct {
	Evaluations []Centipawns `json:"evaluations"`
	Error       string       `json:"error,omitempty"`
}

type PreviewRequest struct {
	FEN          string `json:"fen"`
	PreviewCount int    `json:"previewCount"`
	Depth        int    `json:"depth"`
}

// Preview is one engine continuation from the requested position.
type Preview struct {
	StartingPosition string       `json:"startingPosition"`
	Moves            []string     `json:"moves"`
	Evaluations      []Centipawns `json:"evaluations"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// Centipawns accepts numbers, numeric strings and mate notation.
type Centipawns int

func (c *Centipawns) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := parseScore(s)
		if err != nil {
			return err
		}
		*c = Centipawns(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	*c = Centipawns(math.Round(f))
	return nil
}

func parseScore(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if s[0] == 'M' || s[0] == '#' {
		n, err := strconv.Atoi(strings.TrimLeft(s[1:], "+"))
		if err != nil {
			return 0, fmt.Errorf("evaluation: bad mate score %q", s)
		}
		if n < 0 {
			return -MateScore, nil
		}
		return MateScore, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("evaluation: bad score %q", s)
	}
	return int(math.Round(f)), nil
}

func ints(cs []Centipawns) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = int(c)
	}
	return out
}

// Scores converts the preview evaluations to plain centipawns.
func (p Preview) Scores() []int { return ints(p.Evaluations) }
