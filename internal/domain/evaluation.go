package domain

import "github.com/google/uuid"

// EvalSource records which request produced an evaluation.
type EvalSource string

const (
	EvalBatch  EvalSource = "batch"
	EvalSingle EvalSource = "single"
	EvalInline EvalSource = "inline"
)

// EvaluationRecord is the score of the position after move Ply, from White's side.
type EvaluationRecord struct {
	GameID     uuid.UUID
	Ply        int
	Centipawns int
	Source     EvalSource
}

// PlaybackState is reset to {false, default} whenever a Game is installed.
type PlaybackState struct {
	Playing bool
	Speed   float64
}

const (
	MinSpeedSeconds     = 0.5
	MaxSpeedSeconds     = 10.0
	DefaultSpeedSeconds = 10.0
)

func ValidSpeed(s float64) bool {
	return s >= MinSpeedSeconds && s <= MaxSpeedSeconds
}
