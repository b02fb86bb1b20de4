package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse        = errors.New("malformed FEN or PGN")
	ErrIllegalMove  = errors.New("illegal move")
	ErrOutOfRange   = errors.New("cursor index out of range")
	ErrInvalidState = errors.New("cursor has no game")
	ErrNoGame       = errors.New("no game loaded")
	ErrInvalidSpeed = errors.New("autoplay speed out of range")
	ErrResetFailed  = errors.New("evaluation backend reset failed")
	ErrInvalidArgs  = errors.New("invalid arguments")
)

// ParseError keeps the reason the rules engine gave for rejecting a submission.
type ParseError struct {
	Kind SourceKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: %s", e.Kind, ErrParse)
	}
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// IllegalMoveError reports the first rejected input of a move list.
// Applied holds the SAN of every move accepted before it.
type IllegalMoveError struct {
	Input   string
	Index   int
	Applied []string
	Err     error
}

func (e *IllegalMoveError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("illegal move %q at #%d", e.Input, e.Index+1))
	if len(e.Applied) > 0 {
		sb.WriteString(" after ")
		sb.WriteString(strings.Join(e.Applied, " "))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *IllegalMoveError) Unwrap() error { return ErrIllegalMove }
