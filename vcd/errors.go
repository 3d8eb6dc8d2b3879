package vcd

import (
	"errors"
	"fmt"
)

var (
	ErrParse              = errors.New("vcd: malformed input")
	ErrUnsupportedCommand = errors.New("vcd: unsupported command")
	ErrHeaderNotRead      = errors.New("vcd: the header must be read before any commands")
	ErrHeaderRead         = errors.New("vcd: the header has already been read")
)

// ParseError reports malformed or truncated input. It is fatal to ingestion.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcd: line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// UnsupportedCommandError reports a simulation keyword after the header that
// the parser does not know how to interpret.
type UnsupportedCommandError struct {
	Line    int
	Command string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("vcd: line %d: unsupported command %q", e.Line, e.Command)
}

func (e *UnsupportedCommandError) Unwrap() error { return ErrUnsupportedCommand }
