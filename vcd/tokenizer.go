package vcd

import (
	"bufio"
	"io"
)

const readBufferSize = 64 * 1024

// tokenizer splits the input on white space. VCD is entirely white space
// delimited, the only structure is the $keyword ... $end bracketing which the
// parser deals with.
type tokenizer struct {
	r    *bufio.Reader
	line int
	buf  []byte
}

func newTokenizer(r io.Reader) *tokenizer {
	return &tokenizer{r: bufio.NewReaderSize(r, readBufferSize), line: 1}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// next returns the next token. io.EOF is returned only when no further token
// exists.
func (t *tokenizer) next() (string, error) {
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			t.line++
			continue
		}
		if isSpace(b) {
			continue
		}
		t.buf = append(t.buf[:0], b)
		break
	}
	for {
		b, err := t.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if isSpace(b) {
			if b == '\n' {
				t.line++
			}
			break
		}
		t.buf = append(t.buf, b)
	}
	return string(t.buf), nil
}
