package vcd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const keywordEnd = "$end"

// Parser reads a VCD stream. ReadHeader must be called once, after which Next
// yields the value change commands in input order. The command sequence can
// only be restarted by constructing a new Parser over the start of the input.
type Parser struct {
	tok    *tokenizer
	header *Header

	lastTime uint64
	seenTime bool
}

func NewParser(r io.Reader) *Parser {
	return &Parser{tok: newTokenizer(r)}
}

// Header returns the header read by ReadHeader, or nil if it has not been read.
func (p *Parser) Header() *Header {
	return p.header
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.tok.line, Msg: fmt.Sprintf(format, args...)}
}

// readUntilEnd collects the tokens up to the closing $end of a keyword block.
func (p *Parser) readUntilEnd(keyword string) ([]string, error) {
	var toks []string
	for {
		tok, err := p.tok.next()
		if err == io.EOF {
			return nil, p.errorf("%s block is not terminated by %s", keyword, keywordEnd)
		}
		if err != nil {
			return nil, err
		}
		if tok == keywordEnd {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

// ReadHeader consumes the declarations up to and including $enddefinitions.
func (p *Parser) ReadHeader() (*Header, error) {
	if p.header != nil {
		return nil, ErrHeaderRead
	}

	h := &Header{codes: map[string]SignalID{}}
	var stack []*Scope

	for {
		tok, err := p.tok.next()
		if err == io.EOF {
			return nil, p.errorf("input ended before $enddefinitions")
		}
		if err != nil {
			return nil, err
		}

		switch tok {
		case "$date", "$version", "$timescale", "$comment":
			toks, err := p.readUntilEnd(tok)
			if err != nil {
				return nil, err
			}
			text := strings.Join(toks, " ")
			switch tok {
			case "$date":
				h.Date = text
			case "$version":
				h.Version = text
			case "$timescale":
				h.Timescale = text
			default:
				h.Comments = append(h.Comments, text)
			}

		case "$scope":
			toks, err := p.readUntilEnd(tok)
			if err != nil {
				return nil, err
			}
			s := &Scope{Kind: "module"}
			switch len(toks) {
			case 1:
				s.Name = toks[0]
			case 2:
				s.Kind, s.Name = toks[0], toks[1]
			default:
				return nil, p.errorf("$scope expects a kind and a name, got %d tokens", len(toks))
			}
			if len(stack) == 0 {
				h.Scopes = append(h.Scopes, s)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, s)
			}
			stack = append(stack, s)

		case "$upscope":
			if _, err := p.readUntilEnd(tok); err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				return nil, p.errorf("$upscope without a matching $scope")
			}
			stack = stack[:len(stack)-1]

		case "$var":
			toks, err := p.readUntilEnd(tok)
			if err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				return nil, p.errorf("$var declared outside of any $scope")
			}
			v, err := p.declare(h, toks)
			if err != nil {
				return nil, err
			}
			s := stack[len(stack)-1]
			s.Vars = append(s.Vars, v)

		case "$enddefinitions":
			if _, err := p.readUntilEnd(tok); err != nil {
				return nil, err
			}
			if len(stack) != 0 {
				return nil, p.errorf("%d $scope blocks are not closed by $upscope", len(stack))
			}
			p.header = h
			return h, nil

		default:
			if !strings.HasPrefix(tok, "$") {
				return nil, p.errorf("unexpected token %q in header", tok)
			}
			// Vendor extensions such as $attrbegin carry nothing we use.
			if _, err := p.readUntilEnd(tok); err != nil {
				return nil, err
			}
		}
	}
}

func (p *Parser) declare(h *Header, toks []string) (Var, error) {
	if len(toks) < 4 || len(toks) > 5 {
		return Var{}, p.errorf("$var expects type, size, code and reference, got %d tokens", len(toks))
	}
	size, err := strconv.Atoi(toks[1])
	if err != nil || size <= 0 {
		return Var{}, p.errorf("$var %s has an invalid size %q", toks[3], toks[1])
	}
	v := Var{
		Type:      toks[0],
		Size:      size,
		Code:      toks[2],
		Reference: toks[3],
	}
	if len(toks) == 5 {
		v.Range = toks[4]
	}
	if v.IsReal() {
		// reals are carried as their IEEE-754 bit pattern whatever size the
		// writer declared.
		v.Size = 64
	}

	id, ok := h.codes[v.Code]
	if ok {
		if h.widths[id] != v.Size {
			return Var{}, p.errorf(
				"identifier %q redeclared with size %d, previously %d", v.Code, v.Size, h.widths[id])
		}
	} else {
		id = SignalID(len(h.widths))
		h.codes[v.Code] = id
		h.widths = append(h.widths, v.Size)
	}
	v.ID = id
	return v, nil
}

// Next returns the next command. io.EOF is returned at the clean end of the
// stream.
func (p *Parser) Next() (Command, error) {
	if p.header == nil {
		return nil, ErrHeaderNotRead
	}
	for {
		tok, err := p.tok.next()
		if err != nil {
			return nil, err
		}

		switch c := tok[0]; c {
		case '#':
			t, err := strconv.ParseUint(tok[1:], 10, 64)
			if err != nil {
				return nil, p.errorf("invalid timestamp %q", tok)
			}
			if p.seenTime && t < p.lastTime {
				return nil, p.errorf("timestamp %d is earlier than %d", t, p.lastTime)
			}
			p.lastTime, p.seenTime = t, true
			return Timestamp{Time: t}, nil

		case '0', '1', 'x', 'X', 'z', 'Z':
			id, err := p.lookup(tok[1:])
			if err != nil {
				return nil, err
			}
			bit := lowerBit(c)
			if w := p.header.widths[id]; w > 1 {
				return ChangeVector{ID: id, Bits: extendBits(string(bit), w)}, nil
			}
			return ChangeScalar{ID: id, Bit: bit}, nil

		case 'b', 'B':
			id, err := p.nextCode(tok)
			if err != nil {
				return nil, err
			}
			bits, err := p.normalizeBits(tok[1:], p.header.widths[id])
			if err != nil {
				return nil, err
			}
			return ChangeVector{ID: id, Bits: bits}, nil

		case 'r', 'R':
			id, err := p.nextCode(tok)
			if err != nil {
				return nil, err
			}
			f, err := strconv.ParseFloat(tok[1:], 64)
			if err != nil {
				return nil, p.errorf("invalid real value %q", tok)
			}
			return ChangeReal{ID: id, Value: f}, nil

		case 's', 'S':
			id, err := p.nextCode(tok)
			if err != nil {
				return nil, err
			}
			return ChangeString{ID: id, Value: tok[1:]}, nil

		case '$':
			switch tok {
			case "$dumpvars", "$dumpall", "$dumpon", "$dumpoff", keywordEnd:
				continue
			case "$comment":
				if _, err := p.readUntilEnd(tok); err != nil {
					return nil, err
				}
				continue
			}
			return nil, &UnsupportedCommandError{Line: p.tok.line, Command: tok}

		default:
			return nil, p.errorf("unexpected token %q", tok)
		}
	}
}

// nextCode reads the identifier code that follows a vector, real or string
// value token.
func (p *Parser) nextCode(valueTok string) (SignalID, error) {
	code, err := p.tok.next()
	if errors.Is(err, io.EOF) {
		return 0, p.errorf("input ended after value %q, expected an identifier code", valueTok)
	}
	if err != nil {
		return 0, err
	}
	return p.lookup(code)
}

func (p *Parser) lookup(code string) (SignalID, error) {
	if code == "" {
		return 0, p.errorf("value change without an identifier code")
	}
	id, ok := p.header.codes[code]
	if !ok {
		return 0, p.errorf("value change for undeclared identifier %q", code)
	}
	return id, nil
}

func lowerBit(c byte) byte {
	switch c {
	case 'X':
		return 'x'
	case 'Z':
		return 'z'
	}
	return c
}

func (p *Parser) normalizeBits(bits string, width int) (string, error) {
	if bits == "" {
		return "", p.errorf("empty vector value")
	}
	b := []byte(bits)
	for i, c := range b {
		switch c {
		case '0', '1', 'x', 'z':
		case 'X', 'Z':
			b[i] = lowerBit(c)
		default:
			return "", p.errorf("invalid bit %q in vector value %q", c, bits)
		}
	}
	if len(b) > width {
		// keep the least significant bits
		return string(b[len(b)-width:]), nil
	}
	return extendBits(string(b), width), nil
}

// extendBits left extends a most significant bit first value to width. A
// leading 0 or 1 extends with 0, a leading x or z extends with itself.
func extendBits(bits string, width int) string {
	if len(bits) >= width {
		return bits
	}
	fill := byte('0')
	if bits[0] == 'x' || bits[0] == 'z' {
		fill = bits[0]
	}
	return strings.Repeat(string(fill), width-len(bits)) + bits
}
