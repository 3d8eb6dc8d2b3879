package wavetesting

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
)

// SignalDef declares one generated signal. Scope is a dotted module path.
type SignalDef struct {
	Scope string
	Name  string
	Width int
}

func (s SignalDef) Path() string { return s.Scope + "." + s.Name }

// TraceConfig drives GenerateTrace. We seed the RNG from Seed, it is normal
// to fix it so the generated trace is the same from run to run.
type TraceConfig struct {
	Seed    int64
	Signals []SignalDef
	// Steps is the number of timestamps after the initial dump at time 0.
	Steps int
	// MaxStep bounds the gap between timestamps, it defaults to 10.
	MaxStep uint64
	// FourState allows x and z bits in generated values.
	FourState bool
}

// ExpectedChange is a change as the trace states it, most significant bit
// first.
type ExpectedChange struct {
	Time uint64
	Bits string
}

// GeneratedTrace is a VCD document and the changes of every signal in it,
// keyed by the signal path.
type GeneratedTrace struct {
	VCD      []byte
	Changes  map[string][]ExpectedChange
	LastTime uint64
}

type scopeNode struct {
	name     string
	signals  []int
	children []*scopeNode
}

func (n *scopeNode) child(name string) *scopeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &scopeNode{name: name}
	n.children = append(n.children, c)
	return c
}

// IDCode returns the VCD identifier code of the i'th signal.
func IDCode(i int) string {
	const first, span = '!', '~' - '!' + 1
	var b []byte
	for {
		b = append(b, byte(first+i%span))
		i /= span
		if i == 0 {
			return string(b)
		}
		i--
	}
}

func randomBits(r *rand.Rand, width int, fourState bool) string {
	alphabet := "01"
	if fourState {
		// weighted toward known values
		alphabet = "0101010101xz"
	}
	b := make([]byte, width)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

func writeValue(buf *bytes.Buffer, s SignalDef, code, bits string) {
	if s.Width == 1 {
		fmt.Fprintf(buf, "%s%s\n", bits, code)
		return
	}
	fmt.Fprintf(buf, "b%s %s\n", bits, code)
}

// GenerateTrace produces a deterministic trace. Every signal has a value at
// time 0 and each later timestamp changes a random non empty subset of them.
func GenerateTrace(cfg TraceConfig) GeneratedTrace {
	r := rand.New(rand.NewSource(cfg.Seed))
	maxStep := cfg.MaxStep
	if maxStep == 0 {
		maxStep = 10
	}

	root := &scopeNode{}
	for i, s := range cfg.Signals {
		n := root
		for _, seg := range strings.Split(s.Scope, ".") {
			n = n.child(seg)
		}
		n.signals = append(n.signals, i)
	}

	var buf bytes.Buffer
	buf.WriteString("$date generated $end\n$version wavetesting $end\n$timescale 1ns $end\n")
	var declare func(n *scopeNode)
	declare = func(n *scopeNode) {
		fmt.Fprintf(&buf, "$scope module %s $end\n", n.name)
		for _, i := range n.signals {
			s := cfg.Signals[i]
			fmt.Fprintf(&buf, "$var wire %d %s %s $end\n", s.Width, IDCode(i), s.Name)
		}
		for _, c := range n.children {
			declare(c)
		}
		buf.WriteString("$upscope $end\n")
	}
	for _, c := range root.children {
		declare(c)
	}
	buf.WriteString("$enddefinitions $end\n")

	g := GeneratedTrace{Changes: map[string][]ExpectedChange{}}
	emit := func(t uint64, i int) {
		s := cfg.Signals[i]
		bits := randomBits(r, s.Width, cfg.FourState)
		writeValue(&buf, s, IDCode(i), bits)
		g.Changes[s.Path()] = append(g.Changes[s.Path()], ExpectedChange{Time: t, Bits: bits})
	}

	buf.WriteString("#0\n$dumpvars\n")
	for i := range cfg.Signals {
		emit(0, i)
	}
	buf.WriteString("$end\n")

	t := uint64(0)
	for step := 0; step < cfg.Steps; step++ {
		t += 1 + uint64(r.Int63n(int64(maxStep)))
		fmt.Fprintf(&buf, "#%d\n", t)
		changed := r.Perm(len(cfg.Signals))[:1+r.Intn(len(cfg.Signals))]
		// ascending so a signal's expected changes stay in time order
		for i := range cfg.Signals {
			for _, c := range changed {
				if c == i {
					emit(t, i)
					break
				}
			}
		}
	}
	g.LastTime = t
	g.VCD = buf.Bytes()
	return g
}
