package vcd

// Var is a single $var declaration.
type Var struct {
	Type      string
	Size      int
	Code      string
	ID        SignalID
	Reference string
	// Range is the optional bit range token that follows the reference, for
	// example "[7:0]". It is empty when the declaration has none.
	Range string
}

// IsReal reports whether the variable carries real (floating point) values.
func (v Var) IsReal() bool {
	return v.Type == "real" || v.Type == "realtime"
}

// Scope is one $scope block together with the declarations nested in it.
type Scope struct {
	Kind     string
	Name     string
	Vars     []Var
	Children []*Scope
}

// Header is everything that precedes $enddefinitions.
type Header struct {
	Date      string
	Version   string
	Timescale string
	Comments  []string

	// Scopes holds the top level scopes in declaration order.
	Scopes []*Scope

	// widths is indexed by SignalID
	widths []int
	codes  map[string]SignalID
}

// SignalCount returns the number of distinct signal ids declared.
func (h *Header) SignalCount() int {
	return len(h.widths)
}

// Width returns the declared bit width of the signal, or 0 if the id is not
// declared.
func (h *Header) Width(id SignalID) int {
	if int(id) >= len(h.widths) {
		return 0
	}
	return h.widths[id]
}

// Lookup returns the signal id for a VCD identifier code.
func (h *Header) Lookup(code string) (SignalID, bool) {
	id, ok := h.codes[code]
	return id, ok
}
