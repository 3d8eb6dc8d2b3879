package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/forestrie/go-wavestore/vcd"
)

// PathSeparator joins module and signal names in a path.
const PathSeparator = "."

// NoModule marks the absent parent of a root module and an unset current
// module.
const NoModule = -1

// SignalItem identifies one declared signal. Aliased declarations share an
// ID but carry their own Name. Range is the declared bit range, such as
// "[3:0]", or empty.
type SignalItem struct {
	Name  string       `cbor:"1,keyasint"`
	ID    vcd.SignalID `cbor:"2,keyasint"`
	Width int          `cbor:"3,keyasint"`
	Range string       `cbor:"4,keyasint,omitempty"`
}

// ModuleItem is one scope in the arena. Parent and Children are indices into
// Index.Modules.
type ModuleItem struct {
	Name     string       `cbor:"1,keyasint"`
	Parent   int          `cbor:"2,keyasint"`
	Children []int        `cbor:"3,keyasint"`
	Signals  []SignalItem `cbor:"4,keyasint"`
}

// Index is the module and signal namespace of a trace. The arena is read only
// once built, only the current module used for relative paths changes.
type Index struct {
	Modules []ModuleItem `cbor:"1,keyasint"`
	Roots   []int        `cbor:"2,keyasint"`

	current int
	// byID holds the arena position of the first declaration of each id
	byID map[vcd.SignalID]signalRef
}

type signalRef struct {
	module int
	signal int
}

// Build creates the index by a pre-order walk of the header scopes. The
// current module starts at the first root, if any.
func Build(h *vcd.Header) *Index {
	idx := &Index{current: NoModule}
	for _, s := range h.Scopes {
		idx.Roots = append(idx.Roots, idx.add(s, NoModule, h))
	}
	if len(idx.Roots) > 0 {
		idx.current = idx.Roots[0]
	}
	idx.reindex()
	return idx
}

func (idx *Index) add(s *vcd.Scope, parent int, h *vcd.Header) int {
	i := len(idx.Modules)
	m := ModuleItem{Name: s.Name, Parent: parent}
	for _, v := range s.Vars {
		m.Signals = append(m.Signals, SignalItem{Name: v.Reference, ID: v.ID, Width: h.Width(v.ID), Range: v.Range})
	}
	idx.Modules = append(idx.Modules, m)
	for _, c := range s.Children {
		child := idx.add(c, i, h)
		idx.Modules[i].Children = append(idx.Modules[i].Children, child)
	}
	return i
}

func (idx *Index) reindex() {
	idx.byID = map[vcd.SignalID]signalRef{}
	for mi, m := range idx.Modules {
		for si, s := range m.Signals {
			if _, ok := idx.byID[s.ID]; !ok {
				idx.byID[s.ID] = signalRef{module: mi, signal: si}
			}
		}
	}
}

func (idx *Index) child(parent int, name string) (int, bool) {
	var candidates []int
	if parent == NoModule {
		candidates = idx.Roots
	} else {
		candidates = idx.Modules[parent].Children
	}
	for _, c := range candidates {
		if idx.Modules[c].Name == name {
			return c, true
		}
	}
	return NoModule, false
}

// walk resolves segments to a module. Absolute when the first segment names a
// root, relative to the current module otherwise.
func (idx *Index) walk(path string, segments []string) (int, error) {
	m, ok := idx.child(NoModule, segments[0])
	if ok {
		segments = segments[1:]
	} else {
		if idx.current == NoModule {
			return NoModule, fmt.Errorf("%w: %w: %s", ErrPathNotFound, ErrNoCurrent, path)
		}
		m = idx.current
	}
	for _, seg := range segments {
		m, ok = idx.child(m, seg)
		if !ok {
			return NoModule, fmt.Errorf("%w: %s (no module %q)", ErrPathNotFound, path, seg)
		}
	}
	return m, nil
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, PathSeparator), PathSeparator)
}

// Resolve maps a dotted path to the signal it names. The last segment is the
// signal, matched by its name alone or by its name followed by its declared
// bit range. Every failure matches ErrPathNotFound.
func (idx *Index) Resolve(path string) (SignalItem, error) {
	segments := splitPath(path)
	if segments[0] == "" {
		return SignalItem{}, fmt.Errorf("%w: empty path", ErrPathNotFound)
	}
	name := segments[len(segments)-1]

	var m int
	if len(segments) == 1 {
		if idx.current == NoModule {
			return SignalItem{}, fmt.Errorf("%w: %w: %s", ErrPathNotFound, ErrNoCurrent, path)
		}
		m = idx.current
	} else {
		var err error
		if m, err = idx.walk(path, segments[:len(segments)-1]); err != nil {
			return SignalItem{}, err
		}
	}

	for _, s := range idx.Modules[m].Signals {
		if s.Name == name || (s.Range != "" && s.Name+s.Range == name) {
			return s, nil
		}
	}
	return SignalItem{}, fmt.Errorf("%w: %s (no signal %q)", ErrPathNotFound, path, name)
}

// ResolveModule maps a dotted path to the arena index of a module.
func (idx *Index) ResolveModule(path string) (int, error) {
	segments := splitPath(path)
	if segments[0] == "" {
		return NoModule, fmt.Errorf("%w: empty path", ErrPathNotFound)
	}
	return idx.walk(path, segments)
}

// SetCurrent changes the module relative paths are resolved against.
func (idx *Index) SetCurrent(path string) error {
	m, err := idx.ResolveModule(path)
	if err != nil {
		return err
	}
	idx.current = m
	return nil
}

// Current returns the dotted path of the current module, or "" if unset.
func (idx *Index) Current() string {
	if idx.current == NoModule {
		return ""
	}
	return idx.modulePath(idx.current)
}

func (idx *Index) modulePath(m int) string {
	var names []string
	for ; m != NoModule; m = idx.Modules[m].Parent {
		names = append(names, idx.Modules[m].Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, PathSeparator)
}

// PathOf returns the absolute path of the first declaration of id.
func (idx *Index) PathOf(id vcd.SignalID) (string, error) {
	ref, ok := idx.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrSignalNotFound, id)
	}
	return idx.modulePath(ref.module) + PathSeparator + idx.Modules[ref.module].Signals[ref.signal].Name, nil
}

// Lookup returns the first declaration of id.
func (idx *Index) Lookup(id vcd.SignalID) (SignalItem, bool) {
	ref, ok := idx.byID[id]
	if !ok {
		return SignalItem{}, false
	}
	return idx.Modules[ref.module].Signals[ref.signal], true
}

// Signals returns one item per distinct id, ordered by id.
func (idx *Index) Signals() []SignalItem {
	items := make([]SignalItem, 0, len(idx.byID))
	for _, ref := range idx.byID {
		items = append(items, idx.Modules[ref.module].Signals[ref.signal])
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// indexRecord has the fields of Index without its methods, so the cbor codec
// encodes the struct instead of calling back into MarshalBinary.
type indexRecord Index

// MarshalBinary encodes the arena as CBOR. The current module is not saved.
func (idx *Index) MarshalBinary() ([]byte, error) {
	return cbor.Marshal((*indexRecord)(idx))
}

func (idx *Index) UnmarshalBinary(data []byte) error {
	var decoded indexRecord
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("hierarchy: decoding index: %w", err)
	}
	for i, m := range decoded.Modules {
		if m.Parent < NoModule || m.Parent >= len(decoded.Modules) {
			return fmt.Errorf("hierarchy: module %d has parent %d outside the arena", i, m.Parent)
		}
		for _, c := range m.Children {
			if c < 0 || c >= len(decoded.Modules) {
				return fmt.Errorf("hierarchy: module %d has child %d outside the arena", i, c)
			}
		}
	}
	for _, r := range decoded.Roots {
		if r < 0 || r >= len(decoded.Modules) {
			return fmt.Errorf("hierarchy: root %d outside the arena", r)
		}
	}
	idx.Modules = decoded.Modules
	idx.Roots = decoded.Roots
	idx.current = NoModule
	if len(idx.Roots) > 0 {
		idx.current = idx.Roots[0]
	}
	idx.reindex()
	return nil
}
