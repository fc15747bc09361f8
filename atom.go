package qtfaststart

import "math"

// MaxFtypSize is the largest ftyp atom accepted. Anything bigger is more
// likely a foreign or corrupt header than a real file type declaration.
const MaxFtypSize = 1 << 20

const (
	headerSize      = 8
	largeHeaderSize = 16
)

// An Atom is a discrete component of a Quicktime movie. Container atoms hold
// their payload as Children, every other atom keeps its payload verbatim in
// Data.
type Atom struct {
	Type     string  // The type of atom
	Size     uint64  // The length of the atom, header included
	Data     []byte  // The payload of a leaf atom
	Children []*Atom // The payload of a container atom

	// LargeSize is set when the header carries a 64-bit size field.
	LargeSize bool
	// ExtendsToEOF is set when the header declared a size of 0.
	ExtendsToEOF bool
}

// The atoms that can have chunk offset atoms as descendants.
var containerTypes = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"stbl": true,
}

// NewAtom returns a leaf atom wrapping data.
func NewAtom(typ string, data []byte) *Atom {
	atom := &Atom{Type: typ, Data: data}
	atom.resize()
	return atom
}

// NewContainer returns a container atom holding children.
func NewContainer(typ string, children ...*Atom) *Atom {
	atom := &Atom{Type: typ, Children: children}
	atom.resize()
	return atom
}

// IsContainer returns true if the atom's payload is parsed as child atoms.
func (atom *Atom) IsContainer() bool {
	return containerTypes[atom.Type]
}

// HeaderSize returns the length of the atom's header.
func (atom *Atom) HeaderSize() uint64 {
	switch {
	case atom.LargeSize:
		return largeHeaderSize
	case atom.ExtendsToEOF:
		return headerSize
	case atom.Size > math.MaxUint32:
		return largeHeaderSize
	}
	return headerSize
}

// PayloadSize returns the length of the atom without its header.
func (atom *Atom) PayloadSize() uint64 {
	return atom.Size - atom.HeaderSize()
}

// Find descends through the children of atom following the given types and
// returns the first match, or nil.
func (atom *Atom) Find(types ...string) *Atom {
	cur := atom
	for _, typ := range types {
		var next *Atom
		for _, child := range cur.Children {
			if child.Type == typ {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// resize recomputes the size of atom and all of its descendants from the
// bottom up and returns the new size.
func (atom *Atom) resize() uint64 {
	var payload uint64
	if atom.IsContainer() {
		for _, child := range atom.Children {
			payload += child.resize()
		}
	} else {
		payload = uint64(len(atom.Data))
	}
	if atom.LargeSize || (!atom.ExtendsToEOF && payload+headerSize > math.MaxUint32) {
		atom.Size = payload + largeHeaderSize
	} else {
		atom.Size = payload + headerSize
	}
	return atom.Size
}

// Walk calls fn for every atom in atoms, visiting each container before its
// children. Returning false from fn skips the children of that atom.
func Walk(atoms []*Atom, fn func(atom *Atom) bool) {
	for _, atom := range atoms {
		if fn(atom) && atom.IsContainer() {
			Walk(atom.Children, fn)
		}
	}
}

// find returns the index of the first atom of the given type, or -1.
func find(atoms []*Atom, typ string) int {
	for i, atom := range atoms {
		if atom.Type == typ {
			return i
		}
	}
	return -1
}
