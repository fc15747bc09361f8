package qtfaststart

import (
	"bytes"
	"fmt"
	"io"
)

// A File represents a Quicktime movie file.
type File struct {
	*bytes.Reader
	atoms []*Atom
	bytes []byte
}

// New creates and initializes a File by parsing the contents of a byte slice.
func New(b []byte) (*File, error) {
	f := &File{
		bytes:  b,
		Reader: bytes.NewReader(b),
	}
	if err := f.parse(); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Read creates and initializes a File using data read from an io.Reader.
func Read(reader io.Reader) (*File, error) {
	buffer := bytes.NewBuffer(nil)
	if _, err := io.Copy(buffer, reader); err != nil {
		return nil, err
	}
	return New(buffer.Bytes())
}

// Faststart returns a copy of b with the "moov" atom placed right after
// "ftyp" and every chunk offset patched accordingly. Files that are already
// fast start enabled are returned unchanged.
func Faststart(b []byte, opts Options) ([]byte, error) {
	f, err := New(b)
	if err != nil {
		return nil, err
	}
	if err := f.Convert(opts); err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// Atoms returns the top-level atoms of the movie.
func (f *File) Atoms() []*Atom {
	return f.atoms
}

// Bytes returns the current contents of the movie.
func (f *File) Bytes() []byte {
	return f.bytes
}

// FastStartEnabled returns true if the "moov" atom already precedes the
// "mdat" atom.
func (f *File) FastStartEnabled() bool {
	return find(f.atoms, "moov") < find(f.atoms, "mdat")
}

// Convert rearranges the file such that the "moov" atom directly follows the
// "ftyp" atom.
func (f *File) Convert(opts Options) error {
	if f.FastStartEnabled() {
		return nil
	}

	ftyp := f.atoms[find(f.atoms, "ftyp")]
	if ftyp.Size > MaxFtypSize {
		return &InvalidFtypError{Size: ftyp.Size}
	}
	moov := f.atoms[find(f.atoms, "moov")]
	if moov.Find("cmov") != nil {
		return ErrCompressedMoov
	}

	// The patched tree is built on copies so a failed conversion leaves f intact
	atoms := faststartOrder(f.atoms)
	atoms[1] = cloneTree(moov)
	delta, err := PatchChunkOffsets(atoms[1], opts)
	if err != nil {
		return err
	}
	opts.logger().Debug("moved moov before mdat", "moov", atoms[1].Size, "delta", delta)

	f.atoms = atoms
	f.bytes = Serialize(atoms)
	f.Reader = bytes.NewReader(f.bytes)
	return nil
}

func (f *File) parse() (err error) {
	f.atoms, err = Parse(f.bytes)
	return
}

func (f *File) validate() error {
	for _, typ := range []string{"ftyp", "moov", "mdat"} {
		if find(f.atoms, typ) == -1 {
			return &MissingBoxError{Type: typ}
		}
	}
	ftyps := 0
	for _, atom := range f.atoms {
		if atom.Type == "ftyp" {
			ftyps++
		}
	}
	if ftyps > 1 {
		return &StructuralError{Type: "ftyp", Msg: fmt.Sprintf("found %d ftyp atoms, expected one", ftyps)}
	}
	return nil
}

// faststartOrder returns atoms ordered as ftyp, the first moov, then
// everything else in its original order.
func faststartOrder(atoms []*Atom) []*Atom {
	ftyp, moov := find(atoms, "ftyp"), find(atoms, "moov")
	ordered := make([]*Atom, 0, len(atoms))
	ordered = append(ordered, atoms[ftyp], atoms[moov])
	for i, atom := range atoms {
		if i != ftyp && i != moov {
			ordered = append(ordered, atom)
		}
	}
	return ordered
}

// cloneTree copies the container structure of atom. Leaf payloads are shared;
// the patcher replaces them rather than writing into them.
func cloneTree(atom *Atom) *Atom {
	clone := *atom
	if atom.Children != nil {
		clone.Children = make([]*Atom, len(atom.Children))
		for i, child := range atom.Children {
			clone.Children[i] = cloneTree(child)
		}
	}
	return &clone
}
