package qtfaststart

import "encoding/binary"

// Parse decodes b into a list of top-level atoms, descending into container
// atoms. Leaf payloads share memory with b.
func Parse(b []byte) ([]*Atom, error) {
	return parseAtoms(b, 0)
}

func parseAtoms(b []byte, base uint64) ([]*Atom, error) {
	var atoms []*Atom
	offset := uint64(0)
	length := uint64(len(b))
	for offset < length {
		atom, err := readAtom(b[offset:], base+offset)
		if err != nil {
			return nil, err
		}
		if atom.IsContainer() {
			hs := atom.HeaderSize()
			atom.Children, err = parseAtoms(b[offset+hs:offset+atom.Size], base+offset+hs)
			if err != nil {
				return nil, err
			}
		}
		atoms = append(atoms, atom)
		offset += atom.Size
	}
	return atoms, nil
}

// readAtom decodes the atom at the start of b. offset is the absolute
// position of b, used for error reporting.
func readAtom(b []byte, offset uint64) (*Atom, error) {
	remaining := uint64(len(b))
	if remaining < headerSize {
		return nil, &StructuralError{Offset: offset, Msg: "truncated atom header"}
	}

	// The first 4 bytes contain the size of the atom
	atom := &Atom{Size: uint64(binary.BigEndian.Uint32(b[0:4]))}

	// The next 4 bytes contain the type of the atom
	atom.Type = string(b[4:8])

	hs := uint64(headerSize)
	switch atom.Size {
	case 1:
		// The real size follows in the next 8 bytes
		if remaining < largeHeaderSize {
			return nil, &StructuralError{Type: atom.Type, Offset: offset, Msg: "truncated 64-bit size"}
		}
		atom.Size = binary.BigEndian.Uint64(b[8:16])
		atom.LargeSize = true
		hs = largeHeaderSize
	case 0:
		// The atom extends to the end of its parent
		atom.Size = remaining
		atom.ExtendsToEOF = true
	}

	// Make sure the atom is at least as large as its header
	if atom.Size < hs {
		return nil, &StructuralError{Type: atom.Type, Offset: offset, Msg: "size smaller than header"}
	}
	if atom.Size > remaining {
		return nil, &StructuralError{Type: atom.Type, Offset: offset, Msg: "size exceeds available data"}
	}

	if !atom.IsContainer() {
		atom.Data = b[hs:atom.Size]
	}
	return atom, nil
}
