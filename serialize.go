package qtfaststart

import (
	"encoding/binary"
	"io"
	"math"
)

// Serialize flattens atoms back into bytes, rebuilding every header from the
// atom's current size.
func Serialize(atoms []*Atom) []byte {
	var total uint64
	for _, atom := range atoms {
		total += atom.Size
	}
	return appendAtoms(make([]byte, 0, total), atoms)
}

func appendAtoms(buf []byte, atoms []*Atom) []byte {
	for i, atom := range atoms {
		buf = appendHeader(buf, atom, i == len(atoms)-1)
		if atom.IsContainer() {
			buf = appendAtoms(buf, atom.Children)
		} else {
			buf = append(buf, atom.Data...)
		}
	}
	return buf
}

// WriteAtoms writes atoms to w without assembling them in one buffer first.
func WriteAtoms(w io.Writer, atoms []*Atom) (n int64, err error) {
	var header [largeHeaderSize]byte
	for i, atom := range atoms {
		var nn int
		if nn, err = w.Write(appendHeader(header[:0], atom, i == len(atoms)-1)); err != nil {
			return n + int64(nn), err
		}
		n += int64(nn)
		if atom.IsContainer() {
			var cn int64
			cn, err = WriteAtoms(w, atom.Children)
			n += cn
		} else {
			nn, err = w.Write(atom.Data)
			n += int64(nn)
		}
		if err != nil {
			return
		}
	}
	return
}

func appendHeader(buf []byte, atom *Atom, last bool) []byte {
	var size uint64
	switch {
	case atom.ExtendsToEOF && !atom.LargeSize && last:
		return append(binary.BigEndian.AppendUint32(buf, 0), fourCC(atom.Type)...)
	case atom.HeaderSize() == largeHeaderSize:
		size = atom.Size
	case atom.Size > math.MaxUint32:
		// An open-ended atom that is no longer last grows a 64-bit size field
		size = atom.Size + largeHeaderSize - headerSize
	default:
		buf = binary.BigEndian.AppendUint32(buf, uint32(atom.Size))
		return append(buf, fourCC(atom.Type)...)
	}
	buf = binary.BigEndian.AppendUint32(buf, 1)
	buf = append(buf, fourCC(atom.Type)...)
	return binary.BigEndian.AppendUint64(buf, size)
}

func fourCC(typ string) []byte {
	code := []byte("    ")
	copy(code, typ)
	return code
}
