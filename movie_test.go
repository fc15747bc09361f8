package qtfaststart

import (
	"encoding/binary"
	"testing"
)

// chunkOffsetAtom builds an stco or co64 atom holding offsets.
func chunkOffsetAtom(typ string, offsets ...uint64) *Atom {
	data := make([]byte, 8, 8+8*len(offsets))
	binary.BigEndian.PutUint32(data[4:8], uint32(len(offsets)))
	for _, offset := range offsets {
		if typ == "co64" {
			data = binary.BigEndian.AppendUint64(data, offset)
		} else {
			data = binary.BigEndian.AppendUint32(data, uint32(offset))
		}
	}
	return NewAtom(typ, data)
}

// track wraps a chunk offset table in the usual trak/mdia/minf/stbl chain.
func track(table *Atom) *Atom {
	return NewContainer("trak",
		NewAtom("tkhd", make([]byte, 84)),
		NewContainer("mdia",
			NewAtom("mdhd", make([]byte, 24)),
			NewAtom("hdlr", []byte("\x00\x00\x00\x00\x00\x00\x00\x00vide\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00VideoHandler\x00")),
			NewContainer("minf",
				NewAtom("vmhd", make([]byte, 12)),
				NewContainer("stbl",
					NewAtom("stsd", make([]byte, 8)),
					NewAtom("stsz", make([]byte, 12)),
					table,
				),
			),
		),
	)
}

func ftypAtom() *Atom {
	return NewAtom("ftyp", []byte("isom\x00\x00\x02\x00isomiso2avc1mp41"))
}

// evenOffsets returns n offsets spaced step bytes apart from start.
func evenOffsets(start, step uint64, n int) []uint64 {
	offsets := make([]uint64, n)
	for i := range offsets {
		offsets[i] = start + uint64(i)*step
	}
	return offsets
}

// Layout of the reference movie: ftyp(32) free(8) mdat(1051467) mdat(8) moov(4221).
const (
	bbbMdatSize = 1051467
	bbbMoovSize = 4221
	bbbMdatData = 32 + 8 + 8
)

// bbbAtoms builds a movie laid out like a typical non fast start encode,
// with moov at the end of the file.
func bbbAtoms(t *testing.T) []*Atom {
	t.Helper()
	video := chunkOffsetAtom("stco", evenOffsets(bbbMdatData, 7900, 132)...)
	audio := chunkOffsetAtom("stco", evenOffsets(bbbMdatData+4000, 7900, 133)...)
	moov := NewContainer("moov",
		NewAtom("mvhd", make([]byte, 100)),
		track(video),
		track(audio),
	)
	padding := bbbMoovSize - moov.Size - headerSize
	if padding > bbbMoovSize {
		t.Fatalf("moov is already %d bytes", moov.Size)
	}
	moov.Children = append(moov.Children, NewAtom("udta", make([]byte, padding)))
	moov.resize()
	if moov.Size != bbbMoovSize {
		t.Fatalf("moov size = %d, want %d", moov.Size, bbbMoovSize)
	}
	mdat := make([]byte, bbbMdatSize-headerSize)
	for i := range mdat {
		mdat[i] = byte(i)
	}
	return []*Atom{
		ftypAtom(),
		NewAtom("free", nil),
		NewAtom("mdat", mdat),
		NewAtom("mdat", nil),
		moov,
	}
}

func bbbMovie(t *testing.T) []byte {
	t.Helper()
	return Serialize(bbbAtoms(t))
}

// collectOffsets returns the entries of every chunk offset table in atoms,
// in traversal order.
func collectOffsets(t *testing.T, atoms []*Atom) (types []string, offsets [][]uint64) {
	t.Helper()
	Walk(atoms, func(atom *Atom) bool {
		if atom.IsChunkOffsetTable() {
			entries, err := atom.ChunkOffsets()
			if err != nil {
				t.Fatal(err)
			}
			types = append(types, atom.Type)
			offsets = append(offsets, entries)
		}
		return true
	})
	return
}

type typeSize struct {
	Type string
	Size uint64
}

func withoutData(atoms []*Atom) []typeSize {
	result := make([]typeSize, len(atoms))
	for i, atom := range atoms {
		result[i] = typeSize{atom.Type, atom.Size}
	}
	return result
}
