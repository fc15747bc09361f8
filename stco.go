package qtfaststart

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// aligned(8) class ChunkOffsetBox
//     extends FullBox('stco', version = 0, 0) {
//         unsigned int(32) entry_count;
//         for (i=1; i <= entry_count; i++) {
//             unsigned int(32) chunk_offset;
//     }
// }
// aligned(8) class ChunkLargeOffsetBox
//     extends FullBox('co64', version = 0, 0) {
//         unsigned int(32) entry_count;
//         for (i=1; i <= entry_count; i++) {
//             unsigned int(64) chunk_offset;
//         }
// }

// Entries start after version(1), flags(3) and entry_count(4).
const chunkOffsetEntriesStart = 8

// IsChunkOffsetTable returns true for stco and co64 atoms.
func (atom *Atom) IsChunkOffsetTable() bool {
	return atom.Type == "stco" || atom.Type == "co64"
}

func (atom *Atom) entryWidth() uint64 {
	if atom.Type == "co64" {
		return 8
	}
	return 4
}

// entryCount validates the table layout and returns its number of entries.
func (atom *Atom) entryCount() (uint64, error) {
	if !atom.IsChunkOffsetTable() {
		return 0, fmt.Errorf("%q is not a chunk offset atom", atom.Type)
	}
	if len(atom.Data) < chunkOffsetEntriesStart {
		return 0, &StructuralError{Type: atom.Type, Msg: "truncated chunk offset table"}
	}
	n := uint64(binary.BigEndian.Uint32(atom.Data[4:8]))
	if uint64(len(atom.Data)) < chunkOffsetEntriesStart+n*atom.entryWidth() {
		return 0, &StructuralError{Type: atom.Type, Msg: fmt.Sprintf("%d entries do not fit in %d bytes", n, len(atom.Data))}
	}
	return n, nil
}

// ChunkOffsets returns the file offsets stored in an stco or co64 atom.
func (atom *Atom) ChunkOffsets() ([]uint64, error) {
	n, err := atom.entryCount()
	if err != nil {
		return nil, err
	}
	offsets := make([]uint64, n)
	entries := atom.Data[chunkOffsetEntriesStart:]
	for i := range offsets {
		if atom.Type == "co64" {
			offsets[i] = binary.BigEndian.Uint64(entries[8*i:])
		} else {
			offsets[i] = uint64(binary.BigEndian.Uint32(entries[4*i:]))
		}
	}
	return offsets, nil
}

// needsCo64 returns true if any entry of an stco atom no longer fits in 32
// bits once shifted by delta.
func (atom *Atom) needsCo64(delta uint64) (bool, error) {
	if atom.Type != "stco" {
		return false, nil
	}
	offsets, err := atom.ChunkOffsets()
	if err != nil {
		return false, err
	}
	for _, offset := range offsets {
		if sum, carry := bits.Add64(offset, delta, 0); carry != 0 || sum > math.MaxUint32 {
			return true, nil
		}
	}
	return false, nil
}

// upgradeToCo64 rewrites an stco atom as co64. The payload is replaced, never
// modified in place, since it may share memory with the parsed input.
func (atom *Atom) upgradeToCo64() error {
	n, err := atom.entryCount()
	if err != nil {
		return err
	}
	if atom.Type != "stco" {
		return nil
	}
	end := chunkOffsetEntriesStart + 4*n
	data := make([]byte, 0, uint64(len(atom.Data))+4*n)
	data = append(data, atom.Data[:chunkOffsetEntriesStart]...)
	for i := uint64(0); i < n; i++ {
		start := chunkOffsetEntriesStart + 4*i
		data = binary.BigEndian.AppendUint64(data, uint64(binary.BigEndian.Uint32(atom.Data[start:])))
	}
	data = append(data, atom.Data[end:]...)

	atom.Type = "co64"
	atom.Data = data
	atom.Size += 4 * n
	return nil
}

// shiftChunkOffsets adds delta to every entry of an stco or co64 atom.
func (atom *Atom) shiftChunkOffsets(delta uint64) error {
	offsets, err := atom.ChunkOffsets()
	if err != nil {
		return err
	}
	data := make([]byte, len(atom.Data))
	copy(data, atom.Data)
	entries := data[chunkOffsetEntriesStart:]
	for i, offset := range offsets {
		sum, carry := bits.Add64(offset, delta, 0)
		if carry != 0 || (atom.Type == "stco" && sum > math.MaxUint32) {
			return fmt.Errorf("%w: %s entry %d: %d + %d", ErrOffsetOverflow, atom.Type, i, offset, delta)
		}
		if atom.Type == "co64" {
			binary.BigEndian.PutUint64(entries[8*i:], sum)
		} else {
			binary.BigEndian.PutUint32(entries[4*i:], uint32(sum))
		}
	}
	atom.Data = data
	return nil
}
