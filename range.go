package qtfaststart

import (
	"context"
	"encoding/binary"
	"fmt"
)

// A Range locates a top-level atom inside a movie that is read through a
// Source.
type Range struct {
	Type       string // The type of atom
	Offset     uint64 // The number of bytes between the start of the file and the atom
	Size       uint64 // The length of the atom
	HeaderSize uint8  // The length of the atom's header
}

// End returns the offset of the end of the atom.
func (r Range) End() uint64 {
	return r.Offset + r.Size
}

// HeaderEnd returns the offset of the end of the atom's header.
func (r Range) HeaderEnd() uint64 {
	return r.Offset + uint64(r.HeaderSize)
}

// IsZero returns true if the range has the zero value for its type.
func (r Range) IsZero() bool {
	return r == Range{}
}

// ScanRanges lists the top-level atoms of src in file order. Only atom
// headers are read, so the cost does not depend on the size of the media data.
func ScanRanges(ctx context.Context, src Source) ([]Range, error) {
	length, err := src.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("source size: %w", err)
	}
	var ranges []Range
	offset := uint64(0)
	for offset < length {
		if length-offset < headerSize {
			return nil, &StructuralError{Offset: offset, Msg: "truncated atom header"}
		}
		header, err := src.ReadRange(ctx, offset, min(largeHeaderSize, length-offset))
		if err != nil {
			return nil, fmt.Errorf("read header at %d: %w", offset, err)
		}
		r := Range{
			Type:       string(header[4:8]),
			Offset:     offset,
			Size:       uint64(binary.BigEndian.Uint32(header[0:4])),
			HeaderSize: headerSize,
		}
		switch r.Size {
		case 1:
			if len(header) < largeHeaderSize {
				return nil, &StructuralError{Type: r.Type, Offset: offset, Msg: "truncated 64-bit size"}
			}
			r.Size = binary.BigEndian.Uint64(header[8:16])
			r.HeaderSize = largeHeaderSize
		case 0:
			r.Size = length - offset
		}
		if r.Size < uint64(r.HeaderSize) {
			return nil, &StructuralError{Type: r.Type, Offset: offset, Msg: "size smaller than header"}
		}
		if r.Size > length-offset {
			return nil, &StructuralError{Type: r.Type, Offset: offset, Msg: "size exceeds available data"}
		}
		ranges = append(ranges, r)
		offset += r.Size
	}
	return ranges, nil
}

// FaststartOrder returns ranges in the order WriteFaststarted expects: ftyp,
// the first moov, then everything else in its original order.
func FaststartOrder(ranges []Range) []Range {
	ordered := make([]Range, 0, len(ranges))
	ftyp, moov := -1, -1
	for i, r := range ranges {
		if r.Type == "ftyp" && ftyp == -1 {
			ftyp = i
		} else if r.Type == "moov" && moov == -1 {
			moov = i
		}
	}
	for _, i := range []int{ftyp, moov} {
		if i != -1 {
			ordered = append(ordered, ranges[i])
		}
	}
	for i, r := range ranges {
		if i != ftyp && i != moov {
			ordered = append(ordered, r)
		}
	}
	return ordered
}
