package qtfaststart

import (
	"errors"
	"fmt"
)

var (
	ErrMissingIndex     = errors.New("invalid file: moov atom contains no chunk offset atoms")
	ErrMissingMoovRange = errors.New("no moov range supplied")
	ErrCompressedMoov   = errors.New("compressed moov atoms are not supported")
	ErrOffsetOverflow   = errors.New("chunk offset overflow")
)

// A StructuralError reports atom headers or lengths that do not describe a
// well-formed atom tree.
type StructuralError struct {
	Type   string
	Offset uint64
	Msg    string
}

func (e *StructuralError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("invalid file format: %s at offset %d", e.Msg, e.Offset)
	}
	return fmt.Sprintf("invalid file format: atom %q at offset %d: %s", e.Type, e.Offset, e.Msg)
}

// A MissingBoxError reports a required top-level atom that was not found.
type MissingBoxError struct {
	Type string
}

func (e *MissingBoxError) Error() string {
	return fmt.Sprintf("invalid file: %s atom not found", e.Type)
}

// An InvalidFtypError reports an ftyp atom larger than MaxFtypSize.
type InvalidFtypError struct {
	Size uint64
}

func (e *InvalidFtypError) Error() string {
	return fmt.Sprintf("invalid file: ftyp atom is %d bytes, greater than %d", e.Size, MaxFtypSize)
}
