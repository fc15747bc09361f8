package qtfaststart

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
)

// WriteFaststarted writes the fast start version of the movie behind src to
// w. ranges must describe every top-level atom, ftyp first and moov second,
// the rest in file order, as returned by FaststartOrder.
//
// Only ftyp and moov are held in memory. Every other range is copied from src
// to w as a stream, one range at a time and in order, so a slow w throttles
// the reads. w is closed once everything has been written; on error it is
// left open.
func WriteFaststarted(ctx context.Context, src Source, ranges []Range, w io.WriteCloser, opts Options) error {
	log := opts.logger()
	if len(ranges) == 0 || ranges[0].Type != "ftyp" {
		return &MissingBoxError{Type: "ftyp"}
	}
	if len(ranges) < 2 || ranges[1].Type != "moov" {
		return ErrMissingMoovRange
	}
	ftypRange, moovRange, rest := ranges[0], ranges[1], ranges[2:]
	mdat := slices.IndexFunc(rest, func(r Range) bool { return r.Type == "mdat" })
	if mdat == -1 {
		return &MissingBoxError{Type: "mdat"}
	}

	if moovRange.Offset < rest[mdat].Offset {
		log.Debug("moov already precedes mdat, copying unchanged")
		inOrder := slices.Clone(ranges)
		slices.SortStableFunc(inOrder, func(a, b Range) int {
			return cmp.Compare(a.Offset, b.Offset)
		})
		for _, r := range inOrder {
			if err := copyRange(ctx, src, r, w); err != nil {
				return err
			}
		}
		return w.Close()
	}

	if ftypRange.Size > MaxFtypSize {
		return &InvalidFtypError{Size: ftypRange.Size}
	}
	ftyp, err := src.ReadRange(ctx, ftypRange.Offset, ftypRange.Size)
	if err != nil {
		return fmt.Errorf("read ftyp: %w", err)
	}
	if _, err = w.Write(ftyp); err != nil {
		return fmt.Errorf("write ftyp: %w", err)
	}

	moov, err := readMoov(ctx, src, moovRange)
	if err != nil {
		return err
	}
	delta, err := PatchChunkOffsets(moov, opts)
	if err != nil {
		return err
	}
	if _, err = WriteAtoms(w, []*Atom{moov}); err != nil {
		return fmt.Errorf("write moov: %w", err)
	}
	log.Debug("wrote patched moov", "size", moov.Size, "delta", delta)

	for _, r := range rest {
		if err = copyRange(ctx, src, r, w); err != nil {
			return err
		}
	}
	return w.Close()
}

func readMoov(ctx context.Context, src Source, r Range) (*Atom, error) {
	b, err := src.ReadRange(ctx, r.Offset, r.Size)
	if err != nil {
		return nil, fmt.Errorf("read moov: %w", err)
	}
	atoms, err := parseAtoms(b, r.Offset)
	if err != nil {
		return nil, err
	}
	if len(atoms) != 1 || atoms[0].Type != "moov" {
		return nil, &StructuralError{Type: "moov", Offset: r.Offset, Msg: "range does not hold exactly one moov atom"}
	}
	if atoms[0].Find("cmov") != nil {
		return nil, ErrCompressedMoov
	}
	return atoms[0], nil
}

// copyRange streams one range from src to w without buffering it whole.
func copyRange(ctx context.Context, src Source, r Range, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := src.OpenRange(ctx, r.Offset, r.Size)
	if err != nil {
		return fmt.Errorf("open %s at %d: %w", r.Type, r.Offset, err)
	}
	defer body.Close()
	n, err := io.CopyN(w, body, int64(r.Size))
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return fmt.Errorf("copy %s at %d: %d of %d bytes: %w", r.Type, r.Offset, n, r.Size, err)
	}
	return nil
}
