package qtfaststart

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPatchChunkOffsetsShift(t *testing.T) {
	moov := bbbAtoms(t)[4]
	_, before := collectOffsets(t, []*Atom{moov})

	delta, err := PatchChunkOffsets(moov, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if delta != bbbMoovSize || moov.Size != bbbMoovSize {
		t.Errorf("delta %d, moov %d, want both %d", delta, moov.Size, bbbMoovSize)
	}
	_, after := collectOffsets(t, []*Atom{moov})
	for i := range before {
		for j := range before[i] {
			if after[i][j] != before[i][j]+delta {
				t.Fatalf("table %d entry %d: %d, want %d", i, j, after[i][j], before[i][j]+delta)
			}
		}
	}
}

func TestPatchChunkOffsetsMissingIndex(t *testing.T) {
	moov := NewContainer("moov", NewAtom("mvhd", make([]byte, 100)), NewContainer("trak", NewAtom("tkhd", make([]byte, 84))))
	if _, err := PatchChunkOffsets(moov, Options{}); !errors.Is(err, ErrMissingIndex) {
		t.Errorf("err = %v, want ErrMissingIndex", err)
	}
}

// An upgrade in one track grows moov enough to push the other track over the
// 32-bit limit, which needs a second pass.
func TestPatchChunkOffsetsCascade(t *testing.T) {
	first := chunkOffsetAtom("stco", 48, 0)
	second := chunkOffsetAtom("stco", 48, math.MaxUint32)
	moov := NewContainer("moov", track(first), track(second))

	// first fits exactly with the initial shift
	edge := math.MaxUint32 - moov.Size
	binaryPutOffset(first, 1, edge)

	delta, err := PatchChunkOffsets(moov, Options{})
	if err != nil {
		t.Fatal(err)
	}
	types, offsets := collectOffsets(t, []*Atom{moov})
	if diff := cmp.Diff([]string{"co64", "co64"}, types); diff != "" {
		t.Errorf("table types mismatch (-want +got):\n%s", diff)
	}
	if delta != moov.Size {
		t.Errorf("delta %d, moov %d", delta, moov.Size)
	}
	want := [][]uint64{{48 + delta, edge + delta}, {48 + delta, math.MaxUint32 + delta}}
	if diff := cmp.Diff(want, offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	if got := Serialize([]*Atom{moov}); uint64(len(got)) != moov.Size {
		t.Errorf("serialized %d bytes, moov size %d", len(got), moov.Size)
	}
}

func TestPatchChunkOffsetsNoUpgradeAtLimit(t *testing.T) {
	table := chunkOffsetAtom("stco", 0)
	moov := NewContainer("moov", track(table))
	binaryPutOffset(table, 0, math.MaxUint32-moov.Size)

	delta, err := PatchChunkOffsets(moov, Options{})
	if err != nil {
		t.Fatal(err)
	}
	offsets, _ := table.ChunkOffsets()
	if table.Type != "stco" || offsets[0] != math.MaxUint32 || delta != moov.Size {
		t.Errorf("got %s %v delta %d, want stco [%d]", table.Type, offsets, delta, uint64(math.MaxUint32))
	}
}

func TestPatchChunkOffsetsCo64Precision(t *testing.T) {
	big := uint64(1<<40 + 12345)
	table := chunkOffsetAtom("co64", big, 7)
	moov := NewContainer("moov", track(table))
	size := moov.Size

	delta, err := PatchChunkOffsets(moov, Options{ForceUpgradeToCo64: true})
	if err != nil {
		t.Fatal(err)
	}
	offsets, _ := table.ChunkOffsets()
	if diff := cmp.Diff([]uint64{big + size, 7 + size}, offsets); diff != "" || delta != size {
		t.Errorf("delta %d, offsets mismatch (-want +got):\n%s", delta, diff)
	}
}

func TestPatchChunkOffsetsErrors(t *testing.T) {
	t.Run("co64 overflow", func(t *testing.T) {
		moov := NewContainer("moov", track(chunkOffsetAtom("co64", math.MaxUint64-1)))
		if _, err := PatchChunkOffsets(moov, Options{}); !errors.Is(err, ErrOffsetOverflow) {
			t.Errorf("err = %v, want ErrOffsetOverflow", err)
		}
	})
	t.Run("truncated table", func(t *testing.T) {
		moov := NewContainer("moov", track(NewAtom("stco", []byte{0, 0, 0})))
		var structErr *StructuralError
		if _, err := PatchChunkOffsets(moov, Options{}); !errors.As(err, &structErr) {
			t.Errorf("err = %v, want StructuralError", err)
		}
	})
}

func TestUpgradeToCo64(t *testing.T) {
	table := chunkOffsetAtom("stco", 1, 2, math.MaxUint32)
	table.Data[0] = 0 // version
	table.Data[3] = 5 // flags
	table.Data = append(table.Data, 0xAA)
	table.resize()
	shared := table.Data

	if err := table.upgradeToCo64(); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0, 0, 0, 5, 0, 0, 0, 3,
		0, 0, 0, 0, 0, 0, 0, 1,
		0, 0, 0, 0, 0, 0, 0, 2,
		0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF,
		0xAA,
	}
	if diff := cmp.Diff(want, table.Data); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if table.Type != "co64" || table.Size != uint64(8+len(want)) {
		t.Errorf("got %s(%d)", table.Type, table.Size)
	}
	if shared[11] != 1 {
		t.Error("upgrade wrote into the original payload")
	}
}

func binaryPutOffset(table *Atom, i int, offset uint64) {
	entries := table.Data[chunkOffsetEntriesStart:]
	entries[4*i], entries[4*i+1], entries[4*i+2], entries[4*i+3] = byte(offset>>24), byte(offset>>16), byte(offset>>8), byte(offset)
}
