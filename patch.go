package qtfaststart

import "log/slog"

// Options control how a movie is converted.
type Options struct {
	// ForceUpgradeToCo64 converts every stco atom to co64, even when all
	// shifted offsets would still fit in 32 bits.
	ForceUpgradeToCo64 bool
	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

func (opts Options) logger() *slog.Logger {
	if opts.Logger == nil {
		return slog.Default()
	}
	return opts.Logger
}

// PatchChunkOffsets shifts every chunk offset under moov by the size moov will
// have once it is placed in front of the media data, and returns that shift.
//
// Widening an stco atom to co64 grows moov, which grows the shift, which can
// push further stco entries past 32 bits. Tables are upgraded pass by pass
// until no more conversions happen; each stco converts at most once.
func PatchChunkOffsets(moov *Atom, opts Options) (uint64, error) {
	log := opts.logger().With("atom", moov.Type)

	var tables []*Atom
	Walk([]*Atom{moov}, func(atom *Atom) bool {
		if atom.IsChunkOffsetTable() {
			tables = append(tables, atom)
		}
		return true
	})
	if len(tables) == 0 {
		return 0, ErrMissingIndex
	}

	// moov ends up in front of the media data, so it needs an explicit size
	moov.ExtendsToEOF = false
	delta := moov.resize()
	for pass := 1; ; pass++ {
		converted := 0
		for _, table := range tables {
			if table.Type != "stco" {
				continue
			}
			upgrade := opts.ForceUpgradeToCo64
			if !upgrade {
				var err error
				if upgrade, err = table.needsCo64(delta); err != nil {
					return 0, err
				}
			}
			if !upgrade {
				continue
			}
			if err := table.upgradeToCo64(); err != nil {
				return 0, err
			}
			converted++
		}
		if converted == 0 {
			break
		}
		delta = moov.resize()
		log.Debug("upgraded stco to co64", "pass", pass, "tables", converted, "delta", delta)
	}

	for _, table := range tables {
		if err := table.shiftChunkOffsets(delta); err != nil {
			return 0, err
		}
	}
	log.Debug("patched chunk offsets", "tables", len(tables), "delta", delta)
	return delta, nil
}
