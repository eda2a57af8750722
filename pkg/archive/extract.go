package archive

import (
	"os"
	"path/filepath"

	log "github.com/rs/zerolog/log"
)

// ExtractAll writes the archive's whole tree under dest. Entries are
// processed in listing order, so parent directories always precede their
// contents. Symlinks are recreated pointing verbatim at the stored target
// with no re-resolution. There is no rollback: a failure partway leaves
// prior writes in place.
func (a *Archive) ExtractAll(dest string) error {
	names, err := a.FS.ListFiles("", true)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	for _, name := range names {
		entry, err := a.FS.FindEntry(name, false)
		if err != nil {
			return err
		}

		log.Debug().Msgf("extracting %s", name)

		target := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case entry.IsSymlink():
			if err := os.Symlink(entry.Link, target); err != nil {
				return err
			}
		default:
			data, err := a.readEntry(name, entry)
			if err != nil {
				return err
			}
			mode := os.FileMode(0644)
			if entry.Executable {
				mode = 0755
			}
			if err := os.WriteFile(target, data, mode); err != nil {
				return err
			}
		}
	}
	return nil
}
