package fstree

import (
	"github.com/packfs/asar/pkg/common"
)

// ListFiles returns the names under the directory at p, in name order. When
// recursive, each directory's own name is followed immediately by its
// contents (pre-order, depth first), all expressed as slash-joined paths
// relative to p. An empty p lists from the root.
func (f *Filesystem) ListFiles(p string, recursive bool) ([]string, error) {
	entry, err := f.FindEntry(p, true)
	if err != nil {
		return nil, err
	}
	if !entry.IsDir() {
		return nil, pathError(splitPath(p), common.ErrNotADirectory)
	}

	var out []string
	var walk func(prefix string, dir *Entry)
	walk = func(prefix string, dir *Entry) {
		if dir.Files == nil {
			return
		}
		dir.Files.Scan(func(name string, child *Entry) bool {
			full := name
			if prefix != "" {
				full = prefix + "/" + name
			}
			out = append(out, full)
			if recursive && child.IsDir() {
				walk(full, child)
			}
			return true
		})
	}
	walk("", entry)
	return out, nil
}
