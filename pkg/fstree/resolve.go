package fstree

import (
	"fmt"
	"strings"

	"github.com/packfs/asar/pkg/common"
)

// splitPath normalizes a slash-separated archive path: surrounding
// whitespace and slashes are trimmed and empty components dropped. "." and
// ".." components are kept so escape validation can see them.
func splitPath(p string) []string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pathError(parts []string, err error) error {
	return fmt.Errorf("%s: %w", strings.Join(parts, "/"), err)
}

// FindEntry resolves p against the tree. With followLinks set, symlinks met
// anywhere on the path, including as the final component, are resolved;
// the returned entry is never a symlink descriptor in that case. With
// followLinks unset, a symlink mid-path fails as not found and a final
// symlink is returned as-is.
func (f *Filesystem) FindEntry(p string, followLinks bool) (*Entry, error) {
	if f.Root == nil {
		return nil, pathError(splitPath(p), common.ErrNotFound)
	}
	visited := make(map[string]struct{})
	return f.find(splitPath(p), followLinks, visited)
}

func (f *Filesystem) find(comps []string, follow bool, visited map[string]struct{}) (*Entry, error) {
	cur := f.Root
	consumed := make([]string, 0, len(comps))

	for i := 0; i < len(comps); i++ {
		switch cur.Type {
		case DirNode:
			name := comps[i]
			if name == "." || name == ".." {
				return nil, pathError(append(consumed, name), common.ErrInvalidPath)
			}
			child, ok := cur.Child(name)
			if !ok {
				return nil, pathError(append(consumed, name), common.ErrNotFound)
			}
			consumed = append(consumed, name)
			cur = child
		case FileNode:
			return nil, pathError(consumed, common.ErrNotADirectory)
		case SymLinkNode:
			if !follow {
				return nil, pathError(consumed, common.ErrNotFound)
			}
			resolved, err := f.resolveLink(consumed, cur.Link, visited)
			if err != nil {
				return nil, err
			}
			return f.find(append(resolved, comps[i:]...), follow, visited)
		}
	}

	if cur.Type == SymLinkNode && follow {
		resolved, err := f.resolveLink(consumed, cur.Link, visited)
		if err != nil {
			return nil, err
		}
		return f.find(resolved, follow, visited)
	}
	return cur, nil
}

// resolveLink turns a symlink target into root-relative components. An
// absolute target is taken relative to the archive root, a relative one
// relative to the symlink's containing directory. Targets that would climb
// above the root are rejected outright, and the set of resolved paths seen
// during one FindEntry call is threaded through to catch cycles.
func (f *Filesystem) resolveLink(symlinkPath []string, target string, visited map[string]struct{}) ([]string, error) {
	var comps []string
	if strings.HasPrefix(strings.TrimSpace(target), "/") {
		comps = splitPath(target)
	} else {
		var dir []string
		if len(symlinkPath) > 0 {
			dir = symlinkPath[:len(symlinkPath)-1]
		}
		comps = append(append(make([]string, 0, len(dir)+4), dir...), splitPath(target)...)
	}

	resolved := make([]string, 0, len(comps))
	depth := 0
	for _, c := range comps {
		switch c {
		case ".":
			// no-op
		case "..":
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%s: %w", target, common.ErrSymlinkEscape)
			}
			resolved = resolved[:len(resolved)-1]
		default:
			depth++
			resolved = append(resolved, c)
		}
	}

	key := strings.Join(resolved, "/")
	if _, seen := visited[key]; seen {
		return nil, fmt.Errorf("%s: %w", key, common.ErrSymlinkLoop)
	}
	visited[key] = struct{}{}
	return resolved, nil
}
