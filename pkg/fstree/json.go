package fstree

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/btree"

	"github.com/packfs/asar/pkg/common"
	"github.com/packfs/asar/pkg/integrity"
)

type dirJSON struct {
	Files    map[string]*Entry `json:"files"`
	Unpacked bool              `json:"unpacked,omitempty"`
}

type fileJSON struct {
	Unpacked   bool              `json:"unpacked"`
	Executable bool              `json:"executable"`
	Offset     string            `json:"offset"`
	Size       int64             `json:"size"`
	Integrity  *integrity.Record `json:"integrity,omitempty"`
}

type linkJSON struct {
	Link     string `json:"link"`
	Unpacked bool   `json:"unpacked,omitempty"`
}

// MarshalJSON encodes the entry with the key set its type demands. The file
// offset is written as a decimal string so the full 64-bit range survives
// JSON number handling; directory children come out in name order because
// encoding/json sorts map keys.
func (e *Entry) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case DirNode:
		files := make(map[string]*Entry)
		if e.Files != nil {
			e.Files.Scan(func(name string, child *Entry) bool {
				files[name] = child
				return true
			})
		}
		return json.Marshal(dirJSON{Files: files, Unpacked: e.Unpacked})
	case FileNode:
		return json.Marshal(fileJSON{
			Unpacked:   e.Unpacked,
			Executable: e.Executable,
			Offset:     strconv.FormatUint(e.Offset, 10),
			Size:       e.Size,
			Integrity:  e.Integrity,
		})
	case SymLinkNode:
		return json.Marshal(linkJSON{Link: e.Link, Unpacked: e.Unpacked})
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", common.ErrMalformedEntry, e.Type)
	}
}

// UnmarshalJSON discriminates by key presence in fixed precedence: "files"
// means directory regardless of other keys, otherwise "link" means symlink,
// otherwise the object must be a file.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedEntry, err)
	}

	if filesRaw, ok := raw["files"]; ok {
		var files map[string]*Entry
		if err := json.Unmarshal(filesRaw, &files); err != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedEntry, err)
		}
		e.Type = DirNode
		e.Files = new(btree.Map[string, *Entry])
		for name, child := range files {
			e.Files.Set(name, child)
		}
		if err := decodeOptionalBool(raw, "unpacked", &e.Unpacked); err != nil {
			return err
		}
		return nil
	}

	if linkRaw, ok := raw["link"]; ok {
		var link string
		if err := json.Unmarshal(linkRaw, &link); err != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedEntry, err)
		}
		e.Type = SymLinkNode
		e.Link = link
		if err := decodeOptionalBool(raw, "unpacked", &e.Unpacked); err != nil {
			return err
		}
		return nil
	}

	e.Type = FileNode

	offsetRaw, ok := raw["offset"]
	if !ok {
		return fmt.Errorf("%w: file entry missing offset", common.ErrMalformedEntry)
	}
	var offsetStr string
	if err := json.Unmarshal(offsetRaw, &offsetStr); err != nil {
		return fmt.Errorf("%w: file offset must be a decimal string", common.ErrMalformedEntry)
	}
	offset, err := strconv.ParseUint(offsetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: non-numeric file offset %q", common.ErrMalformedEntry, offsetStr)
	}
	e.Offset = offset

	sizeRaw, ok := raw["size"]
	if !ok {
		return fmt.Errorf("%w: file entry missing size", common.ErrMalformedEntry)
	}
	if err := json.Unmarshal(sizeRaw, &e.Size); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedEntry, err)
	}
	if e.Size < 0 {
		return fmt.Errorf("%w: negative file size %d", common.ErrMalformedEntry, e.Size)
	}

	if err := decodeOptionalBool(raw, "unpacked", &e.Unpacked); err != nil {
		return err
	}
	if err := decodeOptionalBool(raw, "executable", &e.Executable); err != nil {
		return err
	}

	if integrityRaw, ok := raw["integrity"]; ok {
		rec := new(integrity.Record)
		if err := json.Unmarshal(integrityRaw, rec); err != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedEntry, err)
		}
		e.Integrity = rec
	}
	return nil
}

func decodeOptionalBool(raw map[string]json.RawMessage, key string, dst *bool) error {
	val, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedEntry, err)
	}
	return nil
}

// Encode serializes the whole tree to the header JSON form.
func (f *Filesystem) Encode() ([]byte, error) {
	return json.Marshal(f.Root)
}

// Decode builds a tree from header JSON.
func Decode(data []byte) (*Filesystem, error) {
	root := new(Entry)
	if err := json.Unmarshal(data, root); err != nil {
		return nil, err
	}
	return &Filesystem{Root: root}, nil
}
