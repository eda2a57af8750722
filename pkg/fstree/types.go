// Package fstree models the filesystem tree carried in an archive header: a
// tagged union of directory, file, and symlink entries, with the JSON
// encoding rules the header format requires and a path resolver that
// follows symlinks safely.
package fstree

import (
	"github.com/tidwall/btree"

	"github.com/packfs/asar/pkg/integrity"
)

type NodeType string

const (
	DirNode     NodeType = "dir"
	FileNode    NodeType = "file"
	SymLinkNode NodeType = "symlink"
)

// Entry is one node of the tree. Which fields are meaningful depends on
// Type; the JSON form carries no explicit tag, entries are discriminated by
// key presence on decode. Entries are immutable once a tree is built and
// may be shared freely across goroutines.
type Entry struct {
	Type NodeType

	// Directory fields. Children are kept ordered by name so listing and
	// encoding are deterministic.
	Files *btree.Map[string, *Entry]

	// File fields. Offset addresses the file's bytes relative to the end
	// of the header block.
	Executable bool
	Offset     uint64
	Size       int64
	Integrity  *integrity.Record

	// Symlink target: absolute means archive-root-relative.
	Link string

	// Unpacked entries live beside the archive instead of inside it.
	Unpacked bool
}

// IsDir returns true if the entry represents a directory.
func (e *Entry) IsDir() bool {
	return e.Type == DirNode
}

// IsFile returns true if the entry represents a regular file.
func (e *Entry) IsFile() bool {
	return e.Type == FileNode
}

// IsSymlink returns true if the entry represents a symlink.
func (e *Entry) IsSymlink() bool {
	return e.Type == SymLinkNode
}

// Child looks up a directory child by name.
func (e *Entry) Child(name string) (*Entry, bool) {
	if e.Files == nil {
		return nil, false
	}
	return e.Files.Get(name)
}

// Put inserts or replaces a directory child.
func (e *Entry) Put(name string, child *Entry) {
	if e.Files == nil {
		e.Files = new(btree.Map[string, *Entry])
	}
	e.Files.Set(name, child)
}

func NewDirectory() *Entry {
	return &Entry{Type: DirNode, Files: new(btree.Map[string, *Entry])}
}

func NewFile(offset uint64, size int64) *Entry {
	return &Entry{Type: FileNode, Offset: offset, Size: size}
}

func NewSymlink(target string) *Entry {
	return &Entry{Type: SymLinkNode, Link: target}
}

// Filesystem is a complete decoded header tree. The root is a directory in
// any archive produced by this package.
type Filesystem struct {
	Root *Entry
}

func New() *Filesystem {
	return &Filesystem{Root: NewDirectory()}
}
