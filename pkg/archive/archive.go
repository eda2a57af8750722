// Package archive reads and writes single-file archive containers: a
// pickle-framed JSON header describing a filesystem tree, followed by the
// packed file contents addressed by offset and size.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/packfs/asar/pkg/common"
	"github.com/packfs/asar/pkg/fstree"
	"github.com/packfs/asar/pkg/integrity"
	"github.com/packfs/asar/pkg/pickle"
)

// sizeFrameLength is the byte length of the leading framed uint32 that
// carries the header block size.
const sizeFrameLength = 8

// Archive is an opened container. The decoded tree is immutable, so one
// Archive may serve any number of concurrent readers; every read opens its
// own file handle.
type Archive struct {
	Path       string
	HeaderSize uint32
	FS         *fstree.Filesystem
}

// dataOffset converts a file entry offset into an absolute position in the
// archive file.
func (a *Archive) dataOffset(offset uint64) int64 {
	return sizeFrameLength + int64(a.HeaderSize) + int64(offset)
}

func (a *Archive) unpackedPath(p string) string {
	return filepath.Join(a.Path+".unpacked", filepath.FromSlash(p))
}

// readHeader opens the archive at path and decodes its header tree.
func readHeader(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sizeFrame := make([]byte, sizeFrameLength)
	if _, err := io.ReadFull(f, sizeFrame); err != nil {
		return nil, fmt.Errorf("%s: %w", path, common.ErrInvalidArchive)
	}
	sizeReader, err := pickle.NewReader(sizeFrame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, common.ErrInvalidArchive)
	}
	headerSize, err := sizeReader.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, common.ErrInvalidArchive)
	}

	headerFrame := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerFrame); err != nil {
		return nil, fmt.Errorf("%s: %w", path, common.ErrInvalidArchive)
	}
	headerReader, err := pickle.NewReader(headerFrame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, common.ErrInvalidArchive)
	}
	headerJSON, err := headerReader.ReadString()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, common.ErrInvalidArchive)
	}

	fs, err := fstree.Decode([]byte(headerJSON))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Archive{Path: path, HeaderSize: headerSize, FS: fs}, nil
}

// FindEntry resolves p against the archive's tree.
func (a *Archive) FindEntry(p string, followLinks bool) (*fstree.Entry, error) {
	return a.FS.FindEntry(p, followLinks)
}

// ListFiles lists names under the directory at p. See fstree.ListFiles.
func (a *Archive) ListFiles(p string, recursive bool) ([]string, error) {
	return a.FS.ListFiles(p, recursive)
}

// ReadFile resolves p to a file entry and returns its full content,
// verified against the entry's integrity record when one is present.
// Unpacked entries are read from the sibling <archive>.unpacked directory.
func (a *Archive) ReadFile(p string, followLinks bool) ([]byte, error) {
	entry, err := a.FS.FindEntry(p, followLinks)
	if err != nil {
		return nil, err
	}
	return a.readEntry(p, entry)
}

func (a *Archive) readEntry(p string, entry *fstree.Entry) ([]byte, error) {
	if !entry.IsFile() {
		return nil, fmt.Errorf("%s: %w", p, common.ErrNotAFile)
	}

	var data []byte
	if entry.Unpacked {
		var err error
		data, err = os.ReadFile(a.unpackedPath(p))
		if err != nil {
			return nil, fmt.Errorf("unpacked file %s: %w", p, err)
		}
	} else {
		f, err := os.Open(a.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		data = make([]byte, entry.Size)
		n, err := f.ReadAt(data, a.dataOffset(entry.Offset))
		if n != len(data) {
			return nil, fmt.Errorf("short read of %s at offset %d: %w", p, entry.Offset, err)
		}
	}

	if err := integrity.Verify(data, entry.Integrity); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return data, nil
}
