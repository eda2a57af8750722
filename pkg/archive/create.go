package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	log "github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/packfs/asar/pkg/fstree"
	"github.com/packfs/asar/pkg/integrity"
	"github.com/packfs/asar/pkg/pickle"
)

type CreateOptions struct {
	SourcePath string
	OutputPath string

	// Unpack lists archive-relative paths whose contents are stored in
	// the sibling <output>.unpacked directory instead of the container.
	Unpack []string

	// BlockSize for integrity records; 0 means integrity.DefaultBlockSize.
	BlockSize int
}

// pendingFile tracks a regular file discovered during the walk until its
// bytes are laid out.
type pendingFile struct {
	archivePath string
	diskPath    string
	entry       *fstree.Entry
}

// Create packs the tree under SourcePath into a new archive at OutputPath.
// The archive is staged in a temp file and renamed into place; an exclusive
// lock on the output path keeps concurrent packers from interleaving.
func Create(opts CreateOptions) error {
	log.Info().Msgf("creating archive from %s to %s", opts.SourcePath, opts.OutputPath)

	lock := flock.New(opts.OutputPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("unable to lock output path: %w", err)
	}
	defer lock.Unlock()

	unpackSet := make(map[string]struct{}, len(opts.Unpack))
	for _, p := range opts.Unpack {
		unpackSet[p] = struct{}{}
	}

	fs := fstree.New()
	var files []*pendingFile

	err := godirwalk.Walk(opts.SourcePath, &godirwalk.Options{
		Callback: func(osPath string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(opts.SourcePath, osPath)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			archivePath := filepath.ToSlash(rel)

			var stat unix.Stat_t
			if de.IsSymlink() {
				err = unix.Lstat(osPath, &stat)
			} else {
				err = unix.Stat(osPath, &stat)
			}
			if err != nil {
				return err
			}

			// Skip device files and other special nodes
			switch stat.Mode & unix.S_IFMT {
			case unix.S_IFDIR, unix.S_IFREG, unix.S_IFLNK:
			default:
				log.Info().Msgf("skipping special file: %s", osPath)
				return nil
			}

			var entry *fstree.Entry
			switch {
			case de.IsDir():
				entry = fstree.NewDirectory()
			case de.IsSymlink():
				target, err := os.Readlink(osPath)
				if err != nil {
					return fmt.Errorf("error reading symlink target %s: %w", osPath, err)
				}
				entry = fstree.NewSymlink(target)
			default:
				entry = fstree.NewFile(0, stat.Size)
				entry.Executable = stat.Mode&0111 != 0
				files = append(files, &pendingFile{
					archivePath: archivePath,
					diskPath:    osPath,
					entry:       entry,
				})
			}

			if _, ok := unpackSet[archivePath]; ok {
				entry.Unpacked = true
			}

			parent, err := dirFor(fs, path.Dir(archivePath))
			if err != nil {
				return err
			}
			parent.Put(path.Base(archivePath), entry)
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		return err
	}

	// Hash contents and assign offsets before the header is encoded: the
	// header carries both.
	var offset uint64
	for _, pf := range files {
		data, err := os.ReadFile(pf.diskPath)
		if err != nil {
			return fmt.Errorf("failed to read file contents for hashing: %w", err)
		}
		pf.entry.Integrity = integrity.Compute(data, opts.BlockSize)
		pf.entry.Size = int64(len(data))
		if !pf.entry.Unpacked {
			pf.entry.Offset = offset
			offset += uint64(len(data))
		}
	}

	headerJSON, err := fs.Encode()
	if err != nil {
		return err
	}

	headerWriter := pickle.NewWriter()
	headerWriter.WriteString(string(headerJSON))
	headerFrame := headerWriter.Bytes()

	sizeWriter := pickle.NewWriter()
	sizeWriter.WriteUint32(uint32(len(headerFrame)))

	tmpName := filepath.Join(
		filepath.Dir(opts.OutputPath),
		fmt.Sprintf(".%s.%s.tmp", filepath.Base(opts.OutputPath), uuid.New().String()),
	)
	out, err := os.Create(tmpName)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		os.Remove(tmpName)
	}()

	writer := bufio.NewWriterSize(out, 512*1024)
	if _, err := writer.Write(sizeWriter.Bytes()); err != nil {
		return err
	}
	if _, err := writer.Write(headerFrame); err != nil {
		return err
	}

	for _, pf := range files {
		if pf.entry.Unpacked {
			if err := copyUnpacked(opts.OutputPath, pf); err != nil {
				return err
			}
			continue
		}
		if err := appendFile(writer, pf); err != nil {
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, opts.OutputPath); err != nil {
		return err
	}

	log.Info().Msgf("archive created with %d files", len(files))
	return nil
}

func appendFile(writer *bufio.Writer, pf *pendingFile) error {
	f, err := os.Open(pf.diskPath)
	if err != nil {
		return err
	}
	defer f.Close()

	copied, err := io.Copy(writer, f)
	if err != nil {
		return fmt.Errorf("error archiving %s: %w", pf.archivePath, err)
	}
	if copied != pf.entry.Size {
		return fmt.Errorf("file %s changed size during archiving", pf.archivePath)
	}
	return nil
}

func copyUnpacked(outputPath string, pf *pendingFile) error {
	dest := filepath.Join(outputPath+".unpacked", filepath.FromSlash(pf.archivePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	mode := os.FileMode(0644)
	if pf.entry.Executable {
		mode = 0755
	}

	data, err := os.ReadFile(pf.diskPath)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, mode)
}

// dirFor walks the tree to the directory named by dir ("." for the root),
// which the sorted walk guarantees already exists.
func dirFor(fs *fstree.Filesystem, dir string) (*fstree.Entry, error) {
	if dir == "." || dir == "" {
		return fs.Root, nil
	}
	entry, err := fs.FindEntry(dir, false)
	if err != nil {
		return nil, err
	}
	if !entry.IsDir() {
		return nil, fmt.Errorf("parent %s is not a directory", dir)
	}
	return entry, nil
}
