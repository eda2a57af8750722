// Package integrity computes and verifies the per-file SHA-256 records
// stored in archive headers. Files are hashed whole and in fixed-size
// blocks so a consumer can verify incrementally read content.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// AlgorithmSHA256 is the only algorithm this package produces.
	AlgorithmSHA256 = "SHA256"

	// DefaultBlockSize matches the block size used by the reference
	// archive tooling.
	DefaultBlockSize = 4 * 1024 * 1024
)

// Record describes the expected hashes for one file: a whole-file digest
// plus one digest per blockSize-sized chunk, the last of which may cover a
// shorter tail.
type Record struct {
	Algorithm string   `json:"algorithm"`
	Hash      string   `json:"hash"`
	BlockSize int      `json:"blockSize"`
	Blocks    []string `json:"blocks"`
}

// MismatchError reports a digest mismatch. Block is the 0-based index of
// the failing block, or -1 when the whole-file hash differs.
type MismatchError struct {
	Block    int
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	if e.Block < 0 {
		return fmt.Sprintf("integrity check failed: file hash %s does not match expected %s", e.Actual, e.Expected)
	}
	return fmt.Sprintf("integrity check failed: block %d hash %s does not match expected %s", e.Block, e.Actual, e.Expected)
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compute builds a Record for data. blockSize must be positive; pass
// DefaultBlockSize unless the caller has a reason not to.
func Compute(data []byte, blockSize int) *Record {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	blocks := make([]string, 0, (len(data)+blockSize-1)/blockSize)
	for off := 0; off < len(data); off += blockSize {
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		blocks = append(blocks, digest(data[off:end]))
	}
	// A zero-length file still carries one block hash: the digest of the
	// empty input.
	if len(blocks) == 0 {
		blocks = append(blocks, digest(nil))
	}

	return &Record{
		Algorithm: AlgorithmSHA256,
		Hash:      digest(data),
		BlockSize: blockSize,
		Blocks:    blocks,
	}
}

// Verify checks data against rec. A record naming an algorithm other than
// SHA256 passes without any checking; the allowance exists so archives
// written with a future algorithm still open.
func Verify(data []byte, rec *Record) error {
	if rec == nil {
		return nil
	}
	if !strings.EqualFold(rec.Algorithm, AlgorithmSHA256) {
		return nil
	}

	if actual := digest(data); !strings.EqualFold(actual, rec.Hash) {
		return &MismatchError{Block: -1, Expected: strings.ToLower(rec.Hash), Actual: actual}
	}

	blockSize := rec.BlockSize
	if blockSize <= 0 {
		return fmt.Errorf("invalid integrity block size %d", blockSize)
	}
	for i, expected := range rec.Blocks {
		off := i * blockSize
		if off > len(data) {
			off = len(data)
		}
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		if actual := digest(data[off:end]); !strings.EqualFold(actual, expected) {
			return &MismatchError{Block: i, Expected: strings.ToLower(expected), Actual: actual}
		}
	}
	return nil
}
