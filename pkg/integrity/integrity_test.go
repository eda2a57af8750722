package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomContent(size int) []byte {
	content := make([]byte, size)
	rand.Read(content)
	return content
}

func TestComputeBlockCount(t *testing.T) {
	blockSize := 4 * 1024 * 1024
	data := randomContent(9 * 1024 * 1024)

	rec := Compute(data, blockSize)
	require.Len(t, rec.Blocks, 3)
	assert.Equal(t, AlgorithmSHA256, rec.Algorithm)
	assert.Equal(t, blockSize, rec.BlockSize)

	// 4MB, 4MB, 1MB chunks in order.
	sum := sha256.Sum256(data[:blockSize])
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Blocks[0])
	sum = sha256.Sum256(data[blockSize : 2*blockSize])
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Blocks[1])
	sum = sha256.Sum256(data[2*blockSize:])
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Blocks[2])
}

func TestVerifyPasses(t *testing.T) {
	data := randomContent(9 * 1024 * 1024)
	rec := Compute(data, 4*1024*1024)
	assert.NoError(t, Verify(data, rec))
}

func TestVerifyCorruptFinalBlock(t *testing.T) {
	blockSize := 4 * 1024 * 1024
	data := randomContent(9 * 1024 * 1024)
	rec := Compute(data, blockSize)

	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-1] ^= 0xff

	err := Verify(corrupted, rec)
	require.Error(t, err)

	// The whole-file hash differs too, and is reported first.
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, -1, mismatch.Block)

	// Re-verify with a matching whole-file hash to reach block checking:
	// only the final block should be named.
	rec.Hash = hex.EncodeToString(sha256sum(corrupted))
	err = Verify(corrupted, rec)
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 2, mismatch.Block)
}

func sha256sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func TestVerifyCaseInsensitiveHex(t *testing.T) {
	data := []byte("Hello, World!")
	rec := Compute(data, DefaultBlockSize)
	rec.Hash = strings.ToUpper(rec.Hash)
	for i := range rec.Blocks {
		rec.Blocks[i] = strings.ToUpper(rec.Blocks[i])
	}
	assert.NoError(t, Verify(data, rec))
}

func TestVerifyUnsupportedAlgorithmIsNoOp(t *testing.T) {
	// Deliberate pass-through, not an oversight: unknown algorithms skip
	// verification entirely so newer archives still open.
	rec := &Record{
		Algorithm: "BLAKE3",
		Hash:      "definitely-not-a-real-hash",
		BlockSize: 1,
		Blocks:    []string{"nope"},
	}
	assert.NoError(t, Verify([]byte("anything at all"), rec))
}

func TestVerifyNilRecord(t *testing.T) {
	assert.NoError(t, Verify([]byte("data"), nil))
}

func TestVerifyEmptyFile(t *testing.T) {
	rec := Compute(nil, DefaultBlockSize)
	require.Len(t, rec.Blocks, 1)
	assert.NoError(t, Verify(nil, rec))
}
