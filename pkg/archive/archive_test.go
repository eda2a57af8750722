package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packfs/asar/pkg/common"
	"github.com/packfs/asar/pkg/integrity"
	"github.com/packfs/asar/pkg/pickle"
)

// writeArchive frames headerJSON and appends data, producing a complete
// container on disk.
func writeArchive(t *testing.T, headerJSON string, data []byte) string {
	t.Helper()

	headerWriter := pickle.NewWriter()
	headerWriter.WriteString(headerJSON)
	headerFrame := headerWriter.Bytes()

	sizeWriter := pickle.NewWriter()
	sizeWriter.WriteUint32(uint32(len(headerFrame)))

	var blob []byte
	blob = append(blob, sizeWriter.Bytes()...)
	blob = append(blob, headerFrame...)
	blob = append(blob, data...)

	path := filepath.Join(t.TempDir(), "test.asar")
	require.NoError(t, os.WriteFile(path, blob, 0644))
	return path
}

func helloArchive(t *testing.T) string {
	t.Helper()

	content := []byte("Hello, World!")
	rec := integrity.Compute(content, integrity.DefaultBlockSize)
	recJSON, err := json.Marshal(rec)
	require.NoError(t, err)

	header := fmt.Sprintf(`{
		"files": {
			"docs": {
				"files": {
					"readme.txt": {
						"unpacked": false,
						"executable": false,
						"offset": "0",
						"size": 13,
						"integrity": %s
					}
				}
			}
		}
	}`, recJSON)

	return writeArchive(t, header, content)
}

func TestOpenAndReadFile(t *testing.T) {
	path := helloArchive(t)
	defer Uncache(path)

	a, err := Open(path)
	require.NoError(t, err)

	names, err := a.ListFiles("", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "docs/readme.txt"}, names)

	data, err := a.ReadFile("docs/readme.txt", true)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, World!"), data)
}

func TestReadFileNotAFile(t *testing.T) {
	path := helloArchive(t)
	defer Uncache(path)

	a, err := Open(path)
	require.NoError(t, err)

	_, err = a.ReadFile("docs", true)
	assert.ErrorIs(t, err, common.ErrNotAFile)

	_, err = a.ReadFile("docs/missing.txt", true)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReadFileIntegrityFailure(t *testing.T) {
	content := []byte("Hello, World!")
	rec := integrity.Compute(content, integrity.DefaultBlockSize)
	recJSON, err := json.Marshal(rec)
	require.NoError(t, err)

	// Header hashes the original content but the archive carries a
	// corrupted byte.
	corrupted := append([]byte(nil), content...)
	corrupted[0] ^= 0xff

	header := fmt.Sprintf(`{"files":{"a.txt":{"unpacked":false,"executable":false,"offset":"0","size":13,"integrity":%s}}}`, recJSON)
	path := writeArchive(t, header, corrupted)
	defer Uncache(path)

	a, err := Open(path)
	require.NoError(t, err)

	_, err = a.ReadFile("a.txt", true)
	require.Error(t, err)
	var mismatch *integrity.MismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestReadFileShortRead(t *testing.T) {
	// Header declares more bytes than the archive holds.
	header := `{"files":{"big.bin":{"unpacked":false,"executable":false,"offset":"0","size":1024}}}`
	path := writeArchive(t, header, []byte("tiny"))
	defer Uncache(path)

	a, err := Open(path)
	require.NoError(t, err)

	_, err = a.ReadFile("big.bin", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short read")
	assert.Contains(t, err.Error(), "big.bin")
}

func TestOpenInvalidArchive(t *testing.T) {
	dir := t.TempDir()

	// Too short for the first framing field.
	short := filepath.Join(dir, "short.asar")
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0644))
	_, err := Open(short)
	assert.ErrorIs(t, err, common.ErrInvalidArchive)

	// Valid size frame, truncated header frame.
	w := pickle.NewWriter()
	w.WriteUint32(500)
	truncated := filepath.Join(dir, "truncated.asar")
	require.NoError(t, os.WriteFile(truncated, w.Bytes(), 0644))
	_, err = Open(truncated)
	assert.ErrorIs(t, err, common.ErrInvalidArchive)
}

func TestOpenMalformedHeaderJSON(t *testing.T) {
	path := writeArchive(t, `{"files":{"bad":{"offset":"zero","size":1}}}`, nil)
	defer Uncache(path)

	_, err := Open(path)
	assert.ErrorIs(t, err, common.ErrMalformedEntry)
}

func TestUnpackedFile(t *testing.T) {
	content := []byte("lives outside")
	header := fmt.Sprintf(`{"files":{"ext.txt":{"unpacked":true,"executable":false,"offset":"0","size":%d}}}`, len(content))
	path := writeArchive(t, header, nil)
	defer Uncache(path)

	require.NoError(t, os.MkdirAll(path+".unpacked", 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path+".unpacked", "ext.txt"), content, 0644))

	a, err := Open(path)
	require.NoError(t, err)

	data, err := a.ReadFile("ext.txt", true)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestCacheMemoizesByPath(t *testing.T) {
	path := helloArchive(t)

	cache := NewCache()
	a1, err := cache.Open(path)
	require.NoError(t, err)
	a2, err := cache.Open(path)
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	cache.Uncache(path)
	a3, err := cache.Open(path)
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)

	cache.UncacheAll()
	a4, err := cache.Open(path)
	require.NoError(t, err)
	assert.NotSame(t, a3, a4)

	// Uncaching unknown paths is a no-op.
	cache.Uncache("/no/such/archive")
	cache.UncacheAll()
	cache.UncacheAll()
}

func TestCacheConcurrentOpens(t *testing.T) {
	path := helloArchive(t)
	cache := NewCache()

	results := make(chan *Archive, 16)
	for i := 0; i < 16; i++ {
		go func() {
			a, err := cache.Open(path)
			assert.NoError(t, err)
			results <- a
		}()
	}

	first := <-results
	for i := 1; i < 16; i++ {
		assert.Same(t, first, <-results)
	}
}
