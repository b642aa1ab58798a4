package scanner

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestETagFileSinglePart(t *testing.T) {
	dir := t.TempDir()
	data := []byte("<html>hello</html>")
	path := writeFile(t, dir, "index.html", data)

	got, err := ETagFile(path)
	require.NoError(t, err)

	sum := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestETagFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", nil)

	got, err := ETagFile(path)
	require.NoError(t, err)

	// MD5 of zero bytes, matching what S3 stores for empty objects.
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", got)
}

func TestETagReaderMultipart(t *testing.T) {
	// Two full chunks plus a remainder: expect a composite "-3" ETag.
	data := bytes.Repeat([]byte{0xAB}, 2*ChunkSize+100)

	got, err := etagReader(bytes.NewReader(data))
	require.NoError(t, err)

	h := md5.New()
	for start := 0; start < len(data); start += ChunkSize {
		end := start + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		sum := md5.Sum(data[start:end])
		h.Write(sum[:])
	}
	want := fmt.Sprintf("%s-3", hex.EncodeToString(h.Sum(nil)))
	assert.Equal(t, want, got)
}

func TestETagReaderBoundaryIsSinglePart(t *testing.T) {
	// Exactly one chunk stays single-part (no "-1" suffix).
	data := bytes.Repeat([]byte{0x01}, ChunkSize)

	got, err := etagReader(bytes.NewReader(data))
	require.NoError(t, err)

	sum := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
	assert.NotContains(t, got, "-")
}
