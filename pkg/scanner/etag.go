package scanner

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the multipart threshold and part size used when computing
// ETags, matching the S3 transfer default of 8 MiB. Files above this size
// are uploaded in parts and receive a composite ETag, so the local
// fingerprint must be computed the same way or every large file would look
// permanently out of date.
const ChunkSize = 8 * 1024 * 1024

// ETagFile computes the expected S3 ETag for the file at path.
//
// Single-part files (size <= ChunkSize) get the plain MD5 hex digest of
// their content. Larger files get the S3 multipart form: the MD5 of the
// concatenated per-part digests, suffixed with "-<parts>".
//
// The file is streamed in ChunkSize reads; memory use is bounded by one
// chunk regardless of file size.
func ETagFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return etagReader(f)
}

func etagReader(r io.Reader) (string, error) {
	var partDigests [][]byte

	buf := make([]byte, ChunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			sum := md5.Sum(buf[:n])
			partDigests = append(partDigests, sum[:])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	switch len(partDigests) {
	case 0:
		// Empty file: S3 stores the MD5 of zero bytes.
		sum := md5.Sum(nil)
		return hex.EncodeToString(sum[:]), nil
	case 1:
		return hex.EncodeToString(partDigests[0]), nil
	default:
		h := md5.New()
		for _, d := range partDigests {
			_, _ = h.Write(d)
		}
		return fmt.Sprintf("%s-%d", hex.EncodeToString(h.Sum(nil)), len(partDigests)), nil
	}
}
