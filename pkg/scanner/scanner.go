// Package scanner walks a local site tree and produces upload candidates.
//
// Each regular file under the root becomes a LocalObject carrying its
// bucket key (slash-separated relative path), content fingerprint, size,
// and media type. Traversal order is lexical and therefore deterministic,
// which keeps reconciliation plans reproducible across runs.
package scanner

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/3leaps/weblift/pkg/match"
)

// defaultContentType is used when the media type cannot be derived from
// the file extension.
const defaultContentType = "text/plain"

// LocalObject is one file of the site tree, ready for reconciliation.
type LocalObject struct {
	// Key is the bucket key: the POSIX-style path relative to the root.
	Key string

	// Path is the absolute filesystem path, used at upload time.
	Path string

	// Size is the file size in bytes at scan time.
	Size int64

	// ETag is the expected S3 entity tag of the content (see ETagFile).
	ETag string

	// ContentType is the media type derived from the file extension.
	ContentType string
}

// Scanner walks a root directory and streams LocalObjects.
//
// A Scanner is restartable: Scan can be called any number of times and
// walks the tree fresh each call.
type Scanner struct {
	root    string
	matcher *match.Matcher
	logger  *zap.Logger

	// warnings counts files skipped because they became unreadable
	// mid-walk. Reset on every Scan.
	warnings int
}

// New creates a Scanner over root.
//
// The root is resolved to an absolute path with symlinks and ".."
// components eliminated. The matcher scopes which files are scanned;
// pass a default matcher to exclude only hidden files.
func New(root string, matcher *match.Matcher, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, &fs.PathError{Op: "scan", Path: root, Err: fs.ErrInvalid}
	}

	return &Scanner{root: resolved, matcher: matcher, logger: logger}, nil
}

// Root returns the resolved root directory.
func (s *Scanner) Root() string {
	return s.root
}

// Warnings returns the number of files skipped as unreadable during the
// most recent Scan.
func (s *Scanner) Warnings() int {
	return s.warnings
}

// Scan walks the tree and calls fn for every in-scope file, in lexical
// order. Returning an error from fn aborts the walk.
//
// Files that disappear or become unreadable between the directory listing
// and the hash read are logged and skipped; a mid-deploy editor save
// should not kill the whole run. Context cancellation aborts the walk.
func (s *Scanner) Scan(ctx context.Context, fn func(LocalObject) error) error {
	s.warnings = 0

	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				s.warn("directory unreadable, skipping subtree", path, err)
				return fs.SkipDir
			}
			s.warn("path unreadable, skipping", path, err)
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		if !s.matcher.Match(key) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.warn("stat failed, skipping", path, err)
			return nil
		}

		etag, err := ETagFile(path)
		if err != nil {
			s.warn("read failed, skipping", path, err)
			return nil
		}

		return fn(LocalObject{
			Key:         key,
			Path:        path,
			Size:        info.Size(),
			ETag:        etag,
			ContentType: contentTypeFor(key),
		})
	})
}

// Objects walks the tree and collects all in-scope files.
func (s *Scanner) Objects(ctx context.Context) ([]LocalObject, error) {
	var objects []LocalObject
	err := s.Scan(ctx, func(obj LocalObject) error {
		objects = append(objects, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (s *Scanner) warn(msg, path string, err error) {
	s.warnings++
	s.logger.Warn(msg, zap.String("path", path), zap.Error(err))
}

// contentTypeFor derives the media type from the key's extension.
func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return defaultContentType
}
