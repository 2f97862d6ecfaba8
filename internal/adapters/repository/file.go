package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

const fileExt = ".json"

// Most filesystems cap a path component at 255 bytes. Longer segments are
// stored under a readable prefix plus the sha256 of the whole segment.
const (
	maxSegmentBytes  = 200
	hashedPrefixSize = 100
)

// FileStore keeps one file per document under a root directory.
// Commits go through a temp file in the target directory followed by
// fsync and rename, so a reader sees either the old or the new payload.
type FileStore struct {
	root   string
	opts   options
	closed atomic.Bool
}

// NewFileStore returns a file-backed store rooted at root, creating it if needed.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	if root == "" {
		root = "data"
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(root, o.dirMode); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{root: root, opts: o}, nil
}

// Root returns the directory documents are stored under.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) pathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = fileSegment(seg)
	}
	p := filepath.Join(s.root, filepath.Join(segs...)) + fileExt
	rel, err := filepath.Rel(s.root, p)
	if err != nil || !filepath.IsLocal(rel) {
		return "", ErrInvalidKey
	}
	return p, nil
}

// fileSegment returns seg unchanged when it fits in a file name, and a
// bounded, collision-resistant name otherwise.
func fileSegment(seg string) string {
	if len(seg) <= maxSegmentBytes {
		return seg
	}
	sum := sha256.Sum256([]byte(seg))
	return seg[:hashedPrefixSize] + "~" + hex.EncodeToString(sum[:])
}

func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Commit(ctx context.Context, key string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, s.opts.dirMode); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if !s.opts.noSync {
		if err := tmp.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", key, err)
		}
	}
	if err := tmp.Chmod(s.opts.fileMode); err != nil {
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	committed = true

	if !s.opts.noSync {
		syncDir(dir)
	}
	return nil
}

// syncDir makes the rename durable. Not every platform supports fsync on
// a directory; failures are ignored since the rename itself already happened.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}
