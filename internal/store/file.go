package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/99souls/routingcore/internal/routererr"
)

// FileStore is a Store backed by a directory tree, one file per path. It
// additionally supports watching a path for external changes via
// fsnotify, diffed by SHA-256 content hash rather than mtime — the same
// checksum-diff approach engine/internal/runtime.HotReloadSystem uses to
// decide whether a config file rewrite actually changed anything before
// firing a reload.
type FileStore struct {
	baseDir string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching bool
}

// NewFileStore roots a FileStore at baseDir, creating it if absent.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, routererr.Wrap(routererr.IOError, "create store base dir", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) resolve(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", routererr.New(routererr.InvalidArgument, "path must not contain ..")
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(path)), nil
}

func (s *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, routererr.Wrapf(routererr.NotFound, err, "store path %q not found", path)
		}
		return nil, routererr.Wrapf(routererr.IOError, err, "read %q", path)
	}
	return data, nil
}

func (s *FileStore) Write(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return routererr.Wrapf(routererr.IOError, err, "create parent dir for %q", path)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return routererr.Wrapf(routererr.IOError, err, "write %q", path)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := filepath.Join(s.baseDir, filepath.FromSlash(prefix))
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, routererr.Wrapf(routererr.IOError, err, "list %q", prefix)
	}
	return out, nil
}

// Change describes one watched path's content changing, carrying the new
// checksum so callers can tell a real rewrite from a touch.
type Change struct {
	Path     string
	Checksum string
}

// Watch starts watching path (relative to baseDir) for writes, emitting a
// Change only when the file's SHA-256 checksum actually differs from the
// last observed value. The returned channel is closed when ctx is done or
// Close is called.
func (s *FileStore) Watch(ctx context.Context, path string) (<-chan Change, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			s.mu.Unlock()
			return nil, routererr.Wrap(routererr.IOError, "create file watcher", err)
		}
		s.watcher = w
	}
	if err := s.watcher.Add(filepath.Dir(full)); err != nil {
		s.mu.Unlock()
		return nil, routererr.Wrapf(routererr.IOError, err, "watch dir for %q", path)
	}
	s.watching = true
	watcher := s.watcher
	s.mu.Unlock()

	out := make(chan Change, 4)
	go func() {
		defer close(out)
		last := checksumFile(full)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != full {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				sum := checksumFile(full)
				if sum != last {
					last = sum
					out <- Change{Path: path, Checksum: sum}
				}
			case <-watcher.Errors:
				// best-effort: dropped watcher errors do not terminate the stream
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func checksumFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Close releases the underlying fsnotify watcher, if one was started.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
