package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/smallbiznis/datasync/internal/counter/domain"
)

const defaultLockRetry = 10 * time.Millisecond

// FileStore keeps counters in a flat key=value file shared with other
// configuration keys. Every allocation rewrites the counter's own line
// under an advisory lock so separate processes never interleave.
type FileStore struct {
	mu        sync.Mutex
	path      string
	lock      *flock.Flock
	lockRetry time.Duration
}

// NewFileStore returns a store backed by path. The file is created on first allocation.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("counter file path is required")
	}
	return &FileStore{
		path:      path,
		lock:      flock.New(path + ".lock"),
		lockRetry: defaultLockRetry,
	}, nil
}

// Path returns the counter file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Next(ctx context.Context, name string) (string, error) {
	if !domain.Known(name) {
		return "", domain.Wrap(name, domain.ErrUnknownCounter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", domain.Wrap(name, err)
	}
	locked, err := s.lock.TryLockContext(ctx, s.lockRetry)
	if err != nil {
		return "", domain.Wrap(name, fmt.Errorf("lock counter file: %w", err))
	}
	if !locked {
		return "", domain.Wrap(name, errors.New("counter file lock not acquired"))
	}
	defer func() { _ = s.lock.Unlock() }()

	file, err := s.read()
	if err != nil {
		return "", domain.Wrap(name, err)
	}
	current, err := domain.Parse(file.values[name])
	if err != nil {
		return "", domain.Wrap(name, err)
	}

	next := domain.Format(name, current+1)
	file.set(name, next)
	if err := s.write(file.render()); err != nil {
		return "", domain.Wrap(name, err)
	}
	return next, nil
}

// Snapshot returns the stored value of every managed counter.
func (s *FileStore) Snapshot() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(domain.Names))
	for _, n := range domain.Names {
		v, err := domain.Parse(file.values[n])
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

// counterFile is the file split into lines. Only lines holding a counter
// are ever rewritten; every other line is written back byte for byte.
type counterFile struct {
	lines  []string
	index  map[string]int
	values map[string]string
}

func (s *FileStore) read() (*counterFile, error) {
	file := &counterFile{index: map[string]int{}, values: map[string]string{}}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read counter file: %w", err)
	}

	text := strings.TrimSuffix(string(raw), "\n")
	if text != "" {
		file.lines = strings.Split(text, "\n")
	}
	for i, line := range file.lines {
		key := lineKey(line)
		if !domain.Known(key) {
			continue
		}
		parsed, err := godotenv.Unmarshal(strings.TrimSuffix(line, "\r"))
		if err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", key, err)
		}
		file.index[key] = i
		file.values[key] = parsed[key]
	}
	return file, nil
}

func (f *counterFile) set(name, value string) {
	line := name + "=" + value
	if i, ok := f.index[name]; ok {
		f.lines[i] = line
	} else {
		f.index[name] = len(f.lines)
		f.lines = append(f.lines, line)
	}
	f.values[name] = value
}

func (f *counterFile) render() string {
	return strings.Join(f.lines, "\n") + "\n"
}

// lineKey returns the key of a KEY=value or KEY: value line, or "" for
// comments and blank lines.
func lineKey(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	line = strings.TrimPrefix(line, "export ")
	end := strings.IndexAny(line, "=:")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(line[:end])
}

// write replaces the file via a synced temp file and rename.
func (s *FileStore) write(content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp counter file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write counter file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync counter file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close counter file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace counter file: %w", err)
	}
	return nil
}

var _ domain.Allocator = (*FileStore)(nil)
