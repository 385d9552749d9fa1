package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

type heldLock struct {
	token string
	file  *flock.Flock
}

// FileLocker uses advisory file locks under dir. The ttl is ignored: the
// OS drops the lock when the holding process exits.
type FileLocker struct {
	dir string

	mu   sync.Mutex
	held map[string]heldLock
}

func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{dir: dir, held: map[string]heldLock{}}
}

func (l *FileLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := checkArgs(key, ttl); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return "", false, nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(l.path(key))
	ok, err := fl.TryLock()
	if err != nil || !ok {
		return "", false, err
	}

	token := uuid.NewString()
	l.held[key] = heldLock{token: token, file: fl}
	return token, true, nil
}

func (l *FileLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.held[key]
	if !ok || h.token != token {
		return nil
	}
	delete(l.held, key)
	return h.file.Unlock()
}

func (l *FileLocker) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", string(filepath.Separator), "_").Replace(key)
	return filepath.Join(l.dir, name+".lock")
}

var _ Locker = (*FileLocker)(nil)
