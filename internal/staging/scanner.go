package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrFatalScan = errors.New("fatal_scan")

const readBatch = 64

// Scanner lazily yields the pairs of one staging directory. It is not restartable.
type Scanner struct {
	dir     string
	f       *os.File
	pending []FilePair
	err     error
	done    bool
}

// Open starts a scan of dir. An unreadable directory is reported as ErrFatalScan.
func Open(dir string) (*Scanner, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrFatalScan, dir, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrFatalScan, dir, err)
	}
	if !info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a directory", ErrFatalScan, dir)
	}
	return &Scanner{dir: dir, f: f}, nil
}

// Next returns the next pair, or false once the directory is exhausted or a read failed.
func (s *Scanner) Next() (FilePair, bool) {
	for len(s.pending) == 0 {
		if s.done {
			return FilePair{}, false
		}
		s.fill()
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	return p, true
}

// Err reports a read failure that ended the scan early.
func (s *Scanner) Err() error {
	return s.err
}

// Close releases the directory handle. Safe to call more than once.
func (s *Scanner) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.done = true
	return err
}

func (s *Scanner) fill() {
	if s.f == nil {
		s.done = true
		return
	}
	entries, err := s.f.ReadDir(readBatch)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if p, ok := NewFilePair(s.dir, e.Name()); ok {
			s.pending = append(s.pending, p)
		}
	}
	if err == nil {
		return
	}
	if !errors.Is(err, io.EOF) {
		s.err = fmt.Errorf("%w: read %s: %w", ErrFatalScan, s.dir, err)
	}
	_ = s.Close()
}
