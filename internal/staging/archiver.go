package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/smallbiznis/datasync/internal/config"
	"go.uber.org/zap"
)

var ErrArchive = errors.New("archive_failed")

type Outcome string

const (
	OutcomePassed Outcome = "Passed"
	OutcomeFailed Outcome = "Failed"
)

// Archiver moves finished pairs out of the staging directory.
type Archiver struct {
	processedDir  string
	quarantineDir string
	log           *zap.Logger

	rename func(oldpath, newpath string) error
}

func NewArchiver(cfg config.Config, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{
		processedDir:  cfg.Staging.ProcessedDir,
		quarantineDir: cfg.Staging.QuarantineDir,
		log:           log.Named("archiver"),
		rename:        os.Rename,
	}
}

// Archive moves both files of a passed pair into the processed directory.
// A failed pair stays in staging unless a quarantine directory is configured.
func (a *Archiver) Archive(ctx context.Context, pair FilePair, outcome Outcome) error {
	if outcome != OutcomePassed {
		if a.quarantineDir == "" {
			return nil
		}
		return a.Quarantine(ctx, pair)
	}

	if err := os.MkdirAll(a.processedDir, 0o755); err != nil {
		return fmt.Errorf("%w: create processed dir: %w", ErrArchive, err)
	}

	dataDst := filepath.Join(a.processedDir, filepath.Base(pair.DataPath))
	binDst := filepath.Join(a.processedDir, filepath.Base(pair.BinaryPath))

	if err := a.move(pair.DataPath, dataDst); err != nil {
		return fmt.Errorf("%w: move %s: %w", ErrArchive, pair.DataPath, err)
	}
	if err := a.move(pair.BinaryPath, binDst); err != nil {
		if rbErr := a.move(dataDst, pair.DataPath); rbErr != nil {
			a.log.Error("archive rollback failed, data file left in processed dir",
				zap.String("pair", pair.Name),
				zap.String("path", dataDst),
				zap.Error(rbErr),
			)
		}
		return fmt.Errorf("%w: move %s: %w", ErrArchive, pair.BinaryPath, err)
	}
	return nil
}

// Quarantine moves whatever files of pair still exist into the quarantine directory.
func (a *Archiver) Quarantine(_ context.Context, pair FilePair) error {
	if a.quarantineDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.quarantineDir, 0o755); err != nil {
		return fmt.Errorf("%w: create quarantine dir: %w", ErrArchive, err)
	}

	var errs []error
	for _, src := range pair.Files() {
		if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := a.move(src, filepath.Join(a.quarantineDir, filepath.Base(src))); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: quarantine %s: %w", ErrArchive, pair.Name, err)
	}
	a.log.Info("pair quarantined", zap.String("pair", pair.Name), zap.String("dir", a.quarantineDir))
	return nil
}

func (a *Archiver) move(src, dst string) error {
	err := a.rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return copyAndRemove(src, dst)
}

// copyAndRemove handles moves across filesystems.
func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
