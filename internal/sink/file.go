package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrUnsafePath is returned for relative paths that would leave the output directory.
var ErrUnsafePath = errors.New("unsafe path")

const (
	dirPerm  = 0750
	filePerm = 0644
)

// FileSink writes resources below a root directory, creating parent
// directories as needed. Files are written to a temporary name and renamed,
// so a concurrent emission of the same path never leaves a mixed file.
type FileSink struct {
	dir     string
	logger  *slog.Logger
	written atomic.Int64
}

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithFileLogger sets the logger. The default is slog.Default().
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileSink) {
		s.logger = logger
	}
}

// NewFileSink creates the directory dir and returns a sink writing into it.
func NewFileSink(dir string, opts ...FileOption) (*FileSink, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", abs, err)
	}

	s := &FileSink{dir: abs}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Dir returns the absolute output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Written returns the number of files written so far.
func (s *FileSink) Written() int64 {
	return s.written.Load()
}

// Emit writes content to <dir>/<path>.
func (s *FileSink) Emit(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.target(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := writeFileAtomic(target, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.written.Add(1)
	s.logger.Info("saved", "file", target, "bytes", len(content))
	return nil
}

// target maps a relative path to a file below dir.
func (s *FileSink) target(path string) (string, error) {
	local := filepath.FromSlash(path)
	if path == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, path)
	}
	return filepath.Join(s.dir, local), nil
}

func writeFileAtomic(target string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".onepage-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name()) //nolint:errcheck // best effort cleanup
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return err
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close() //nolint:errcheck // chmod error takes precedence
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
