// Package storage keeps uploaded milestone artifacts on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a stored file does not exist on disk
	ErrNotFound = errors.New("stored file not found")
	// ErrTooLarge is returned when an upload exceeds the configured limit
	ErrTooLarge = errors.New("upload exceeds size limit")
	// ErrInvalidPath is returned for paths that escape the storage root
	ErrInvalidPath = errors.New("invalid storage path")
)

const fallbackName = "file.bin"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SafeName reduces a client-supplied file name to its base name with every run
// of unsafe characters replaced by an underscore.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	safe := unsafeChars.ReplaceAllString(base, "_")
	if safe == "" || safe == "." || safe == ".." {
		return fallbackName
	}
	return safe
}

// LocalStore writes artifacts under Root as {project}/{milestone}/{kind}_{name}
type LocalStore struct {
	root   string
	logger *zap.Logger
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

// Root returns the absolute storage root
func (s *LocalStore) Root() string {
	return s.root
}

// Save streams r into the slot for (project, milestone, kind) and returns the
// path relative to Root. The file is written to a temporary name and renamed
// into place. Earlier files of the same kind in that slot are left on disk and
// returned as replaced, for the caller to Remove once the new path is recorded.
// maxBytes <= 0 disables the size limit.
func (s *LocalStore) Save(ctx context.Context, projectID, milestoneID int64, kind, filename string, r io.Reader, maxBytes int64) (rel string, replaced []string, err error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	dirRel := filepath.Join(strconv.FormatInt(projectID, 10), strconv.FormatInt(milestoneID, 10))
	dir := filepath.Join(s.root, dirRel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := kind + "_" + SafeName(filename)
	tmp := filepath.Join(dir, ".upload-"+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(tmp)
		return "", nil, fmt.Errorf("write upload: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(tmp)
		return "", nil, fmt.Errorf("close upload: %w", closeErr)
	case maxBytes > 0 && n > maxBytes:
		_ = os.Remove(tmp)
		return "", nil, ErrTooLarge
	}

	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", nil, fmt.Errorf("move upload into place: %w", err)
	}

	rel = filepath.ToSlash(filepath.Join(dirRel, name))
	s.logger.Debug("upload stored", zap.String("path", rel), zap.Int64("bytes", n))
	return rel, s.siblings(dirRel, kind, name), nil
}

// siblings lists other files of kind in dirRel, relative to Root
func (s *LocalStore) siblings(dirRel, kind, keep string) []string {
	entries, err := os.ReadDir(filepath.Join(s.root, dirRel))
	if err != nil {
		return nil
	}
	prefix := kind + "_"
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == keep || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		out = append(out, filepath.ToSlash(filepath.Join(dirRel, e.Name())))
	}
	return out
}

// Remove deletes stored files. Missing files are not an error.
func (s *LocalStore) Remove(rels ...string) error {
	var errs []error
	for _, rel := range rels {
		full, err := s.Resolve(rel)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("stored file removed", zap.String("path", rel))
	}
	return errors.Join(errs...)
}

// Resolve maps a stored relative path to an absolute path inside Root
func (s *LocalStore) Resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	within, err := filepath.Rel(s.root, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// Open opens a stored file for reading
func (s *LocalStore) Open(rel string) (*os.File, os.FileInfo, error) {
	full, err := s.Resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open stored file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat stored file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Wipe removes everything under Root and recreates it empty
func (s *LocalStore) Wipe() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("remove upload root: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("recreate upload root: %w", err)
	}
	s.logger.Info("upload root wiped", zap.String("root", s.root))
	return nil
}
