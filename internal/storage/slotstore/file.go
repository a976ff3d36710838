package slotstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yndnr/worldsave/internal/core/domain"
)

const tempSuffix = ".tmp"

// FileStore keeps one file per slot in a directory.
type FileStore struct {
	dir    string
	ext    string
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed. An empty ext means
// DefaultExtension.
func NewFileStore(dir, ext string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("slotstore: dir is required")
	}
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("slotstore: create dir: %w", err)
	}
	return &FileStore{dir: dir, ext: ext, logger: logger}, nil
}

// Dir returns the slot directory.
func (s *FileStore) Dir() string { return s.dir }

// Extension returns the slot file extension, including the dot.
func (s *FileStore) Extension() string { return s.ext }

// Path returns the file path of the named slot.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+s.ext)
}

// SlotName returns the slot name for a file path, or false if the path is
// not a slot file of this store.
func (s *FileStore) SlotName(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, s.ext) {
		return "", false
	}
	name := strings.TrimSuffix(base, s.ext)
	if ValidateName(name) != nil {
		return "", false
	}
	return name, true
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("slotstore: read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := s.SlotName(e.Name()); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *FileStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrSlotNotFound.WithDetails("%s", name)
		}
		return nil, fmt.Errorf("slotstore: open %s: %w", name, err)
	}
	return f, nil
}

// Write writes data to a temp file in the same directory, syncs it and
// renames it over the slot file.
func (s *FileStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+"-*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("slotstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("slotstore: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("slotstore: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("slotstore: close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, s.Path(name)); err != nil {
		return fmt.Errorf("slotstore: rename %s: %w", name, err)
	}

	s.logger.Debug("slot written", "slot", name, "bytes", len(data))
	return nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("slotstore: delete %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) Stat(ctx context.Context, name string) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}
	st, err := os.Stat(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, domain.ErrSlotNotFound.WithDetails("%s", name)
		}
		return Entry{}, fmt.Errorf("slotstore: stat %s: %w", name, err)
	}
	return Entry{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error { return nil }
