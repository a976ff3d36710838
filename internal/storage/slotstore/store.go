package slotstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/pkg/crypto/adaptive"
)

// Engine names accepted by New.
const (
	EngineFile   = "file"
	EngineBadger = "badger"
	EngineSQLite = "sqlite"
)

// DefaultExtension is the file extension of slot files.
const DefaultExtension = ".wsav"

const maxNameLength = 200

// Entry describes a stored slot without reading it.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a named blob store for slot files. Implementations are safe for
// concurrent use.
type Store interface {
	// List returns the names of all stored slots in lexical order.
	List(ctx context.Context) ([]string, error)
	// Open returns a reader over the named slot. It returns
	// domain.ErrSlotNotFound when the slot does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Write atomically replaces the named slot.
	Write(ctx context.Context, name string, data []byte) error
	// Delete removes the named slot. Deleting a missing slot is not an error.
	Delete(ctx context.Context, name string) error
	// Stat describes the named slot.
	Stat(ctx context.Context, name string) (Entry, error)
	// Close releases the backend.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Engine    string
	Dir       string
	Extension string

	Badger BadgerConfig

	// Key enables sealing when set; see SealedStore.
	Key    []byte
	Cipher adaptive.CipherType

	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// New opens the backend named by opts.Engine, sealed when opts.Key is
// set.
func New(opts Options) (Store, error) {
	var s Store
	switch opts.Engine {
	case "", EngineFile:
		fs, err := NewFileStore(opts.Dir, opts.Extension, opts.Logger)
		if err != nil {
			return nil, err
		}
		s = fs
	case EngineBadger:
		bs, err := NewBadgerStore(opts.Dir, opts.Badger, opts.Logger)
		if err != nil {
			return nil, err
		}
		if opts.Registry != nil {
			bs.RegisterMetrics(opts.Registry)
		}
		s = bs
	case EngineSQLite:
		ss, err := NewSQLiteStore(opts.Dir, opts.Logger)
		if err != nil {
			return nil, err
		}
		s = ss
	default:
		return nil, fmt.Errorf("slotstore: unknown engine %q", opts.Engine)
	}

	if len(opts.Key) == 0 {
		return s, nil
	}
	sealed, err := NewSealedStore(s, opts.Key, opts.Cipher)
	if err != nil {
		s.Close()
		return nil, err
	}
	return sealed, nil
}

// Unwrap returns the backend beneath any SealedStore layers.
func Unwrap(s Store) Store {
	for {
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return s
		}
		s = u.Unwrap()
	}
}

// ValidateName rejects names that cannot be used as a slot key on every
// backend.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return domain.ErrInvalidSlot.WithDetails("%q", name)
	case len(name) > maxNameLength:
		return domain.ErrInvalidSlot.WithDetails("name longer than %d bytes", maxNameLength)
	case strings.ContainsAny(name, "/\\\x00"):
		return domain.ErrInvalidSlot.WithDetails("%q contains a path separator", name)
	}
	return nil
}

// Prune deletes all but the keep most recently modified slots for which
// match returns true. A nil match selects every slot. It returns the names
// it removed.
func Prune(ctx context.Context, s Store, keep int, match func(string) bool) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, name := range names {
		if match != nil && !match(name) {
			continue
		}
		e, err := s.Stat(ctx, name)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) <= keep {
		return nil, nil
	}

	// Newest first; ties fall back to name so the result is stable.
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})

	var removed []string
	for _, e := range entries[keep:] {
		if err := s.Delete(ctx, e.Name); err != nil {
			return removed, err
		}
		removed = append(removed, e.Name)
	}
	return removed, nil
}
