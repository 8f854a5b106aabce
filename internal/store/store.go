// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/pkgchan/pkgchan/internal/fetch"
	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

const (
	receiptsDir = ".receipts"
	tmpDir      = ".tmp"
)

// ErrNotInStore is returned when an identity has no committed entry.
var ErrNotInStore = errors.New("not in store")

type (
	// Store is a directory of committed build outputs. It is safe for
	// concurrent use by multiple builds.
	Store struct {
		root   string
		logger *log.Logger
		now    func() time.Time
	}

	// Option configures a Store.
	Option func(*Store)

	// Receipt records how a store entry was produced.
	Receipt struct {
		Name    string                 `toml:"name"`
		Version string                 `toml:"version"`
		BuildID string                 `toml:"build_id"`
		BuiltAt time.Time              `toml:"built_at"`
		Source  string                 `toml:"source"`
		Inputs  []recipe.ResolvedInput `toml:"inputs,omitempty"`
		Files   []string               `toml:"files"`
		NarHash string                 `toml:"nar_hash"`
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used for receipts.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates the store layout under root if needed.
func Open(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store dir: %w", err)
	}
	s := &Store{root: abs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	for _, dir := range []string{abs, filepath.Join(abs, receiptsDir), filepath.Join(abs, tmpDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store: %w", err)
		}
	}
	return s, nil
}

// Root returns the absolute store directory.
func (s *Store) Root() string { return s.root }

// Path returns the entry directory for id, whether or not it exists.
func (s *Store) Path(id recipe.Identity) string {
	return filepath.Join(s.root, id.Dirname())
}

func (s *Store) receiptPath(id recipe.Identity) string {
	return filepath.Join(s.root, receiptsDir, id.Dirname()+".toml")
}

// Has reports whether id is committed.
func (s *Store) Has(id recipe.Identity) bool {
	if _, err := os.Stat(s.receiptPath(id)); err != nil {
		return false
	}
	info, err := os.Stat(s.Path(id))
	return err == nil && info.IsDir()
}

// TempDir returns a fresh, not yet created, path under the store's .tmp dir.
// Staying on the store's filesystem keeps Commit a rename.
func (s *Store) TempDir() string {
	return filepath.Join(s.root, tmpDir, uuid.NewString())
}

// Commit moves the output tree at tmp into the entry for id and records the
// receipt. BuiltAt and NarHash are filled in. If id is already committed, tmp
// is discarded and the existing entry is kept.
func (s *Store) Commit(id recipe.Identity, tmp string, receipt Receipt) (string, error) {
	dest := s.Path(id)
	if s.Has(id) {
		_ = os.RemoveAll(tmp)
		return dest, nil
	}

	hash, err := fetch.NarHash(tmp)
	if err != nil {
		return "", err
	}
	receipt.Name, receipt.Version = id.Name, id.Version
	receipt.BuiltAt = s.now().UTC()
	receipt.NarHash = hash.String()
	data, err := toml.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("encoding receipt: %w", err)
	}

	// A tree without a receipt is a leftover from an interrupted commit.
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("committing %s: %w", id, err)
	}
	if err := writeAtomic(s.receiptPath(id), data); err != nil {
		return "", fmt.Errorf("writing receipt for %s: %w", id, err)
	}
	s.logger.Info("committed to store", "recipe", id.String(), "path", dest, "nar_hash", receipt.NarHash)
	return dest, nil
}

// Receipt reads the receipt of a committed entry.
func (s *Store) Receipt(id recipe.Identity) (*Receipt, error) {
	data, err := os.ReadFile(s.receiptPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotInStore, id)
		}
		return nil, err
	}
	var r Receipt
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding receipt for %s: %w", id, err)
	}
	return &r, nil
}

// List returns the receipts of all committed entries sorted by name and version.
func (s *Store) List() ([]Receipt, error) {
	des, err := os.ReadDir(filepath.Join(s.root, receiptsDir))
	if err != nil {
		return nil, err
	}
	var out []Receipt
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".toml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, receiptsDir, de.Name()))
		if err != nil {
			return nil, err
		}
		var r Receipt
		if err := toml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding receipt %s: %w", de.Name(), err)
		}
		if s.Has(recipe.Identity{Name: r.Name, Version: r.Version}) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Receipt) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return recipe.CompareVersions(a.Version, b.Version)
	})
	return out, nil
}

// Remove deletes the entry for id. Removing an absent entry is not an error.
func (s *Store) Remove(id recipe.Identity) error {
	if err := os.Remove(s.receiptPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.RemoveAll(s.Path(id))
}

// Clean removes leftover in-progress outputs.
func (s *Store) Clean() error {
	des, err := os.ReadDir(filepath.Join(s.root, tmpDir))
	if err != nil {
		return err
	}
	for _, de := range des {
		if err := os.RemoveAll(filepath.Join(s.root, tmpDir, de.Name())); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".receipt-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
