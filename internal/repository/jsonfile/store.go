// Package jsonfile keeps account records in a single JSON array file.
//
// Every operation reads the whole file, mutates the slice in memory and
// writes it back. Writes go through a temporary file and a rename so a crash
// never leaves a half-written store behind. A mutex serializes
// read-modify-write cycles within the process; separate processes sharing
// the file are not coordinated.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"course-auth/internal/domain"
	"course-auth/internal/repository"
)

type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store backed by path and makes sure its directory exists.
func New(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.EnsureDir(); err != nil {
		return nil, err
	}
	return s, nil
}

var _ repository.AccountStore = (*Store)(nil)

func (s *Store) Path() string {
	return s.path
}

// EnsureDir creates the directory containing the store file. An existing
// directory is not an error.
func (s *Store) EnsureDir() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create store dir: %w", repository.ErrStorage, err)
	}
	return nil
}

// ReadAll returns every record in file order, or an empty slice when the file
// does not exist yet.
func (s *Store) ReadAll() ([]domain.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.Account{}, nil
		}
		return nil, fmt.Errorf("%w: read store: %w", repository.ErrStorage, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Account{}, nil
	}

	var accounts []domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("%w: decode store: %w", repository.ErrStorage, err)
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

// WriteAll replaces the file contents with accounts.
func (s *Store) WriteAll(accounts []domain.Account) error {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode store: %w", repository.ErrStorage, err)
	}

	if err := s.EnsureDir(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", repository.ErrStorage, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %w", repository.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp file: %w", repository.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", repository.ErrStorage, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replace store: %w", repository.ErrStorage, err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, match repository.Predicate) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	if found, ok := repository.First(accounts, match); ok {
		return found, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.FindOne(ctx, repository.ByID(id))
}

func (s *Store) Insert(ctx context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" {
		return errors.New("account id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ReadAll()
	if err != nil {
		return err
	}
	return s.WriteAll(repository.Upsert(accounts, *account))
}

func (s *Store) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID != id {
			continue
		}
		accounts[i] = patch.Apply(accounts[i])
		if err := s.WriteAll(accounts); err != nil {
			return nil, err
		}
		updated := accounts[i]
		return &updated, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ReadAll()
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].ID == id {
			return s.WriteAll(append(accounts[:i], accounts[i+1:]...))
		}
	}
	return repository.ErrNotFound
}

func (s *Store) Count(ctx context.Context) (int, error) {
	accounts, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(accounts), nil
}

func (s *Store) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReadAll()
}

// Snapshot returns the raw file contents, or an empty JSON array when the
// store has never been written.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []byte("[]"), nil
		}
		return nil, fmt.Errorf("%w: read store: %w", repository.ErrStorage, err)
	}
	return data, nil
}
