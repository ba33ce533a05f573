// Package memory is an in-process AccountStore with the same ordering and
// upsert semantics as the file-backed stores.
package memory

import (
	"context"
	"errors"
	"sync"

	"course-auth/internal/domain"
	"course-auth/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	accounts []domain.Account
}

func New(seed ...domain.Account) *Store {
	return &Store{accounts: append([]domain.Account(nil), seed...)}
}

var _ repository.AccountStore = (*Store)(nil)

func (s *Store) FindOne(ctx context.Context, match repository.Predicate) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if found, ok := repository.First(s.accounts, match); ok {
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
	s.accounts = repository.Upsert(s.accounts, *account)
	return nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts[i] = patch.Apply(s.accounts[i])
			updated := s.accounts[i]
			return &updated, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *Store) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Account{}, s.accounts...), nil
}
