package repository

import (
	"context"
	"errors"

	"course-auth/internal/domain"
)

var (
	// ErrNotFound is returned when no account satisfies a lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned by stores that enforce username/email uniqueness themselves.
	ErrDuplicate = errors.New("account already exists")
	// ErrStorage wraps I/O failures of the backing store other than a missing file.
	ErrStorage = errors.New("account storage failure")
)

// AccountStore is the persistence contract for account records.
// Implementations keep records in insertion order.
type AccountStore interface {
	FindOne(ctx context.Context, match Predicate) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// Insert replaces the record with the same ID in place or appends a new one.
	Insert(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]domain.Account, error)
}

// Predicate selects account records.
type Predicate func(domain.Account) bool

func ByID(id string) Predicate {
	return func(a domain.Account) bool { return a.ID == id }
}

// ByEmail matches case-sensitively.
func ByEmail(email string) Predicate {
	return func(a domain.Account) bool { return a.Email == email }
}

// ByUsername matches case-sensitively.
func ByUsername(username string) Predicate {
	return func(a domain.Account) bool { return a.Username == username }
}

// AnyOf matches when at least one of preds matches. Nil entries are skipped.
func AnyOf(preds ...Predicate) Predicate {
	return func(a domain.Account) bool {
		for _, p := range preds {
			if p != nil && p(a) {
				return true
			}
		}
		return false
	}
}

// Excluding matches records other than id that satisfy p.
func Excluding(id string, p Predicate) Predicate {
	return func(a domain.Account) bool {
		return a.ID != id && p(a)
	}
}

// First returns the first record in accounts matching p.
func First(accounts []domain.Account, p Predicate) (*domain.Account, bool) {
	for i := range accounts {
		if p(accounts[i]) {
			found := accounts[i]
			return &found, true
		}
	}
	return nil, false
}

// Upsert replaces the record with the same ID or appends account.
func Upsert(accounts []domain.Account, account domain.Account) []domain.Account {
	for i := range accounts {
		if accounts[i].ID == account.ID {
			accounts[i] = account
			return accounts
		}
	}
	return append(accounts, account)
}
