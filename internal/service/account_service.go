package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"course-auth/internal/domain"
	"course-auth/internal/repository"
	"course-auth/internal/token"
)

const (
	DefaultTokenTTL  = 24 * time.Hour
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// AccountService describes account lifecycle operations.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	ChangePassword(ctx context.Context, id, current, proposed, confirmation string) error
	Profile(ctx context.Context, id string) (*domain.PublicAccount, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*domain.PublicAccount, error)
	ListAccounts(ctx context.Context, page, limit int) (*AccountPage, error)
	// EnsureAdmin makes sure an administrator with the given identity exists.
	// It reports whether a new account was created, and fails with
	// ErrAdminIdentityTaken when another account holds the username or email.
	EnsureAdmin(ctx context.Context, username, email, password string) (bool, error)
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	// Role defaults to domain.RoleUser.
	Role domain.Role
}

// ProfileUpdate carries optional profile changes; nil fields are kept.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// Session is what registration and login hand back to the caller.
type Session struct {
	User  domain.PublicAccount `json:"user"`
	Token string               `json:"token"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type AccountPage struct {
	Users      []domain.PublicAccount `json:"users"`
	Pagination Pagination             `json:"pagination"`
}

type accountService struct {
	accounts repository.AccountStore
	secret   []byte
	tokenTTL time.Duration
	ids      *idSequence
	now      func() time.Time

	// identityMu serializes uniqueness checks with the writes that depend on them.
	identityMu sync.Mutex

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(accounts repository.AccountStore, secret []byte, tokenTTL time.Duration) AccountService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &accountService{
		accounts: accounts,
		secret:   secret,
		tokenTTL: tokenTTL,
		ids:      &idSequence{now: time.Now},
		now:      time.Now,
	}
}

func (s *accountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	if username == "" {
		return nil, fieldError(ErrValidation, "username", "username is required")
	}
	if email == "" {
		return nil, fieldError(ErrValidation, "email", "email is required")
	}
	if !role.Valid() {
		return nil, fieldError(ErrValidation, "role", fmt.Sprintf("unknown role %q", role))
	}
	if msg := checkPasswordPolicy(in.Password); msg != "" {
		return nil, fieldError(ErrPolicyViolation, "password", msg)
	}

	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	if err := s.ensureUnique(ctx, repository.AnyOf(repository.ByUsername(username), repository.ByEmail(email))); err != nil {
		return nil, err
	}

	id, err := s.newID(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Insert(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("persist account: %w", err)
	}

	return s.newSession(account)
}

func (s *accountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.FindOne(ctx, repository.ByEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// burn the same bcrypt work as a real comparison
			passwordMatches(s.fallbackHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if !passwordMatches(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(account)
}

func (s *accountService) ChangePassword(ctx context.Context, id, current, proposed, confirmation string) error {
	account, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if !passwordMatches(account.PasswordHash, current) {
		return fieldError(ErrWrongCurrentPassword, "currentPassword", ErrWrongCurrentPassword.Error())
	}
	if proposed == current {
		return fieldError(ErrSamePassword, "newPassword", ErrSamePassword.Error())
	}
	if msg := checkPasswordPolicy(proposed); msg != "" {
		return fieldError(ErrPolicyViolation, "newPassword", msg)
	}
	if confirmation != proposed {
		return fieldError(ErrConfirmationMismatch, "confirmPassword", ErrConfirmationMismatch.Error())
	}

	hash, err := hashPassword(proposed)
	if err != nil {
		return err
	}
	if _, err := s.accounts.Update(ctx, id, domain.AccountPatch{PasswordHash: &hash}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("persist password: %w", err)
	}
	return nil
}

func (s *accountService) Profile(ctx context.Context, id string) (*domain.PublicAccount, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &public, nil
}

func (s *accountService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*domain.PublicAccount, error) {
	var patch domain.AccountPatch
	var clashes []repository.Predicate

	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return nil, fieldError(ErrValidation, "username", "username must not be empty")
		}
		patch.Username = &username
		clashes = append(clashes, repository.ByUsername(username))
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" {
			return nil, fieldError(ErrValidation, "email", "email must not be empty")
		}
		patch.Email = &email
		clashes = append(clashes, repository.ByEmail(email))
	}

	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	if len(clashes) == 0 {
		return s.Profile(ctx, id)
	}
	if err := s.ensureUnique(ctx, repository.Excluding(id, repository.AnyOf(clashes...))); err != nil {
		return nil, err
	}

	updated, err := s.accounts.Update(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	public := updated.Public()
	return &public, nil
}

func (s *accountService) ListAccounts(ctx context.Context, page, limit int) (*AccountPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})

	total := len(accounts)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	users := make([]domain.PublicAccount, 0, end-start)
	for _, a := range accounts[start:end] {
		users = append(users, a.Public())
	}
	return &AccountPage{
		Users: users,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Pages: (total + limit - 1) / limit,
			Total: total,
		},
	}, nil
}

func (s *accountService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	s.identityMu.Lock()
	existing, err := s.accounts.FindOne(ctx, repository.AnyOf(
		repository.ByUsername(username),
		repository.ByEmail(email),
	))
	s.identityMu.Unlock()

	switch {
	case err == nil:
		// never promote: anyone could have registered the configured identity
		if existing.Role == domain.RoleAdmin && existing.Username == username && existing.Email == email {
			return false, nil
		}
		return false, fmt.Errorf("%w: account %s (%s, role %s)", ErrAdminIdentityTaken, existing.ID, existing.Username, existing.Role)
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("find admin: %w", err)
	}

	if _, err := s.Register(ctx, RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *accountService) find(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *accountService) ensureUnique(ctx context.Context, clash repository.Predicate) error {
	_, err := s.accounts.FindOne(ctx, clash)
	switch {
	case err == nil:
		return ErrDuplicateIdentity
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check identity: %w", err)
	}
}

func (s *accountService) newID(ctx context.Context) (string, error) {
	for {
		id := s.ids.next()
		_, err := s.accounts.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check account id: %w", err)
		}
	}
}

func (s *accountService) newSession(account *domain.Account) (*Session, error) {
	signed, err := token.Issue(token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
		Username:         account.Username,
		Email:            account.Email,
		Role:             string(account.Role),
	}, s.secret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: account.Public(), Token: signed}, nil
}

func (s *accountService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := hashPassword("not-a-real-password-0")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
