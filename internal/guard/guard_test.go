package guard

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-auth/internal/domain"
	"course-auth/internal/repository"
	"course-auth/internal/repository/memory"
	"course-auth/internal/token"
)

var secret = []byte("guard-secret")

func issue(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	tok, err := token.Issue(token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}, secret, ttl)
	require.NoError(t, err)
	return tok
}

func newGuard() *Guard {
	return New(memory.New(
		domain.Account{ID: "1", Username: "alice", Role: domain.RoleUser},
		domain.Account{ID: "2", Username: "root", Role: domain.RoleAdmin},
	), secret)
}

func TestAuthorize(t *testing.T) {
	g := newGuard()
	ctx := context.Background()

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"no header", "", http.StatusUnauthorized, "missing token"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "missing token"},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, "missing token"},
		{"malformed", "Bearer abc.def", http.StatusUnauthorized, token.ErrMalformed.Error()},
		{"expired", "Bearer " + issue(t, "1", -time.Second), http.StatusUnauthorized, token.ErrExpired.Error()},
		{"unknown subject", "Bearer " + issue(t, "99", time.Hour), http.StatusUnauthorized, "subject not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account, rej := g.Authorize(ctx, tc.header)
			assert.Nil(t, account)
			require.NotNil(t, rej)
			assert.Equal(t, tc.status, rej.Status)
			assert.Equal(t, tc.message, rej.Message)
		})
	}
}

func TestAuthorize_BadSignature(t *testing.T) {
	other, err := token.Issue(token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}, []byte("other"), time.Hour)
	require.NoError(t, err)

	_, rej := newGuard().Authorize(context.Background(), "Bearer "+other)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusUnauthorized, rej.Status)
	assert.Equal(t, token.ErrBadSignature.Error(), rej.Message)
}

func TestAuthorize_Success(t *testing.T) {
	account, rej := newGuard().Authorize(context.Background(), "bearer "+issue(t, "1", time.Hour))
	require.Nil(t, rej)
	assert.Equal(t, "alice", account.Username)
}

type brokenLookup struct{}

func (brokenLookup) FindByID(context.Context, string) (*domain.Account, error) {
	return nil, fmt.Errorf("%w: boom", repository.ErrStorage)
}

func TestAuthorize_StorageFailureIsInternal(t *testing.T) {
	g := New(brokenLookup{}, secret)

	_, rej := g.Authorize(context.Background(), "Bearer "+issue(t, "1", time.Hour))
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusInternalServerError, rej.Status)
	assert.NotContains(t, rej.Message, "boom")
	assert.ErrorIs(t, rej.Err, repository.ErrStorage)
}

func TestRequireRole(t *testing.T) {
	admin := &domain.Account{ID: "2", Role: domain.RoleAdmin}
	user := &domain.Account{ID: "1", Role: domain.RoleUser}

	assert.Nil(t, RequireRole(admin, domain.RoleAdmin))

	rej := RequireRole(user, domain.RoleAdmin)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusForbidden, rej.Status)
	assert.Equal(t, "insufficient role", rej.Message)

	assert.NotNil(t, RequireRole(nil, domain.RoleUser))
}
