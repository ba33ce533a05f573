// Package guard decides whether an inbound request is authenticated as an
// existing account and whether that account holds a required role.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"course-auth/internal/domain"
	"course-auth/internal/repository"
	"course-auth/internal/token"
)

const bearerPrefix = "Bearer "

// Rejection is a refused authorization with the HTTP status to report.
type Rejection struct {
	Status  int
	Message string
	// Err is the underlying cause for server-side failures; never shown to clients.
	Err error
}

func (r *Rejection) Error() string {
	return r.Message
}

// SubjectLookup resolves the account a token was issued for.
type SubjectLookup interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
}

type Guard struct {
	subjects SubjectLookup
	secret   []byte
}

func New(subjects SubjectLookup, secret []byte) *Guard {
	return &Guard{subjects: subjects, secret: secret}
}

// Authorize validates the Authorization header value and resolves its subject.
func (g *Guard) Authorize(ctx context.Context, authorization string) (*domain.Account, *Rejection) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return nil, &Rejection{Status: http.StatusUnauthorized, Message: "missing token"}
	}

	claims, err := token.Verify(raw, g.secret)
	if err != nil {
		return nil, &Rejection{Status: http.StatusUnauthorized, Message: err.Error()}
	}

	account, err := g.subjects.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Rejection{Status: http.StatusUnauthorized, Message: "subject not found"}
		}
		return nil, &Rejection{Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
	}
	return account, nil
}

// RequireRole checks an already authorized subject against role.
func RequireRole(subject *domain.Account, role domain.Role) *Rejection {
	if subject == nil || subject.Role != role {
		return &Rejection{Status: http.StatusForbidden, Message: "insufficient role"}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	return raw, raw != ""
}
