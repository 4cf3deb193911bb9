package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mediatheque/backend/internal/models"
)

// UserFinder is the minimal store access needed to resolve a requester.
type UserFinder interface {
	FindByID(ctx context.Context, id int) (models.User, error)
}

// Identity resolves bearer credentials to users. Verification failures
// of any kind degrade to anonymous rather than erroring: view endpoints
// are open and gated operations re-check the requester themselves.
type Identity struct {
	Tokens *TokenService
	Users  UserFinder
}

// Resolve returns the user behind the request's bearer token, or nil for
// anonymous. The token's role snapshot is deliberately ignored: the user
// is re-fetched by id so a role change takes effect immediately without
// re-issuance.
func (i Identity) Resolve(ctx context.Context, r *http.Request) *models.User {
	token := bearerToken(r)
	if token == "" {
		return nil
	}

	claims, err := i.Tokens.Verify(token)
	if err != nil {
		return nil
	}

	user, err := i.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil
	}
	return &user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
