package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mediatheque/backend/internal/models"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue(models.User{ID: 42, Role: models.RoleTrusted})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("expected user id 42 got %d", claims.UserID)
	}
	if claims.Role != models.RoleTrusted {
		t.Errorf("expected role snapshot %q got %q", models.RoleTrusted, claims.Role)
	}
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	issued := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService("test-secret", time.Hour).
		WithNowFunc(func() time.Time { return issued })

	token, err := svc.Issue(models.User{ID: 1, Role: models.RoleUser})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Exactly at expiry the token is no longer accepted.
	svc.WithNowFunc(func() time.Time { return issued.Add(time.Hour) })
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken at expiry, got %v", err)
	}
}

func TestTokenServiceRejectsTampering(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	other := NewTokenService("other-secret", time.Hour)

	token, err := other.Issue(models.User{ID: 1, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

type staticUserFinder struct {
	users map[int]models.User
}

func (f staticUserFinder) FindByID(_ context.Context, id int) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, errors.New("user not found")
	}
	return user, nil
}

func TestIdentityResolveRefetchesRole(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	finder := staticUserFinder{users: map[int]models.User{
		7: {ID: 7, Role: models.RoleUser},
	}}
	identity := Identity{Tokens: svc, Users: finder}

	// Token carries an admin snapshot, but the store says plain user:
	// the store wins.
	token, err := svc.Issue(models.User{ID: 7, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	user := identity.Resolve(req.Context(), req)
	if user == nil {
		t.Fatal("expected a resolved user")
	}
	if user.Role != models.RoleUser {
		t.Errorf("expected store role %q got %q", models.RoleUser, user.Role)
	}
}

func TestIdentityResolveAnonymous(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	identity := Identity{Tokens: svc, Users: staticUserFinder{users: map[int]models.User{}}}

	cases := map[string]string{
		"no header":        "",
		"malformed header": "Token abc",
		"garbage token":    "Bearer nope",
	}

	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if user := identity.Resolve(req.Context(), req); user != nil {
			t.Errorf("%s: expected anonymous, got user %d", name, user.ID)
		}
	}

	// Valid token for a user the store no longer knows is anonymous too.
	token, err := svc.Issue(models.User{ID: 9, Role: models.RoleUser})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if user := identity.Resolve(req.Context(), req); user != nil {
		t.Errorf("deleted user: expected anonymous, got user %d", user.ID)
	}
}
