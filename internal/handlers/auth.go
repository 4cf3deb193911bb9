package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/auth"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
	"github.com/mediatheque/backend/internal/repositories"
)

// AuthHandler implements registration, login and requester introspection.
type AuthHandler struct {
	Users     UserStore
	Tokens    TokenIssuer
	Requester RequesterResolver
	Limiter   RateLimiter
	NowFunc   func() time.Time
}

// Register handles POST /api/register. New accounts always start with
// the base role; promotion is an admin operation.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}
	if !allowRequest(h.Limiter, r, "register") {
		fail(w, r, apierror.RateLimited())
		return
	}

	ctx := r.Context()

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Bio      string `json:"bio"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	var missing []string
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		fail(w, r, apierror.MissingFields(missing))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		fail(w, r, apierror.Conflict("invalid email address", "user"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		failInternal(w, r, "hash password", err)
		return
	}

	user := models.User{
		Username:  req.Username,
		Email:     email,
		Password:  hashed,
		Bio:       req.Bio,
		Role:      models.RoleUser,
		CreatedAt: h.now(),
	}

	id, err := h.Users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			fail(w, r, apierror.AlreadyExists("user", "email", email))
			return
		}
		failInternal(w, r, "create user", err)
		return
	}
	user.ID = id

	token, err := h.Tokens.Issue(user)
	if err != nil {
		failInternal(w, r, "issue token", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/users/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"token":   token,
		"message": "registration successful",
	})
}

// Login handles POST /api/login. Unknown email and wrong password are
// indistinguishable to the caller.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}
	if !allowRequest(h.Limiter, r, "login") {
		fail(w, r, apierror.RateLimited())
		return
	}

	ctx := r.Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	var missing []string
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		fail(w, r, apierror.MissingFields(missing))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			fail(w, r, apierror.Authentication("incorrect email or password"))
			return
		}
		failInternal(w, r, "find user by email", err)
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		fail(w, r, apierror.Authentication("incorrect email or password"))
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		failInternal(w, r, "issue token", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"token":   token,
		"message": "login successful",
	})
}

// Me handles GET /api/me: the requester's own public view. The email is
// disclosed to admins only, the same rule as for any other profile.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAuthenticated(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "user", nil))
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserView(*requester, policy.IsAdmin(requester)))
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
