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
	"github.com/mediatheque/backend/internal/search"
)

// UserHandler implements user lifecycle endpoints. Creation and deletion
// are admin operations; profile edits are self-or-admin.
type UserHandler struct {
	Users     UserStore
	Libraries LibraryStore
	Requester RequesterResolver
	NowFunc   func() time.Time
}

// Collection handles POST /api/users.
func (h UserHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAdmin(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "user", nil))
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Bio      string `json:"bio"`
		Role     string `json:"role"`
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

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		fail(w, r, apierror.Conflict(`role must be "user", "trusted" or "admin"`, "user"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		failInternal(w, r, "hash password", err)
		return
	}

	id, err := h.Users.Create(ctx, models.User{
		Username:  req.Username,
		Email:     email,
		Password:  hashed,
		Bio:       req.Bio,
		Role:      role,
		CreatedAt: h.now(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			fail(w, r, apierror.AlreadyExists("user", "email", email))
			return
		}
		failInternal(w, r, "create user", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/users/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      id,
		"email":   email,
		"message": "user created",
	})
}

// Item handles GET, PATCH and DELETE on /api/users/{user_id}.
func (h UserHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPatch:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		fail(w, r, apierror.MethodNotAllowed())
	}
}

func (h UserHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "user_id", "user")
	if e != nil {
		fail(w, r, e)
		return
	}

	user, err := h.Users.FindByID(ctx, id)
	if err != nil {
		storeFailure(w, r, "find user", err, "user", id)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	respondJSON(ctx, w, http.StatusOK, newUserView(user, policy.IsAdmin(requester)))
}

func (h UserHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "user_id", "user")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireSelfOrAdmin(requester, id); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "user", id))
		return
	}

	user, err := h.Users.FindByID(ctx, id)
	if err != nil {
		storeFailure(w, r, "find user", err, "user", id)
		return
	}

	var req struct {
		Username optString `json:"username"`
		Email    optString `json:"email"`
		Password optString `json:"password"`
		Bio      optString `json:"bio"`
		Role     optString `json:"role"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	if req.Username.Set {
		user.Username = req.Username.Value
	}
	if req.Email.Set {
		email := strings.ToLower(strings.TrimSpace(req.Email.Value))
		if _, err := mail.ParseAddress(email); err != nil {
			fail(w, r, apierror.Conflict("invalid email address", "user"))
			return
		}
		if existing, err := h.Users.FindByEmail(ctx, email); err == nil && existing.ID != id {
			fail(w, r, apierror.AlreadyExists("user", "email", email))
			return
		} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			failInternal(w, r, "check email uniqueness", err)
			return
		}
		user.Email = email
	}
	if req.Password.Set && req.Password.Value != "" {
		hashed, err := auth.HashPassword(req.Password.Value)
		if err != nil {
			failInternal(w, r, "hash password", err)
			return
		}
		user.Password = hashed
	}
	if req.Bio.Set {
		user.Bio = req.Bio.Value
	}
	if req.Role.Set {
		if !policy.IsAdmin(requester) {
			fail(w, r, apierror.Authorization("only an admin may change roles"))
			return
		}
		if !models.ValidRole(req.Role.Value) {
			fail(w, r, apierror.Conflict(`role must be "user", "trusted" or "admin"`, "user"))
			return
		}
		user.Role = req.Role.Value
	}

	if err := h.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			fail(w, r, apierror.AlreadyExists("user", "email", user.Email))
			return
		}
		storeFailure(w, r, "update user", err, "user", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"id":      user.ID,
		"email":   user.Email,
		"message": "user updated",
	})
}

func (h UserHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "user_id", "user")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAdmin(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "user", id))
		return
	}

	// An admin cannot remove their own account.
	if requester.ID == id {
		fail(w, r, apierror.Authorization("you cannot delete your own account"))
		return
	}

	if err := h.Users.Delete(ctx, id); err != nil {
		storeFailure(w, r, "delete user", err, "user", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "user deleted"})
}

// OwnedLibraries handles GET /api/users/{user_id}/libraries: the user's
// libraries the requester may view.
func (h UserHandler) OwnedLibraries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()

	id, e := pathID(r, "user_id", "user")
	if e != nil {
		fail(w, r, e)
		return
	}

	if _, err := h.Users.FindByID(ctx, id); err != nil {
		storeFailure(w, r, "find user", err, "user", id)
		return
	}

	libs, err := h.Libraries.ListByOwner(ctx, id)
	if err != nil {
		failInternal(w, r, "list libraries by owner", err)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	visible := search.Filter(libs, func(lib models.Library) bool {
		return policy.CanViewLibrary(requester, lib)
	})

	views := make([]libraryView, 0, len(visible))
	for _, lib := range visible {
		views = append(views, newLibraryView(lib))
	}
	respondJSON(ctx, w, http.StatusOK, views)
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
