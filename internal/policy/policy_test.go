package policy

import (
	"testing"

	"github.com/mediatheque/backend/internal/models"
)

func userWithRole(id int, role string) *models.User {
	return &models.User{ID: id, Role: role}
}

func TestCanViewMediaPublic(t *testing.T) {
	media := models.Media{Visibility: models.VisibilityPublic, OwnerID: 1}

	requesters := map[string]*models.User{
		"anonymous": nil,
		"owner":     userWithRole(1, models.RoleUser),
		"stranger":  userWithRole(2, models.RoleUser),
		"trusted":   userWithRole(3, models.RoleTrusted),
		"admin":     userWithRole(4, models.RoleAdmin),
	}

	for name, requester := range requesters {
		if !CanViewMedia(requester, media) {
			t.Errorf("public media should be visible to %s", name)
		}
	}
}

func TestCanViewMediaPrivate(t *testing.T) {
	media := models.Media{Visibility: models.VisibilityPrivate, OwnerID: 1}

	cases := []struct {
		name      string
		requester *models.User
		want      bool
	}{
		{"anonymous", nil, false},
		{"owner", userWithRole(1, models.RoleUser), true},
		{"stranger", userWithRole(2, models.RoleUser), false},
		{"trusted", userWithRole(2, models.RoleTrusted), true},
		{"admin", userWithRole(2, models.RoleAdmin), true},
	}

	for _, tc := range cases {
		if got := CanViewMedia(tc.requester, media); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanViewLibrary(t *testing.T) {
	public := models.Library{Visibility: models.VisibilityPublic, OwnerID: 1}
	private := models.Library{Visibility: models.VisibilityPrivate, OwnerID: 1}

	if !CanViewLibrary(nil, public) {
		t.Error("public library should be visible anonymously")
	}
	if CanViewLibrary(nil, private) {
		t.Error("private library should not be visible anonymously")
	}
	if !CanViewLibrary(userWithRole(1, models.RoleUser), private) {
		t.Error("owner should see their private library")
	}
	if CanViewLibrary(userWithRole(2, models.RoleUser), private) {
		t.Error("stranger should not see a private library")
	}
	if !CanViewLibrary(userWithRole(2, models.RoleTrusted), private) {
		t.Error("trusted should see private libraries")
	}
}

func TestRequireAdmin(t *testing.T) {
	if v := RequireAdmin(nil); v.Effect != Deny {
		t.Errorf("anonymous: got %v want Deny", v.Effect)
	}
	if v := RequireAdmin(userWithRole(1, models.RoleTrusted)); v.Effect != Deny {
		t.Errorf("trusted: got %v want Deny", v.Effect)
	}
	if v := RequireAdmin(userWithRole(1, models.RoleAdmin)); v.Effect != Allow {
		t.Errorf("admin: got %v want Allow", v.Effect)
	}
}

func TestRequireTrustedOrAdmin(t *testing.T) {
	if v := RequireTrustedOrAdmin(userWithRole(1, models.RoleUser)); v.Effect != Deny {
		t.Errorf("user: got %v want Deny", v.Effect)
	}
	for _, role := range []string{models.RoleTrusted, models.RoleAdmin} {
		if v := RequireTrustedOrAdmin(userWithRole(1, role)); v.Effect != Allow {
			t.Errorf("%s: got %v want Allow", role, v.Effect)
		}
	}
}

func TestRequireMediaOwnerOrAdmin(t *testing.T) {
	owned := &models.Media{ID: 10, OwnerID: 1, Visibility: models.VisibilityPrivate}

	// Existing media, wrong owner: denied, not hidden.
	if v := RequireMediaOwnerOrAdmin(userWithRole(2, models.RoleUser), owned); v.Effect != Deny {
		t.Errorf("non-owner on existing media: got %v want Deny", v.Effect)
	}
	if v := RequireMediaOwnerOrAdmin(userWithRole(1, models.RoleUser), owned); v.Effect != Allow {
		t.Errorf("owner: got %v want Allow", v.Effect)
	}
	if v := RequireMediaOwnerOrAdmin(userWithRole(2, models.RoleAdmin), owned); v.Effect != Allow {
		t.Errorf("admin: got %v want Allow", v.Effect)
	}
	// Trusted grants view rights, not mutation rights.
	if v := RequireMediaOwnerOrAdmin(userWithRole(2, models.RoleTrusted), owned); v.Effect != Deny {
		t.Errorf("trusted non-owner: got %v want Deny", v.Effect)
	}
	// Missing media yields NotFound before any ownership comparison.
	if v := RequireMediaOwnerOrAdmin(userWithRole(2, models.RoleAdmin), nil); v.Effect != NotFound {
		t.Errorf("admin on missing media: got %v want NotFound", v.Effect)
	}
	if v := RequireMediaOwnerOrAdmin(userWithRole(1, models.RoleUser), nil); v.Effect != NotFound {
		t.Errorf("user on missing media: got %v want NotFound", v.Effect)
	}
}

func TestRequireLibraryOwnerOrAdmin(t *testing.T) {
	lib := &models.Library{ID: 5, OwnerID: 1}

	if v := RequireLibraryOwnerOrAdmin(userWithRole(1, models.RoleUser), lib); v.Effect != Allow {
		t.Errorf("owner: got %v want Allow", v.Effect)
	}
	if v := RequireLibraryOwnerOrAdmin(userWithRole(2, models.RoleUser), lib); v.Effect != Deny {
		t.Errorf("non-owner: got %v want Deny", v.Effect)
	}
	if v := RequireLibraryOwnerOrAdmin(userWithRole(2, models.RoleAdmin), nil); v.Effect != NotFound {
		t.Errorf("missing library: got %v want NotFound", v.Effect)
	}
}

func TestRequireSelfOrAdmin(t *testing.T) {
	if v := RequireSelfOrAdmin(userWithRole(7, models.RoleUser), 7); v.Effect != Allow {
		t.Errorf("self: got %v want Allow", v.Effect)
	}
	if v := RequireSelfOrAdmin(userWithRole(7, models.RoleUser), 8); v.Effect != Deny {
		t.Errorf("other: got %v want Deny", v.Effect)
	}
	if v := RequireSelfOrAdmin(userWithRole(7, models.RoleAdmin), 8); v.Effect != Allow {
		t.Errorf("admin: got %v want Allow", v.Effect)
	}
}
