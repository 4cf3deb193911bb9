// Package policy holds the pure authorization decisions: who may view a
// resource given its visibility and ownership, and who may perform a
// gated mutation. Functions here never touch storage; callers resolve
// the requester and the target first and pass both in. A nil requester
// means anonymous.
package policy

import "github.com/mediatheque/backend/internal/models"

// Effect is the outcome of a gate evaluation.
type Effect int

const (
	Allow Effect = iota
	Deny
	NotFound
)

// Verdict pairs an effect with a human-readable denial reason.
type Verdict struct {
	Effect Effect
	Reason string
}

func allow() Verdict             { return Verdict{Effect: Allow} }
func deny(reason string) Verdict { return Verdict{Effect: Deny, Reason: reason} }
func notFound() Verdict          { return Verdict{Effect: NotFound} }

// IsAdmin reports whether the requester holds the admin role.
func IsAdmin(requester *models.User) bool {
	return requester != nil && requester.Role == models.RoleAdmin
}

// IsTrustedOrAdmin reports whether the requester holds an elevated
// content-curation role.
func IsTrustedOrAdmin(requester *models.User) bool {
	return requester != nil &&
		(requester.Role == models.RoleTrusted || requester.Role == models.RoleAdmin)
}

// CanViewMedia decides media visibility: public media is visible to
// everyone, private media to the owner of its library and to
// trusted/admin requesters.
func CanViewMedia(requester *models.User, media models.Media) bool {
	if media.Visibility == models.VisibilityPublic {
		return true
	}
	if requester == nil {
		return false
	}
	return media.OwnerID == requester.ID || IsTrustedOrAdmin(requester)
}

// CanViewLibrary decides library visibility with the same shape as
// CanViewMedia, using the library's own visibility and owner.
func CanViewLibrary(requester *models.User, library models.Library) bool {
	if library.Visibility == models.VisibilityPublic {
		return true
	}
	if requester == nil {
		return false
	}
	return library.OwnerID == requester.ID || IsTrustedOrAdmin(requester)
}

// RequireAuthenticated gates operations open to any authenticated user.
func RequireAuthenticated(requester *models.User) Verdict {
	if requester == nil {
		return deny("authentication required")
	}
	return allow()
}

// RequireAdmin gates user-administration operations.
func RequireAdmin(requester *models.User) Verdict {
	if !IsAdmin(requester) {
		return deny("admin access required")
	}
	return allow()
}

// RequireTrustedOrAdmin gates shared-taxonomy curation (genres,
// franchises, persons).
func RequireTrustedOrAdmin(requester *models.User) Verdict {
	if !IsTrustedOrAdmin(requester) {
		return deny("insufficient permissions: trusted or admin role required")
	}
	return allow()
}

// RequireLibraryOwnerOrAdmin gates mutations on a library. A nil library
// means the target does not exist: existence is checked before
// ownership, so missing targets yield NotFound regardless of role.
// Admins bypass the ownership comparison entirely.
func RequireLibraryOwnerOrAdmin(requester *models.User, library *models.Library) Verdict {
	if IsAdmin(requester) {
		if library == nil {
			return notFound()
		}
		return allow()
	}
	if library == nil {
		return notFound()
	}
	if requester == nil || library.OwnerID != requester.ID {
		return deny("you are not the owner of this library")
	}
	return allow()
}

// RequireMediaOwnerOrAdmin gates mutations on a media via its library's
// owner. A nil media means the target does not exist.
func RequireMediaOwnerOrAdmin(requester *models.User, media *models.Media) Verdict {
	if media == nil {
		return notFound()
	}
	if IsAdmin(requester) {
		return allow()
	}
	if requester == nil || media.OwnerID != requester.ID {
		return deny("you are not the owner of this media")
	}
	return allow()
}

// RequireSelfOrAdmin gates profile mutations: the requester must target
// their own user id unless they are admin.
func RequireSelfOrAdmin(requester *models.User, targetUserID int) Verdict {
	if IsAdmin(requester) {
		return allow()
	}
	if requester == nil || requester.ID != targetUserID {
		return deny("you may only modify your own profile")
	}
	return allow()
}
