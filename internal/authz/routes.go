package authz

import (
	"strings"

	"frisk/pkg/requestcontext"
)

// Dashboard home paths per role. Unauthorized navigation redirects here.
const (
	LoginPath      = "/login"
	AdminHome      = "/admin"
	AgencyHome     = "/agency"
	UniversityHome = "/university"
	SettingsPath   = "/settings"
)

// protectedPrefixes are the path prefixes that require an authenticated
// session at all.
var protectedPrefixes = []string{AdminHome, AgencyHome, UniversityHome, SettingsPath}

// RoleHome returns the dashboard path for a role.
func RoleHome(role requestcontext.Role) string {
	switch role {
	case requestcontext.RoleAdmin:
		return AdminHome
	case requestcontext.RoleAgency:
		return AgencyHome
	case requestcontext.RoleUniversity:
		return UniversityHome
	}
	return LoginPath
}

// IsProtectedPath reports whether the path requires authentication.
func IsProtectedPath(path string) bool {
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// PathAllowedForRole reports whether a role may navigate to a path prefix.
// Admin may go anywhere; agency and university get their own dashboard plus
// the shared settings pages. Evaluated fresh on every navigation since a
// role can change between requests.
func PathAllowedForRole(path string, role requestcontext.Role) bool {
	switch role {
	case requestcontext.RoleAdmin:
		return true
	case requestcontext.RoleAgency:
		return strings.HasPrefix(path, AgencyHome) || strings.HasPrefix(path, SettingsPath)
	case requestcontext.RoleUniversity:
		return strings.HasPrefix(path, UniversityHome) || strings.HasPrefix(path, SettingsPath)
	}
	return false
}

// Decision is the outcome of a navigation check.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

// CheckNavigation evaluates a navigation to path for an optionally
// authenticated role. A nil role means unauthenticated.
func CheckNavigation(path string, role *requestcontext.Role) Decision {
	if role == nil {
		if IsProtectedPath(path) {
			return Decision{Allowed: false, Redirect: LoginPath}
		}
		return Decision{Allowed: true}
	}
	if PathAllowedForRole(path, *role) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Redirect: RoleHome(*role)}
}
