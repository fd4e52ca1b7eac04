// Package authz is the authorization guard gating every data-access path.
//
// The checks are pure: they look only at the resolved identity and the
// requested resource. Every handler must call them before touching a
// repository; a bypass is a defect, not a valid code path.
package authz

import (
	"github.com/google/uuid"

	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/requestcontext"
)

// RequireRole denies unless the identity's role is one of allowed.
func RequireRole(ident requestcontext.RequestIdentity, allowed ...requestcontext.Role) error {
	for _, role := range allowed {
		if ident.Role == role {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "insufficient role")
}

// RequireUniversityScope enforces the single cross-cutting ownership
// invariant: a university-role identity may only touch rows belonging to its
// own university. Admin and agency always pass.
func RequireUniversityScope(ident requestcontext.RequestIdentity, universityID uuid.UUID) error {
	if ident.Role != requestcontext.RoleUniversity {
		return nil
	}
	if ident.UniversityID == nil || *ident.UniversityID != universityID {
		return dErrors.New(dErrors.CodeForbidden, "students of another university are not accessible")
	}
	return nil
}

// CanManageStudents reports whether the role may create, update or delete
// students, absences and check-ins.
func CanManageStudents(role requestcontext.Role) bool {
	return role == requestcontext.RoleAdmin || role == requestcontext.RoleAgency
}

// CanViewAuditLogs reports whether the role may read the audit trail.
func CanViewAuditLogs(role requestcontext.Role) bool {
	return role == requestcontext.RoleAdmin
}
