package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/requestcontext"
)

func identityWithRole(role requestcontext.Role, universityID *uuid.UUID) requestcontext.RequestIdentity {
	return requestcontext.RequestIdentity{
		UserID:       uuid.New(),
		Email:        "someone@example.com",
		Role:         role,
		UniversityID: universityID,
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		role    requestcontext.Role
		allowed []requestcontext.Role
		wantErr bool
	}{
		{"admin allowed for admin-only", requestcontext.RoleAdmin, []requestcontext.Role{requestcontext.RoleAdmin}, false},
		{"agency denied for admin-only", requestcontext.RoleAgency, []requestcontext.Role{requestcontext.RoleAdmin}, true},
		{"university denied for admin-only", requestcontext.RoleUniversity, []requestcontext.Role{requestcontext.RoleAdmin}, true},
		{"agency allowed in write set", requestcontext.RoleAgency, []requestcontext.Role{requestcontext.RoleAdmin, requestcontext.RoleAgency}, false},
		{"university denied in write set", requestcontext.RoleUniversity, []requestcontext.Role{requestcontext.RoleAdmin, requestcontext.RoleAgency}, true},
		{"university allowed in read set", requestcontext.RoleUniversity, []requestcontext.Role{requestcontext.RoleAdmin, requestcontext.RoleAgency, requestcontext.RoleUniversity}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireRole(identityWithRole(tt.role, nil), tt.allowed...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRequireUniversityScope(t *testing.T) {
	ownID := uuid.New()
	otherID := uuid.New()

	t.Run("admin passes any scope", func(t *testing.T) {
		err := RequireUniversityScope(identityWithRole(requestcontext.RoleAdmin, nil), otherID)
		require.NoError(t, err)
	})

	t.Run("agency passes any scope", func(t *testing.T) {
		err := RequireUniversityScope(identityWithRole(requestcontext.RoleAgency, nil), otherID)
		require.NoError(t, err)
	})

	t.Run("university passes own scope", func(t *testing.T) {
		err := RequireUniversityScope(identityWithRole(requestcontext.RoleUniversity, &ownID), ownID)
		require.NoError(t, err)
	})

	t.Run("university denied foreign scope", func(t *testing.T) {
		err := RequireUniversityScope(identityWithRole(requestcontext.RoleUniversity, &ownID), otherID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("university without assignment denied", func(t *testing.T) {
		err := RequireUniversityScope(identityWithRole(requestcontext.RoleUniversity, nil), ownID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestCanManageStudents(t *testing.T) {
	assert.True(t, CanManageStudents(requestcontext.RoleAdmin))
	assert.True(t, CanManageStudents(requestcontext.RoleAgency))
	assert.False(t, CanManageStudents(requestcontext.RoleUniversity))
}

func TestCanViewAuditLogs(t *testing.T) {
	assert.True(t, CanViewAuditLogs(requestcontext.RoleAdmin))
	assert.False(t, CanViewAuditLogs(requestcontext.RoleAgency))
	assert.False(t, CanViewAuditLogs(requestcontext.RoleUniversity))
}
