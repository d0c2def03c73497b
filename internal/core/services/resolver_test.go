package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

func TestVisibilityResolver_Patient(t *testing.T) {
	resolver := NewVisibilityResolver(newFakeRelStore())
	caller := domain.Identity{UserID: "gabriel", Role: domain.RolePatient}

	t.Run("sees exactly themselves", func(t *testing.T) {
		set, err := resolver.Resolve(context.Background(), caller, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"gabriel"}, set.IDs())
	})

	t.Run("own id as explicit scope is allowed", func(t *testing.T) {
		set, err := resolver.Resolve(context.Background(), caller, "gabriel")
		require.NoError(t, err)
		assert.Equal(t, []string{"gabriel"}, set.IDs())
	})

	t.Run("another patient's scope is forbidden", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), caller, "sofia")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestVisibilityResolver_ProfessionalScoped(t *testing.T) {
	rels := newFakeRelStore()
	rel := activeRelationship("rel-1", "gabriel", "drmurilo")
	require.NoError(t, rels.Create(context.Background(), &rel))

	resolver := NewVisibilityResolver(rels)
	caller := domain.Identity{UserID: "drmurilo", Role: domain.RoleProfessional}

	t.Run("active grant resolves to the patient", func(t *testing.T) {
		set, err := resolver.Resolve(context.Background(), caller, "gabriel")
		require.NoError(t, err)
		assert.Equal(t, []string{"gabriel"}, set.IDs())
	})

	t.Run("no relationship is forbidden", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), caller, "sofia")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("nonexistent patient gets the same rejection", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), caller, "no-such-user")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestVisibilityResolver_GrantStates(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.RelationshipStatus
		perms   domain.Permissions
		granted bool
	}{
		{
			name:    "active with view",
			status:  domain.StatusActive,
			perms:   domain.Permissions{ViewDocuments: true},
			granted: true,
		},
		{
			name:   "active without view",
			status: domain.StatusActive,
		},
		{
			name:   "pending with view",
			status: domain.StatusPending,
			perms:  domain.Permissions{ViewDocuments: true},
		},
		{
			name:   "inactive with view",
			status: domain.StatusInactive,
			perms:  domain.Permissions{ViewDocuments: true},
		},
		{
			name:   "terminated with view",
			status: domain.StatusTerminated,
			perms:  domain.Permissions{ViewDocuments: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rels := newFakeRelStore()
			rel := domain.Relationship{
				ID:             "rel-1",
				PatientID:      "gabriel",
				ProfessionalID: "drmurilo",
				Status:         tt.status,
				Permissions:    tt.perms,
			}
			require.NoError(t, rels.Create(context.Background(), &rel))

			resolver := NewVisibilityResolver(rels)
			caller := domain.Identity{UserID: "drmurilo", Role: domain.RoleProfessional}

			set, err := resolver.Resolve(context.Background(), caller, "gabriel")
			if tt.granted {
				require.NoError(t, err)
				assert.True(t, set.Contains("gabriel"))
			} else {
				assert.ErrorIs(t, err, domain.ErrForbidden)
			}
		})
	}
}

func TestVisibilityResolver_ProfessionalUnscoped(t *testing.T) {
	rels := newFakeRelStore()
	relA := activeRelationship("rel-1", "gabriel", "drmurilo")
	relB := activeRelationship("rel-2", "sofia", "drmurilo")
	relC := activeRelationship("rel-3", "lucas", "someone-else")
	require.NoError(t, rels.Create(context.Background(), &relA))
	require.NoError(t, rels.Create(context.Background(), &relB))
	require.NoError(t, rels.Create(context.Background(), &relC))

	resolver := NewVisibilityResolver(rels)
	caller := domain.Identity{UserID: "drmurilo", Role: domain.RoleProfessional}

	set, err := resolver.Resolve(context.Background(), caller, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"gabriel", "sofia"}, set.IDs())
}

func TestVisibilityResolver_ProfessionalWithoutPatients(t *testing.T) {
	resolver := NewVisibilityResolver(newFakeRelStore())
	caller := domain.Identity{UserID: "drmurilo", Role: domain.RoleProfessional}

	set, err := resolver.Resolve(context.Background(), caller, "")
	require.NoError(t, err)
	assert.True(t, set.Empty())
}

func TestVisibilityResolver_InvalidCaller(t *testing.T) {
	resolver := NewVisibilityResolver(newFakeRelStore())

	_, err := resolver.Resolve(context.Background(), domain.Identity{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = resolver.Resolve(context.Background(), domain.Identity{UserID: "x", Role: "admin"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
