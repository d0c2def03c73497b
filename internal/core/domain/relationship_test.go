package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationshipStatus_Valid(t *testing.T) {
	for _, s := range []RelationshipStatus{StatusActive, StatusPending, StatusInactive, StatusTerminated} {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}
	assert.False(t, RelationshipStatus("archived").Valid())
	assert.False(t, RelationshipStatus("").Valid())
}

func TestRelationship_GrantsDocumentAccess(t *testing.T) {
	tests := []struct {
		name string
		rel  Relationship
		want bool
	}{
		{
			name: "active with view permission",
			rel: Relationship{
				Status:      StatusActive,
				Permissions: Permissions{ViewDocuments: true},
			},
			want: true,
		},
		{
			name: "active without view permission",
			rel: Relationship{
				Status:      StatusActive,
				Permissions: Permissions{AddNotes: true},
			},
			want: false,
		},
		{
			name: "terminated with view permission",
			rel: Relationship{
				Status:      StatusTerminated,
				Permissions: Permissions{ViewDocuments: true},
			},
			want: false,
		},
		{
			name: "pending with view permission",
			rel: Relationship{
				Status:      StatusPending,
				Permissions: Permissions{ViewDocuments: true},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rel.GrantsDocumentAccess())
		})
	}
}

func TestVisibilitySet(t *testing.T) {
	set := NewVisibilitySet("gabriel", "maria", "")

	assert.True(t, set.Contains("gabriel"))
	assert.True(t, set.Contains("maria"))
	assert.False(t, set.Contains("drmurilo"))
	assert.False(t, set.Empty())
	assert.Equal(t, []string{"gabriel", "maria"}, set.IDs())

	empty := NewVisibilitySet()
	assert.True(t, empty.Empty())
	assert.Empty(t, empty.IDs())
}
