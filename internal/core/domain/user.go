package domain

// Role is the closed set of user roles recognised by the engine.
// Resolver and prompt-selection logic switch exhaustively on it.
type Role string

const (
	// RolePatient is a patient who owns their own documents.
	RolePatient Role = "patient"

	// RoleProfessional is a healthcare professional whose document
	// visibility is governed by relationships.
	RoleProfessional Role = "professional"
)

// Valid reports whether the role is one of the recognised values.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProfessional:
		return true
	}
	return false
}

// Identity is the already-authenticated caller identity supplied by the
// upstream authenticator. The engine trusts it and performs no credential
// verification of its own.
type Identity struct {
	// UserID is the unique identifier of the caller.
	UserID string

	// Role is the caller's role.
	Role Role
}

// User represents a known account. Identity issuance is owned by the
// authentication collaborator, not by this engine; the engine only keeps
// enough to validate relationship endpoints and render display names.
type User struct {
	// ID is the unique user identifier.
	ID string

	// Role is the user's role.
	Role Role

	// DisplayName is the human-readable name.
	DisplayName string
}
