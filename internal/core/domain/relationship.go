package domain

import "time"

// RelationshipStatus is the lifecycle state of a patient-professional
// relationship. Status transitions are the only form of mutation a
// relationship supports; there is no hard delete, so audit history
// survives termination.
type RelationshipStatus string

const (
	// StatusActive grants whatever the relationship's permissions allow.
	StatusActive RelationshipStatus = "active"

	// StatusPending is awaiting acceptance; grants nothing.
	StatusPending RelationshipStatus = "pending"

	// StatusInactive is suspended; grants nothing but may be reactivated.
	StatusInactive RelationshipStatus = "inactive"

	// StatusTerminated is permanently ended; grants nothing.
	StatusTerminated RelationshipStatus = "terminated"
)

// Valid reports whether the status is a recognised value.
func (s RelationshipStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusInactive, StatusTerminated:
		return true
	}
	return false
}

// Permissions is the per-relationship grant set.
type Permissions struct {
	// ViewDocuments allows the professional to retrieve the patient's
	// documents.
	ViewDocuments bool

	// AddNotes allows the professional to add clinical notes.
	AddNotes bool

	// RequestTests allows the professional to request tests.
	RequestTests bool
}

// Relationship is a permissioned link between a patient and a
// professional. Unique per (PatientID, ProfessionalID) pair.
type Relationship struct {
	// ID is the unique relationship identifier.
	ID string

	// PatientID is the patient side of the link.
	PatientID string

	// ProfessionalID is the professional side of the link.
	ProfessionalID string

	// Status is the current lifecycle state.
	Status RelationshipStatus

	// Permissions is the grant set. Only consulted while Status is
	// StatusActive.
	Permissions Permissions

	// Type describes the clinical relationship (primary_care,
	// specialist, ...). Free-form.
	Type string

	// Notes is optional free text, appended on termination with the
	// termination reason.
	Notes string

	// CreatedAt is when the relationship was created.
	CreatedAt time.Time

	// UpdatedAt is when the relationship last changed.
	UpdatedAt time.Time

	// EndedAt is set when the relationship is terminated.
	EndedAt *time.Time
}

// GrantsDocumentAccess reports whether this relationship currently lets
// the professional see the patient's documents: it must be active and
// carry the ViewDocuments permission.
func (r Relationship) GrantsDocumentAccess() bool {
	return r.Status == StatusActive && r.Permissions.ViewDocuments
}
