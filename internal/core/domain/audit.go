package domain

import "time"

// AuditAction names the operation an audit entry records.
type AuditAction string

const (
	// ActionDocumentUpload records an ingestion attempt.
	ActionDocumentUpload AuditAction = "document_upload"

	// ActionDocumentView records a single-document read.
	ActionDocumentView AuditAction = "document_view"

	// ActionDocumentDownload records an original-bytes download.
	ActionDocumentDownload AuditAction = "document_download"

	// ActionDocumentDelete records a document deletion.
	ActionDocumentDelete AuditAction = "document_delete"

	// ActionRetrieve records a retrieval query against a patient scope.
	ActionRetrieve AuditAction = "retrieve"

	// ActionRelationshipCreated records relationship creation.
	ActionRelationshipCreated AuditAction = "relationship_created"

	// ActionRelationshipUpdated records a permission or status change.
	ActionRelationshipUpdated AuditAction = "relationship_updated"

	// ActionRelationshipTerminated records a termination.
	ActionRelationshipTerminated AuditAction = "relationship_terminated"
)

// ResourceType names the kind of resource an audit entry refers to.
type ResourceType string

const (
	// ResourceDocument is a single document.
	ResourceDocument ResourceType = "document"

	// ResourcePatientScope is the set of a patient's records as a whole,
	// used for retrieval queries that span documents.
	ResourcePatientScope ResourceType = "patient_scope"

	// ResourceRelationship is a patient-professional relationship.
	ResourceRelationship ResourceType = "relationship"
)

// AuditLogEntry records one access attempt, successful or not.
// Entries are append-only: never mutated, never deleted.
type AuditLogEntry struct {
	// ID is the unique entry identifier.
	ID string

	// ActorUserID is who attempted the access.
	ActorUserID string

	// Action is what was attempted.
	Action AuditAction

	// ResourceType is the kind of resource acted on.
	ResourceType ResourceType

	// ResourceID identifies the resource. For patient scopes this is
	// the patient's user id; empty for unscoped queries.
	ResourceID string

	// Success reports whether the access was permitted and completed.
	Success bool

	// Timestamp is when the attempt happened (UTC).
	Timestamp time.Time

	// Detail carries action-specific context (filename, result count,
	// denial reason category, ...).
	Detail map[string]any
}

// AuditQuery filters audit log reads.
type AuditQuery struct {
	// ActorUserID restricts to one actor when non-empty.
	ActorUserID string

	// ResourceID restricts to one resource when non-empty.
	ResourceID string

	// From and To bound the time range; zero values are open-ended.
	From time.Time
	To   time.Time

	// Limit caps the result count; zero means no cap.
	Limit int
}

// ProfessionalAccess is one row of a patient access summary.
type ProfessionalAccess struct {
	// ProfessionalID is the accessing professional.
	ProfessionalID string

	// Count is the number of recorded accesses in the window.
	Count int

	// LastAccess is the most recent access time.
	LastAccess time.Time
}

// AccessSummary aggregates who accessed a patient's records over a window.
type AccessSummary struct {
	// PatientID is the patient whose records were accessed.
	PatientID string

	// From and To bound the summarised window.
	From time.Time
	To   time.Time

	// Accesses lists per-professional counts, most accesses first.
	Accesses []ProfessionalAccess
}
