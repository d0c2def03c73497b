// Package domain defines the core business entities for CareVault.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested document owned by a single user
//   - Chunk: The unit of embedding and retrieval within a document
//   - Relationship: A permissioned patient-professional link
//   - AuditLogEntry: An append-only record of an access attempt
//   - VisibilitySet: The patient identities a query may see
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
