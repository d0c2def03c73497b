// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - ContentExtractor / ExtractorRegistry: File bytes to text + metadata
//   - EmbeddingService: Text to fixed-length vectors
//   - VectorStore: Similarity search over embedded chunks
//   - DocumentStore: Document and chunk persistence
//   - RelationshipStore: Patient-professional link persistence
//   - UserStore: Known-account persistence
//   - AuditStore: Append-only audit trail persistence
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - CompletionService: Answer synthesis; retrieval alone still works
//   - BlobStore: Original upload byte retention; downloads are disabled
//     without it
package driven
