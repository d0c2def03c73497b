// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document record and chunk text persistence
//   - RelationshipStore: Patient-professional link persistence
//   - UserStore: Known-account persistence
//   - AuditStore: Append-only audit trail persistence
//
// Chunk embeddings are NOT stored here; they live in the vector store.
// The relational side keeps the text and sequence metadata needed for
// hydration and re-embedding.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.carevault/data/carevault.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
