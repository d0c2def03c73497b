package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/carevault/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all relational store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.carevault/data/carevault.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".carevault", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "carevault.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// RelationshipStore returns a RelationshipStore interface backed by this store.
func (s *Store) RelationshipStore() driven.RelationshipStore {
	return &relationshipStore{store: s}
}

// UserStore returns a UserStore interface backed by this store.
func (s *Store) UserStore() driven.UserStore {
	return &userStore{store: s}
}

// AuditStore returns an AuditStore interface backed by this store.
func (s *Store) AuditStore() driven.AuditStore {
	return &auditStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document together with its chunks
// in one transaction. The document row goes first so the chunk foreign
// key holds; nothing is visible until commit.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, owner_user_id, owner_role, filename, content_type, byte_size, uploaded_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_user_id = excluded.owner_user_id,
			owner_role = excluded.owner_role,
			filename = excluded.filename,
			content_type = excluded.content_type,
			byte_size = excluded.byte_size,
			uploaded_at = excluded.uploaded_at,
			metadata = excluded.metadata
	`, doc.ID, doc.OwnerUserID, string(doc.OwnerRole), doc.Filename,
		doc.ContentType, doc.ByteSize, doc.UploadedAt, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	// Replace the prior chunk set wholesale; a re-ingested document may
	// have fewer chunks than before.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clearing prior chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, owner_user_id, owner_role, sequence_index, content, medical_keywords, has_medical_image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		keywordsJSON, err := json.Marshal(chunk.MedicalKeywords)
		if err != nil {
			return fmt.Errorf("marshalling keywords: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID,
			chunk.OwnerUserID, string(chunk.OwnerRole), chunk.Index, chunk.Text,
			string(keywordsJSON), boolToInt(chunk.HasMedicalImage)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, owner_role, filename, content_type, byte_size, uploaded_at, metadata
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row.Scan)
}

// GetChunks retrieves a document's chunks ordered by sequence index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, owner_user_id, owner_role, sequence_index, content, medical_keywords, has_medical_image
		FROM chunks WHERE document_id = ?
		ORDER BY sequence_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, owner_user_id, owner_role, sequence_index, content, medical_keywords, has_medical_image
		FROM chunks WHERE id = ?
	`, id)

	return scanChunk(row.Scan)
}

// DeleteDocument removes a document; chunks cascade via foreign key.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListByOwner returns documents owned by a user, newest first.
func (s *documentStore) ListByOwner(ctx context.Context, ownerUserID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, owner_user_id, owner_role, filename, content_type, byte_size, uploaded_at, metadata
		FROM documents WHERE owner_user_id = ?
		ORDER BY uploaded_at DESC
	`, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ==================== Relationship Store ====================

// relationshipStore implements driven.RelationshipStore.
type relationshipStore struct {
	store *Store
}

var _ driven.RelationshipStore = (*relationshipStore)(nil)

// Create stores a new relationship.
func (s *relationshipStore) Create(ctx context.Context, rel *domain.Relationship) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO relationships
			(id, patient_id, professional_id, status, view_documents, add_notes, request_tests, type, notes, created_at, updated_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rel.ID, rel.PatientID, rel.ProfessionalID, string(rel.Status),
		boolToInt(rel.Permissions.ViewDocuments), boolToInt(rel.Permissions.AddNotes),
		boolToInt(rel.Permissions.RequestTests), rel.Type, rel.Notes,
		rel.CreatedAt, rel.UpdatedAt, nullTime(rel.EndedAt))

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating relationship: %w", err)
	}
	return nil
}

// Update rewrites a relationship's mutable fields.
func (s *relationshipStore) Update(ctx context.Context, rel *domain.Relationship) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE relationships SET
			status = ?,
			view_documents = ?,
			add_notes = ?,
			request_tests = ?,
			type = ?,
			notes = ?,
			updated_at = ?,
			ended_at = ?
		WHERE id = ?
	`, string(rel.Status),
		boolToInt(rel.Permissions.ViewDocuments), boolToInt(rel.Permissions.AddNotes),
		boolToInt(rel.Permissions.RequestTests), rel.Type, rel.Notes,
		rel.UpdatedAt, nullTime(rel.EndedAt), rel.ID)

	if err != nil {
		return fmt.Errorf("updating relationship: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a relationship by ID.
func (s *relationshipStore) Get(ctx context.Context, id string) (*domain.Relationship, error) {
	row := s.store.db.QueryRowContext(ctx, relationshipSelect+" WHERE id = ?", id)
	return scanRelationship(row.Scan)
}

// FindByPair retrieves the relationship for a (patient, professional)
// pair regardless of status.
func (s *relationshipStore) FindByPair(
	ctx context.Context, patientID, professionalID string,
) (*domain.Relationship, error) {
	row := s.store.db.QueryRowContext(ctx,
		relationshipSelect+" WHERE patient_id = ? AND professional_id = ?",
		patientID, professionalID)
	return scanRelationship(row.Scan)
}

// ListByPatient returns a patient's relationships.
func (s *relationshipStore) ListByPatient(
	ctx context.Context, patientID string, status domain.RelationshipStatus,
) ([]domain.Relationship, error) {
	return s.list(ctx, "patient_id", patientID, status)
}

// ListByProfessional returns a professional's relationships.
func (s *relationshipStore) ListByProfessional(
	ctx context.Context, professionalID string, status domain.RelationshipStatus,
) ([]domain.Relationship, error) {
	return s.list(ctx, "professional_id", professionalID, status)
}

func (s *relationshipStore) list(
	ctx context.Context, column, id string, status domain.RelationshipStatus,
) ([]domain.Relationship, error) {
	query := relationshipSelect + " WHERE " + column + " = ?"
	args := []any{id}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var rels []domain.Relationship //nolint:prealloc // size unknown from query
	for rows.Next() {
		rel, err := scanRelationship(rows.Scan)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}

	return rels, nil
}

// ==================== User Store ====================

// userStore implements driven.UserStore.
type userStore struct {
	store *Store
}

var _ driven.UserStore = (*userStore)(nil)

// Save stores or updates a user.
func (s *userStore) Save(ctx context.Context, user *domain.User) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO users (id, role, display_name)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			display_name = excluded.display_name
	`, user.ID, string(user.Role), user.DisplayName)

	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (s *userStore) Get(ctx context.Context, id string) (*domain.User, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, role, display_name FROM users WHERE id = ?", id)

	var user domain.User
	var role string
	if err := row.Scan(&user.ID, &role, &user.DisplayName); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	user.Role = domain.Role(role)

	return &user, nil
}

// ==================== Audit Store ====================

// auditStore implements driven.AuditStore. Inserts only; the schema has
// no update or delete path for audit rows.
type auditStore struct {
	store *Store
}

var _ driven.AuditStore = (*auditStore)(nil)

// Append stores a new entry.
func (s *auditStore) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshalling detail: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, resource_type, resource_id, success, timestamp, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ActorUserID, string(entry.Action), string(entry.ResourceType),
		entry.ResourceID, boolToInt(entry.Success), entry.Timestamp, string(detailJSON))

	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// Query returns entries matching the query, newest first.
func (s *auditStore) Query(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLogEntry, error) {
	query := `
		SELECT id, actor_user_id, action, resource_type, resource_id, success, timestamp, detail
		FROM audit_logs WHERE 1=1`
	var args []any

	if q.ActorUserID != "" {
		query += " AND actor_user_id = ?"
		args = append(args, q.ActorUserID)
	}
	if q.ResourceID != "" {
		query += " AND resource_id = ?"
		args = append(args, q.ResourceID)
	}
	if !q.From.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, q.To)
	}
	query += " ORDER BY timestamp DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.AuditLogEntry
		var action, resourceType, detailJSON string
		var success int
		if err := rows.Scan(&entry.ID, &entry.ActorUserID, &action, &resourceType,
			&entry.ResourceID, &success, &entry.Timestamp, &detailJSON); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.Action = domain.AuditAction(action)
		entry.ResourceType = domain.ResourceType(resourceType)
		entry.Success = success != 0
		if detailJSON != "" && detailJSON != "null" {
			if err := json.Unmarshal([]byte(detailJSON), &entry.Detail); err != nil {
				return nil, fmt.Errorf("unmarshalling detail: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

// ==================== Helper Functions ====================

const relationshipSelect = `
	SELECT id, patient_id, professional_id, status, view_documents, add_notes, request_tests, type, notes, created_at, updated_at, ended_at
	FROM relationships`

// scanFunc abstracts over *sql.Row and *sql.Rows scanning.
type scanFunc func(dest ...any) error

func scanDocument(scan scanFunc) (*domain.Document, error) {
	var doc domain.Document
	var ownerRole, metadataJSON string

	if err := scan(&doc.ID, &doc.OwnerUserID, &ownerRole, &doc.Filename,
		&doc.ContentType, &doc.ByteSize, &doc.UploadedAt, &metadataJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.OwnerRole = domain.Role(ownerRole)
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}

	return &doc, nil
}

func scanChunk(scan scanFunc) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var ownerRole, keywordsJSON string
	var hasMedicalImage int

	if err := scan(&chunk.ID, &chunk.DocumentID, &chunk.OwnerUserID, &ownerRole,
		&chunk.Index, &chunk.Text, &keywordsJSON, &hasMedicalImage); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.OwnerRole = domain.Role(ownerRole)
	chunk.HasMedicalImage = hasMedicalImage != 0
	if keywordsJSON != "" && keywordsJSON != "null" {
		if err := json.Unmarshal([]byte(keywordsJSON), &chunk.MedicalKeywords); err != nil {
			return nil, fmt.Errorf("unmarshalling keywords: %w", err)
		}
	}

	return &chunk, nil
}

func scanRelationship(scan scanFunc) (*domain.Relationship, error) {
	var rel domain.Relationship
	var status string
	var viewDocs, addNotes, requestTests int
	var endedAt sql.NullTime

	if err := scan(&rel.ID, &rel.PatientID, &rel.ProfessionalID, &status,
		&viewDocs, &addNotes, &requestTests, &rel.Type, &rel.Notes,
		&rel.CreatedAt, &rel.UpdatedAt, &endedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}

	rel.Status = domain.RelationshipStatus(status)
	rel.Permissions = domain.Permissions{
		ViewDocuments: viewDocs != 0,
		AddNotes:      addNotes != 0,
		RequestTests:  requestTests != 0,
	}
	if endedAt.Valid {
		t := endedAt.Time
		rel.EndedAt = &t
	}

	return &rel, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
