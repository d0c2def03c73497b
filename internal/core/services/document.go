package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService exposes reads and deletion over ingested documents.
// Every read goes through the caller's freshly resolved visibility set;
// deletion is owner-only and cascades to all derived state.
type DocumentService struct {
	documents driven.DocumentStore
	vectors   driven.VectorStore
	blobs     driven.BlobStore // optional
	resolver  *VisibilityResolver
	audit     *AuditService
}

// NewDocumentService creates a document service. blobs may be nil, in
// which case Download is disabled.
func NewDocumentService(
	documents driven.DocumentStore,
	vectors driven.VectorStore,
	blobs driven.BlobStore,
	resolver *VisibilityResolver,
	audit *AuditService,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		vectors:   vectors,
		blobs:     blobs,
		resolver:  resolver,
		audit:     audit,
	}
}

// List returns the documents the caller may see, newest first.
func (s *DocumentService) List(
	ctx context.Context, caller domain.Identity, patientID string,
) ([]domain.Document, error) {
	visible, err := s.resolver.Resolve(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	for _, ownerID := range visible.IDs() {
		owned, err := s.documents.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("list documents for %s: %w", ownerID, err)
		}
		docs = append(docs, owned...)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// Get retrieves one document the caller may see. The view is audited.
func (s *DocumentService) Get(
	ctx context.Context, caller domain.Identity, documentID string,
) (*domain.Document, error) {
	doc, err := s.getVisible(ctx, caller, documentID)

	detail := map[string]any{}
	if err != nil {
		detail["error"] = errorCategory(err)
	} else {
		detail["filename"] = doc.Filename
	}
	s.audit.Record(ctx, caller.UserID, domain.ActionDocumentView,
		domain.ResourceDocument, documentID, err == nil, detail)

	return doc, err
}

// Download returns the original upload bytes. Disabled when no blob
// store is configured.
func (s *DocumentService) Download(
	ctx context.Context, caller domain.Identity, documentID string,
) (data []byte, doc *domain.Document, err error) {
	defer func() {
		detail := map[string]any{}
		if err != nil {
			detail["error"] = errorCategory(err)
		}
		s.audit.Record(ctx, caller.UserID, domain.ActionDocumentDownload,
			domain.ResourceDocument, documentID, err == nil, detail)
	}()

	if s.blobs == nil {
		return nil, nil, fmt.Errorf("%w: original bytes are not retained", domain.ErrNotFound)
	}

	doc, err = s.getVisible(ctx, caller, documentID)
	if err != nil {
		return nil, nil, err
	}

	data, err = s.blobs.Get(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch source bytes: %w", err)
	}
	return data, doc, nil
}

// Delete removes a document with all derived state: vector points,
// retained bytes and chunk rows. Only the owner may delete.
func (s *DocumentService) Delete(
	ctx context.Context, caller domain.Identity, documentID string,
) (err error) {
	defer func() {
		detail := map[string]any{}
		if err != nil {
			detail["error"] = errorCategory(err)
		}
		s.audit.Record(ctx, caller.UserID, domain.ActionDocumentDelete,
			domain.ResourceDocument, documentID, err == nil, detail)
	}()

	if documentID == "" {
		return fmt.Errorf("%w: missing document id", domain.ErrInvalidInput)
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get document: %w", err)
	}
	if doc.OwnerUserID != caller.UserID {
		return domain.ErrForbidden
	}

	// Points first: once they are gone the document can no longer be
	// retrieved, even if a later step fails.
	err = withRetry(ctx, "delete points", func() error {
		return s.vectors.Delete(ctx, driven.Filter{DocumentID: documentID})
	})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}

	if s.blobs != nil {
		if err = s.blobs.Delete(ctx, documentID); err != nil {
			return fmt.Errorf("delete source bytes: %w", err)
		}
	}

	if err = s.documents.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	logger.Info("Deleted document %s with derived state", documentID)
	return nil
}

// getVisible loads a document and checks it against the caller's
// visibility set.
func (s *DocumentService) getVisible(
	ctx context.Context, caller domain.Identity, documentID string,
) (*domain.Document, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: missing document id", domain.ErrInvalidInput)
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	visible, err := s.resolver.Resolve(ctx, caller, "")
	if err != nil {
		return nil, err
	}
	if !visible.Contains(doc.OwnerUserID) {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}
