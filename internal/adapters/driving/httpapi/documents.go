package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
)

// uploadMemoryLimit caps how much of a multipart body is buffered in
// memory before spilling to disk. The upload size itself is enforced by
// the ingestion service.
const uploadMemoryLimit = 4 << 20

// documentResponse is the JSON shape of a document.
type documentResponse struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	ByteSize    int64     `json:"byte_size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Kind        string    `json:"kind"`
}

func toDocumentResponse(doc domain.Document) documentResponse {
	return documentResponse{
		ID:          doc.ID,
		OwnerUserID: doc.OwnerUserID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		ByteSize:    doc.ByteSize,
		UploadedAt:  doc.UploadedAt,
		Kind:        string(doc.Metadata.Kind),
	}
}

// handleUpload ingests one multipart upload from the "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeError(w, fmt.Errorf("%w: malformed multipart body", domain.ErrInvalidInput))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: missing file field", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("reading upload: %w", err))
		return
	}

	result, err := s.ingestion.Ingest(r.Context(), driving.IngestRequest{
		Owner:       callerFrom(r),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Document   documentResponse `json:"document"`
		ChunkCount int              `json:"chunk_count"`
		Warning    string           `json:"warning,omitempty"`
	}{
		Document:   toDocumentResponse(result.Document),
		ChunkCount: result.ChunkCount,
		Warning:    result.Warning,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context(), callerFrom(r), r.URL.Query().Get("patient_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, struct {
		Documents []documentResponse `json:"documents"`
	}{Documents: out})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), callerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(*doc))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, doc, err := s.documents.Download(r.Context(), callerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), callerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
