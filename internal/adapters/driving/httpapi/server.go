// Package httpapi exposes the engine over HTTP. Authentication is the
// upstream proxy's job: the engine trusts the X-User-ID and X-User-Role
// headers it receives and enforces permissions from there.
package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/custodia-labs/carevault/internal/core/ports/driving"
)

// Server wires core services to HTTP routes.
type Server struct {
	identities    driving.IdentityService
	ingestion     driving.IngestionService
	documents     driving.DocumentService
	retrieval     driving.RetrievalService
	answers       driving.AnswerService
	relationships driving.RelationshipService
	audit         driving.AuditReader
}

// NewServer creates the HTTP server. answers may be nil when no
// completion provider is configured; the chat route then answers 503.
func NewServer(
	identities driving.IdentityService,
	ingestion driving.IngestionService,
	documents driving.DocumentService,
	retrieval driving.RetrievalService,
	answers driving.AnswerService,
	relationships driving.RelationshipService,
	audit driving.AuditReader,
) *Server {
	return &Server{
		identities:    identities,
		ingestion:     ingestion,
		documents:     documents,
		retrieval:     retrieval,
		answers:       answers,
		relationships: relationships,
		audit:         audit,
	}
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.identityMiddleware)

	api.HandleFunc("/documents", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/download", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)

	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)

	api.HandleFunc("/relationships", s.handleCreateRelationship).Methods(http.MethodPost)
	api.HandleFunc("/relationships", s.handleListRelationships).Methods(http.MethodGet)
	api.HandleFunc("/relationships/{id}", s.handleGetRelationship).Methods(http.MethodGet)
	api.HandleFunc("/relationships/{id}", s.handlePatchRelationship).Methods(http.MethodPatch)

	api.HandleFunc("/audit/summary", s.handleAuditSummary).Methods(http.MethodGet)
	api.HandleFunc("/audit/recent", s.handleAuditRecent).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.RecoveryHandler()(h)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	h = handlers.CORS(
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPatch,
			http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-User-ID", "X-User-Role"}),
	)(h)

	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
