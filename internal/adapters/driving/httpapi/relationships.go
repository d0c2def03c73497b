package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
)

// relationshipResponse is the JSON shape of a relationship.
type relationshipResponse struct {
	ID             string             `json:"id"`
	PatientID      string             `json:"patient_id"`
	ProfessionalID string             `json:"professional_id"`
	Status         string             `json:"status"`
	Permissions    permissionsPayload `json:"permissions"`
	Type           string             `json:"type"`
	Notes          string             `json:"notes,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	EndedAt        *time.Time         `json:"ended_at,omitempty"`
}

type permissionsPayload struct {
	ViewDocuments bool `json:"view_documents"`
	AddNotes      bool `json:"add_notes"`
	RequestTests  bool `json:"request_tests"`
}

func (p permissionsPayload) toDomain() domain.Permissions {
	return domain.Permissions{
		ViewDocuments: p.ViewDocuments,
		AddNotes:      p.AddNotes,
		RequestTests:  p.RequestTests,
	}
}

func toRelationshipResponse(rel domain.Relationship) relationshipResponse {
	return relationshipResponse{
		ID:             rel.ID,
		PatientID:      rel.PatientID,
		ProfessionalID: rel.ProfessionalID,
		Status:         string(rel.Status),
		Permissions: permissionsPayload{
			ViewDocuments: rel.Permissions.ViewDocuments,
			AddNotes:      rel.Permissions.AddNotes,
			RequestTests:  rel.Permissions.RequestTests,
		},
		Type:      rel.Type,
		Notes:     rel.Notes,
		CreatedAt: rel.CreatedAt,
		UpdatedAt: rel.UpdatedAt,
		EndedAt:   rel.EndedAt,
	}
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID      string             `json:"patient_id"`
		ProfessionalID string             `json:"professional_id"`
		Type           string             `json:"type,omitempty"`
		Status         string             `json:"status,omitempty"`
		Permissions    permissionsPayload `json:"permissions"`
		Notes          string             `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}

	rel, err := s.relationships.Create(r.Context(), callerFrom(r), driving.CreateRelationshipRequest{
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		Type:           req.Type,
		Status:         domain.RelationshipStatus(req.Status),
		Permissions:    req.Permissions.toDomain(),
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRelationshipResponse(*rel))
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	status := domain.RelationshipStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status))
		return
	}

	rels, err := s.relationships.List(r.Context(), callerFrom(r), status)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]relationshipResponse, 0, len(rels))
	for _, rel := range rels {
		out = append(out, toRelationshipResponse(rel))
	}
	writeJSON(w, http.StatusOK, struct {
		Relationships []relationshipResponse `json:"relationships"`
	}{Relationships: out})
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.relationships.Get(r.Context(), callerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRelationshipResponse(*rel))
}

// handlePatchRelationship applies one mutation per request: a status
// change, a permissions change, or a termination.
func (s *Server) handlePatchRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status      string              `json:"status,omitempty"`
		Permissions *permissionsPayload `json:"permissions,omitempty"`
		Terminate   bool                `json:"terminate,omitempty"`
		Reason      string              `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}

	caller := callerFrom(r)
	id := mux.Vars(r)["id"]

	switch {
	case req.Terminate:
		if err := s.relationships.Terminate(r.Context(), caller, id, req.Reason); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case req.Status != "":
		rel, err := s.relationships.SetStatus(r.Context(), caller, id,
			domain.RelationshipStatus(req.Status))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRelationshipResponse(*rel))

	case req.Permissions != nil:
		rel, err := s.relationships.SetPermissions(r.Context(), caller, id,
			req.Permissions.toDomain())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRelationshipResponse(*rel))

	default:
		writeError(w, fmt.Errorf("%w: no mutation specified", domain.ErrInvalidInput))
	}
}
