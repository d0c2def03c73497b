package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// queryRequest is shared by the search and chat routes.
type queryRequest struct {
	Query     string  `json:"query"`
	PatientID string  `json:"patient_id,omitempty"`
	TopK      int     `json:"top_k,omitempty"`
	MinScore  float64 `json:"min_score,omitempty"`
}

func (q queryRequest) options() domain.RetrievalOptions {
	return domain.RetrievalOptions{
		PatientID: q.PatientID,
		TopK:      q.TopK,
		MinScore:  q.MinScore,
	}
}

// searchHit is one retrieval result on the wire.
type searchHit struct {
	DocumentID      string   `json:"document_id"`
	Filename        string   `json:"filename"`
	ChunkIndex      int      `json:"chunk_index"`
	Text            string   `json:"text"`
	Score           float64  `json:"score"`
	MedicalKeywords []string `json:"medical_keywords,omitempty"`
	HasMedicalImage bool     `json:"has_medical_image,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}

	chunks, err := s.retrieval.Retrieve(r.Context(), callerFrom(r), req.Query, req.options())
	if err != nil {
		writeError(w, err)
		return
	}

	hits := make([]searchHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, searchHit{
			DocumentID:      c.Document.ID,
			Filename:        c.Document.Filename,
			ChunkIndex:      c.Chunk.Index,
			Text:            c.Chunk.Text,
			Score:           c.Score,
			MedicalKeywords: c.Chunk.MedicalKeywords,
			HasMedicalImage: c.Chunk.HasMedicalImage,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Results []searchHit `json:"results"`
	}{Results: hits})
}

// answerSource is one source attribution on the wire.
type answerSource struct {
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	Score           float64 `json:"score"`
	HasMedicalImage bool    `json:"has_medical_image,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil {
		writeError(w, fmt.Errorf("%w: no completion provider configured", domain.ErrLLMUnavailable))
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}

	answer, err := s.answers.Answer(r.Context(), callerFrom(r), req.Query, req.options())
	if err != nil {
		writeError(w, err)
		return
	}

	sources := make([]answerSource, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, answerSource{
			DocumentID:      src.DocumentID,
			Filename:        src.Filename,
			Score:           src.Score,
			HasMedicalImage: src.HasMedicalImage,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Answer  string         `json:"answer"`
		Sources []answerSource `json:"sources"`
	}{Answer: answer.Text, Sources: sources})
}
