package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// handleAuditSummary aggregates professional access to a patient's
// records. patient_id defaults to the caller for patients; window_days
// defaults to the service's window.
func (s *Server) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" && caller.Role == domain.RolePatient {
		patientID = caller.UserID
	}

	var window time.Duration
	if days := r.URL.Query().Get("window_days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: invalid window_days", domain.ErrInvalidInput))
			return
		}
		window = time.Duration(n) * 24 * time.Hour
	}

	summary, err := s.audit.Summary(r.Context(), caller, patientID, window)
	if err != nil {
		writeError(w, err)
		return
	}

	type accessRow struct {
		ProfessionalID string    `json:"professional_id"`
		Count          int       `json:"count"`
		LastAccess     time.Time `json:"last_access"`
	}
	rows := make([]accessRow, 0, len(summary.Accesses))
	for _, a := range summary.Accesses {
		rows = append(rows, accessRow{
			ProfessionalID: a.ProfessionalID,
			Count:          a.Count,
			LastAccess:     a.LastAccess,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		PatientID string      `json:"patient_id"`
		From      time.Time   `json:"from"`
		To        time.Time   `json:"to"`
		Accesses  []accessRow `json:"accesses"`
	}{
		PatientID: summary.PatientID,
		From:      summary.From,
		To:        summary.To,
		Accesses:  rows,
	})
}

// handleAuditRecent returns the caller's own recent audit entries.
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: invalid limit", domain.ErrInvalidInput))
			return
		}
		limit = n
	}

	entries, err := s.audit.Recent(r.Context(), callerFrom(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	type entryRow struct {
		ID           string         `json:"id"`
		Action       string         `json:"action"`
		ResourceType string         `json:"resource_type"`
		ResourceID   string         `json:"resource_id,omitempty"`
		Success      bool           `json:"success"`
		Timestamp    time.Time      `json:"timestamp"`
		Detail       map[string]any `json:"detail,omitempty"`
	}
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{
			ID:           e.ID,
			Action:       string(e.Action),
			ResourceType: string(e.ResourceType),
			ResourceID:   e.ResourceID,
			Success:      e.Success,
			Timestamp:    e.Timestamp,
			Detail:       e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []entryRow `json:"entries"`
	}{Entries: rows})
}
