package domain

import "sort"

// VisibilitySet is the derived, non-persisted set of patient ids whose
// chunks are eligible for a given query. It is recomputed per request;
// relationship changes must take effect on the very next call.
type VisibilitySet map[string]struct{}

// NewVisibilitySet builds a set from the given user ids.
func NewVisibilitySet(ids ...string) VisibilitySet {
	set := make(VisibilitySet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the user id is in the set.
func (v VisibilitySet) Contains(userID string) bool {
	_, ok := v[userID]
	return ok
}

// Empty reports whether no identities are visible.
func (v VisibilitySet) Empty() bool {
	return len(v) == 0
}

// IDs returns the member ids in sorted order for stable filters and logs.
func (v VisibilitySet) IDs() []string {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RetrievalOptions configures a retrieval query.
type RetrievalOptions struct {
	// PatientID scopes the query to one patient when non-empty.
	// Professionals use this for patient-specific consultations.
	PatientID string

	// TopK is the maximum number of chunks to return.
	TopK int

	// MinScore drops results scoring below this similarity.
	MinScore float64
}

// RetrievedChunk is one ranked retrieval result, enriched with its
// parent document's metadata for prompt assembly and source display.
type RetrievedChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the similarity score, descending across results.
	Score float64

	// Document is the parent document.
	Document Document
}
