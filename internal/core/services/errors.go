package services

import (
	"errors"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// errorCategory maps an error to the coarse label recorded in audit
// detail. Audit entries carry categories, not raw error strings, so the
// trail stays free of payload content and infrastructure addresses.
func errorCategory(err error) string {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, domain.ErrCorruptFile):
		return "corrupt_file"
	case errors.Is(err, domain.ErrNoExtractableContent):
		return "no_extractable_content"
	case errors.Is(err, domain.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, domain.ErrLLMUnavailable):
		return "llm_unavailable"
	}
	return "internal"
}
