package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	// Never retried; surfaced to the caller immediately.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indicates a visibility or relationship rejection.
	// It is deliberately uniform: callers must not be able to tell
	// "no such patient" from "no permission".
	ErrForbidden = errors.New("forbidden")

	// Ingestion Errors.

	// ErrUnsupportedFormat indicates a file type outside the allow-list
	// or one no extractor can handle.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptFile indicates the file could not be parsed as its
	// declared format. Permanent; never retried.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrNoExtractableContent indicates extraction produced no text at
	// all, not even a metadata description. The document was not stored.
	ErrNoExtractableContent = errors.New("no extractable content")

	// ErrFileTooLarge indicates the upload exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// Store Errors.

	// ErrStoreUnavailable indicates a transient vector store failure
	// (connection refused, timeout). Retried with bounded backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidPayload indicates a vector store payload schema
	// violation, most importantly a missing owner tag. Fatal; never
	// retried.
	ErrInvalidPayload = errors.New("invalid payload")

	// Service Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates an embedding whose length differs
	// from the deployment's configured dimension. Mixing dimensions is
	// a fatal configuration error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMUnavailable indicates the completion service is not
	// configured. Retrieval still works; answer synthesis is disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
