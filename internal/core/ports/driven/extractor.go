package driven

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// Extraction is the output of content extraction: the document's text
// plus format-specific structured metadata.
type Extraction struct {
	// Text is the extracted text. For image-only formats this is a
	// synthetic description built from metadata, so that such documents
	// remain retrievable through their description.
	Text string

	// Metadata is the format-specific structured metadata.
	Metadata domain.DocumentMetadata
}

// ContentExtractor turns file bytes into text and metadata for one or
// more file formats. Extraction failures are permanent: they surface as
// domain.ErrUnsupportedFormat or domain.ErrCorruptFile and are never
// retried.
type ContentExtractor interface {
	// Extensions returns the lower-case file extensions this extractor
	// handles, dot included (".pdf", ".dcm", ...).
	Extensions() []string

	// Extract parses the file bytes. The filename is advisory
	// (extension dispatch happens in the registry).
	Extract(ctx context.Context, data []byte, filename string) (*Extraction, error)
}

// ExtractorRegistry selects the extractor for an upload.
type ExtractorRegistry interface {
	// ForFilename returns the extractor registered for the filename's
	// extension, or domain.ErrUnsupportedFormat.
	ForFilename(filename string) (ContentExtractor, error)

	// Extensions returns all registered extensions, sorted. This is the
	// engine's effective format allow-list.
	Extensions() []string
}
