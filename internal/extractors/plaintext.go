package extractors

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure Plaintext implements the interface.
var _ driven.ContentExtractor = (*Plaintext)(nil)

// Plaintext handles plain text uploads.
type Plaintext struct{}

// NewPlaintext creates a plain text extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// Extensions returns the extensions this extractor handles.
func (e *Plaintext) Extensions() []string {
	return []string{".txt", ".md"}
}

// Extract decodes the bytes as UTF-8 text.
func (e *Plaintext) Extract(_ context.Context, data []byte, _ string) (*driven.Extraction, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8 text", domain.ErrCorruptFile)
	}

	return &driven.Extraction{
		Text:     strings.TrimSpace(string(data)),
		Metadata: domain.DocumentMetadata{Kind: domain.MetadataGeneric},
	}, nil
}
