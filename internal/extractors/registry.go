// Package extractors turns uploaded file bytes into extracted text and
// structured metadata. Each extractor handles a set of file extensions;
// the registry dispatches on the upload's extension and doubles as the
// engine's format allow-list.
//
// Extraction failures are permanent: an unparseable file surfaces as
// domain.ErrCorruptFile, an unregistered extension as
// domain.ErrUnsupportedFormat. Neither is retried.
package extractors

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps file extensions to extractors.
type Registry struct {
	byExt map[string]driven.ContentExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]driven.ContentExtractor),
	}
}

// NewDefaultRegistry creates a registry with all built-in extractors:
// plain text, CSV, XLSX, DOCX, PDF, raster images and DICOM.
func NewDefaultRegistry(runner CommandRunner) *Registry {
	r := NewRegistry()
	r.Register(NewPlaintext())
	r.Register(NewCSV())
	r.Register(NewXLSX())
	r.Register(NewDocx())
	r.Register(NewPDF(runner))
	r.Register(NewImage())
	r.Register(NewDicom())
	return r
}

// Register adds an extractor for all its declared extensions.
// Later registrations win on extension conflicts.
func (r *Registry) Register(e driven.ContentExtractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// ForFilename returns the extractor registered for the filename's
// extension.
func (r *Registry) ForFilename(filename string) (driven.ContentExtractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, domain.ErrUnsupportedFormat
	}
	return e, nil
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
