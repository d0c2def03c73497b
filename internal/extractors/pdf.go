package extractors

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure PDF implements the interface.
var _ driven.ContentExtractor = (*PDF)(nil)

// CommandRunner executes an external command and returns its stdout.
// Abstracted so tests can stub the pdftotext invocation.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and returns its combined stdout.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDF handles PDF uploads by shelling out to pdftotext with layout
// preservation disabled, the most reliable extraction path without a
// native parser.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF extractor. A nil runner defaults to ExecRunner.
func NewPDF(runner CommandRunner) *PDF {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDF{runner: runner}
}

// Extensions returns the extensions this extractor handles.
func (e *PDF) Extensions() []string {
	return []string{".pdf"}
}

// pdfMagic is the header every PDF starts with.
const pdfMagic = "%PDF-"

// Extract writes the bytes to a temp file and runs pdftotext over it.
func (e *PDF) Extract(ctx context.Context, data []byte, _ string) (*driven.Extraction, error) {
	if !strings.HasPrefix(string(data[:min(len(data), len(pdfMagic))]), pdfMagic) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrCorruptFile)
	}

	tmpDir, err := os.MkdirTemp("", "carevault-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpFile := filepath.Join(tmpDir, "upload.pdf")
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}

	// "-" sends the extracted text to stdout.
	out, err := e.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", tmpFile, "-")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftotext: %v", domain.ErrCorruptFile, err)
	}

	return &driven.Extraction{
		Text:     strings.TrimSpace(string(out)),
		Metadata: domain.DocumentMetadata{Kind: domain.MetadataGeneric},
	}, nil
}
