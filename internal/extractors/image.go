package extractors

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register jpeg decoding
	_ "image/png"  // register png decoding
	"path/filepath"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure Image implements the interface.
var _ driven.ContentExtractor = (*Image)(nil)

// medicalFilenameTerms maps filename hints to classification labels,
// checked in order.
var medicalFilenameTerms = []struct {
	term  string
	label string
}{
	{"xray", "xray"},
	{"x-ray", "xray"},
	{"cxr", "xray"},
	{"chest", "xray"},
	{"ct", "ct_scan"},
	{"mri", "mri_scan"},
	{"ultrasound", "ultrasound"},
	{"scan", "radiological_scan"},
	{"derma", "dermatological_image"},
}

// Image handles raster image uploads. Images carry no extractable body
// text, so the extraction is a synthetic description built from the
// decoded dimensions and a filename-based medical classification; the
// description is what gets chunked and embedded.
type Image struct{}

// NewImage creates a raster image extractor.
func NewImage() *Image {
	return &Image{}
}

// Extensions returns the extensions this extractor handles.
func (e *Image) Extensions() []string {
	return []string{".png", ".jpg", ".jpeg"}
}

// Extract decodes image dimensions and builds the description text.
func (e *Image) Extract(_ context.Context, data []byte, filename string) (*driven.Extraction, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	meta := &domain.ImageMetadata{
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		MedicalType: classifyByFilename(filename),
	}

	return &driven.Extraction{
		Text: describeImage(filename, meta),
		Metadata: domain.DocumentMetadata{
			Kind:  domain.MetadataImage,
			Image: meta,
		},
	}, nil
}

// classifyByFilename returns a medical classification label when the
// filename suggests medical content, empty otherwise.
func classifyByFilename(filename string) string {
	name := strings.ToLower(filepath.Base(filename))
	for _, entry := range medicalFilenameTerms {
		if strings.Contains(name, entry.term) {
			return entry.label
		}
	}
	return ""
}

// describeImage builds the retrievable description for an image upload.
func describeImage(filename string, meta *domain.ImageMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Medical document image: %s.", filepath.Base(filename))
	fmt.Fprintf(&b, " Format: %s, %dx%d pixels.", meta.Format, meta.Width, meta.Height)
	if meta.MedicalType != "" {
		fmt.Fprintf(&b, " Classification: %s.", strings.ReplaceAll(meta.MedicalType, "_", " "))
	}
	return b.String()
}
